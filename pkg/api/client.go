package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/sirupsen/logrus"
)

const booksPath = "/api/books"

var _ Library = (*Client)(nil)

// Client talks to the library backend over its REST endpoints
type Client struct {
	api *utils.API
	log logrus.FieldLogger
}

func NewClient(baseURL, token string, timeout time.Duration, log logrus.FieldLogger) *Client {
	if log == nil {
		log = utils.Discard()
	}
	c := &Client{
		api: utils.NewAPI(baseURL, timeout).WithToken(token),
		log: log.WithField("component", "api"),
	}
	if token != "" {
		if exp, ok := TokenExpiry(token); ok && exp.Before(time.Now()) {
			c.log.WithField("expired_at", exp).Warn("auth token has expired, requests will likely be rejected")
		}
	}
	return c
}

func bookPath(id string, sub ...string) string {
	p := booksPath + "/" + url.PathEscape(id)
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

// ListBooks accepts both a bare array and {"books": [...]}
func (c *Client) ListBooks(ctx context.Context) ([]*data.Book, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodGet, booksPath+"/all", nil, &raw); err != nil {
		return nil, err
	}

	var books []*data.Book
	if err := json.Unmarshal(raw, &books); err == nil {
		return books, nil
	}
	var wrapped struct {
		Books []*data.Book `json:"books"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode book list: %w", err)
	}
	return wrapped.Books, nil
}

func (c *Client) GetBook(ctx context.Context, id string) (*data.Book, error) {
	var book data.Book
	if err := c.call(ctx, http.MethodGet, bookPath(id), nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) UpdateBook(ctx context.Context, id string, update BookUpdate) (*data.Book, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPatch, bookPath(id), update, &raw); err != nil {
		return nil, err
	}
	return decodeBookEnvelope(raw), nil
}

func (c *Client) DeleteBook(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, bookPath(id), nil, nil)
}

func (c *Client) UpdateProgress(ctx context.Context, id string, progress data.Progress) error {
	return c.call(ctx, http.MethodPost, bookPath(id, "progress"), progress, nil)
}

func (c *Client) AddNote(ctx context.Context, id string, note *data.Note) error {
	return c.call(ctx, http.MethodPost, bookPath(id, "notes"), note, nil)
}

func (c *Client) AddHighlight(ctx context.Context, id string, highlight *data.Highlight) error {
	return c.call(ctx, http.MethodPost, bookPath(id, "highlights"), highlight, nil)
}

// UploadBook streams a multipart form. onProgress receives the percentage of
// the file sent so far and may be nil.
func (c *Client) UploadBook(ctx context.Context, upload Upload, onProgress func(percent int)) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(mw, upload, onProgress)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	defer pr.Close()

	req, err := c.api.NewRequest(ctx, http.MethodPost, booksPath+"/upload", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.api.Stream(req)
	if err != nil {
		pr.CloseWithError(err)
		c.log.WithError(err).Error("network error")
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := c.readResponse(resp)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &envelope)

	return &UploadResult{Message: envelope.Message, Book: decodeBookEnvelope(raw)}, nil
}

func writeUploadForm(mw *multipart.Writer, upload Upload, onProgress func(int)) error {
	if err := mw.WriteField("title", upload.Title); err != nil {
		return err
	}
	if upload.Author != "" {
		if err := mw.WriteField("author", upload.Author); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(upload.Filename))
	if err != nil {
		return err
	}

	src := upload.File
	if onProgress != nil {
		src = &progressReader{r: upload.File, total: upload.Size, report: onProgress}
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

// FetchFile opens a book file for streaming. The size is -1 when the server
// does not announce it.
func (c *Client) FetchFile(ctx context.Context, fileURL string) (io.ReadCloser, int64, error) {
	if fileURL == "" {
		return nil, 0, errors.New("file URL is empty")
	}
	req, err := c.api.NewRequest(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/pdf, */*")

	resp, err := c.api.Stream(req)
	if err != nil {
		c.log.WithError(err).Error("network error")
		return nil, 0, fmt.Errorf("failed to fetch file: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		_, err := c.readResponse(resp)
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.api.JSON(ctx, method, path, nil, in)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Error("network error")
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := c.readResponse(resp)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// readResponse returns the body of a 2xx response, or an *APIError
func (c *Client) readResponse(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return raw, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	}

	entry := c.log.WithField("status", resp.StatusCode).WithField("url", resp.Request.URL.String())
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		entry.Warn("unauthorized access")
	case resp.StatusCode >= 500:
		entry.WithField("body", string(raw)).Error("server error")
	default:
		entry.Debug("request rejected")
	}
	return nil, apiErr
}

// decodeBookEnvelope finds a book in {"book": {...}} or a bare object
func decodeBookEnvelope(raw []byte) *data.Book {
	var wrapped struct {
		Book *data.Book `json:"book"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Book != nil {
		return wrapped.Book
	}
	var book data.Book
	if json.Unmarshal(raw, &book) == nil && book.ID != "" {
		return &book
	}
	return nil
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if pct := Percent(p.read, p.total); pct != p.last {
		p.last = pct
		p.report(pct)
	}
	return n, err
}

// Percent is loaded*100/total, treating an unknown total as 1 and capping at 100
func Percent(loaded, total int64) int {
	if total <= 0 {
		total = 1
	}
	pct := int(loaded * 100 / total)
	if pct > 100 {
		pct = 100
	}
	return pct
}
