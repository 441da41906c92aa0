package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/document"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	MsgLoadBooks  = "Failed to load books. Please try again later."
	MsgUpload     = "Failed to upload book. Please try again."
	MsgUpdateBook = "Failed to update book. Please try again."
	MsgDeleteBook = "Failed to delete book. Please try again."
)

var ErrBookNotFound = errors.New("book not found")

// UserError carries a message meant for the screen alongside its cause
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }
func (e *UserError) Unwrap() error { return e.Err }

func userError(err error, fallback string) error {
	return &UserError{Message: api.UserMessage(err, fallback), Err: err}
}

// Store is the local persistence used by the controller
type Store interface {
	reader.Store
	Shadows(ids []string) (map[string]data.Shadow, error)
	SetStatus(bookID string, status data.ReadingStatus) error
	ListNotes(bookID string) ([]*data.Note, error)
	ListHighlights(bookID string) ([]*data.Highlight, error)
	Forget(bookID string) error
}

// Action is one of the entries of a book's card menu
type Action string

const (
	ActionFavorite      Action = "favorite"
	ActionRemoveCurrent Action = "remove-current"
	ActionRemovePlan    Action = "remove-plan"
	ActionCompleted     Action = "completed"
	ActionDelete        Action = "delete"
)

var Actions = []Action{ActionFavorite, ActionRemoveCurrent, ActionRemovePlan, ActionCompleted, ActionDelete}

// LibraryController joins the remote library with what is stored locally
type LibraryController struct {
	library  api.Library
	store    Store
	fetcher  *Fetcher
	uploader *Uploader
	log      logrus.FieldLogger
}

func NewLibraryController(library api.Library, store Store, cacheDir string, log logrus.FieldLogger) *LibraryController {
	if log == nil {
		log = utils.Discard()
	}
	return &LibraryController{
		library:  library,
		store:    store,
		fetcher:  NewFetcher(library, cacheDir, log),
		uploader: NewUploader(library, log),
		log:      log.WithField("component", "library"),
	}
}

func (c *LibraryController) Fetcher() *Fetcher   { return c.fetcher }
func (c *LibraryController) Uploader() *Uploader { return c.uploader }

// ListBooks fetches the library and fills in local status and progress. The
// remote status wins when set; progress is the locally mirrored one.
func (c *LibraryController) ListBooks(ctx context.Context) ([]*data.Book, error) {
	books, err := c.library.ListBooks(ctx)
	if err != nil {
		return nil, userError(err, MsgLoadBooks)
	}
	if err := c.merge(books...); err != nil {
		c.log.WithError(err).Warn("failed to read local shadows")
	}
	return books, nil
}

func (c *LibraryController) merge(books ...*data.Book) error {
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	shadows, err := c.store.Shadows(ids)
	if err != nil {
		return err
	}
	for _, b := range books {
		shadow := shadows[b.ID]
		if b.Status == "" {
			b.Status = shadow.Status
		}
		if b.Status == "" {
			b.Status = data.StatusAll
		}
		if shadow.Progress.Page > 0 {
			p := shadow.Progress
			b.Progress = &p
		}
	}
	return nil
}

// FilterByStatus keeps the books on a shelf; StatusAll keeps everything
func FilterByStatus(books []*data.Book, status data.ReadingStatus) []*data.Book {
	if status == "" || status == data.StatusAll {
		return books
	}
	var out []*data.Book
	for _, b := range books {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out
}

func (c *LibraryController) GetBook(ctx context.Context, id string) (*data.Book, error) {
	if id == "" {
		return nil, fmt.Errorf("book id cannot be empty")
	}
	book, err := c.library.GetBook(ctx, id)
	if err != nil {
		if api.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
		}
		return nil, userError(err, MsgLoadBooks)
	}
	if err := c.merge(book); err != nil {
		c.log.WithError(err).Warn("failed to read local shadows")
	}
	return book, nil
}

// FindBook looks a book up by ID, then by title ignoring case, then by a
// title fragment when only one book matches it
func (c *LibraryController) FindBook(ctx context.Context, query string) (*data.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("book id or title cannot be empty")
	}
	books, err := c.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	for _, b := range books {
		if b.ID == query {
			return b, nil
		}
	}
	for _, b := range books {
		if strings.EqualFold(b.Title, query) {
			return b, nil
		}
	}

	var matches []*data.Book
	lower := strings.ToLower(query)
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.Title), lower) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, query)
	default:
		return nil, fmt.Errorf("%q matches %d books, be more specific", query, len(matches))
	}
}

func (c *LibraryController) Upload(ctx context.Context, req UploadRequest) (*api.UploadResult, error) {
	result, err := c.uploader.Upload(ctx, req)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return nil, userError(err, MsgUpload)
		}
		return nil, err
	}
	return result, nil
}

func (c *LibraryController) Update(ctx context.Context, id string, update api.BookUpdate) (*data.Book, error) {
	if update.Status != nil {
		if err := c.store.SetStatus(id, *update.Status); err != nil {
			return nil, err
		}
	}
	book, err := c.library.UpdateBook(ctx, id, update)
	if err != nil {
		return nil, userError(err, MsgUpdateBook)
	}
	if book != nil {
		if err := c.merge(book); err != nil {
			c.log.WithField("book_id", id).WithError(err).Warn("failed to read local shadows")
		}
	}
	return book, nil
}

// Delete removes the book remotely, then forgets it locally
func (c *LibraryController) Delete(ctx context.Context, id string) error {
	if err := c.library.DeleteBook(ctx, id); err != nil {
		return userError(err, MsgDeleteBook)
	}
	if err := c.store.Forget(id); err != nil {
		c.log.WithField("book_id", id).WithError(err).Warn("failed to forget book locally")
	}
	if err := c.fetcher.Evict(id); err != nil {
		c.log.WithField("book_id", id).WithError(err).Warn("failed to evict cached file")
	}
	c.log.WithField("book_id", id).Info("book deleted")
	return nil
}

// SetStatus records the status locally first, then on the backend. When the
// backend rejects it the local value stays.
func (c *LibraryController) SetStatus(ctx context.Context, id string, status data.ReadingStatus) error {
	if err := c.store.SetStatus(id, status); err != nil {
		return err
	}
	if _, err := c.library.UpdateBook(ctx, id, api.BookUpdate{Status: &status}); err != nil {
		c.log.WithField("book_id", id).WithField("status", status).WithError(err).Warn("failed to sync status")
		return userError(err, MsgUpdateBook)
	}
	return nil
}

// ApplyAction runs a card menu entry against book and reports whether
// anything changed. Removing a book from a list it is not on does nothing.
func (c *LibraryController) ApplyAction(ctx context.Context, book *data.Book, action Action) (bool, error) {
	var next data.ReadingStatus
	switch action {
	case ActionFavorite:
		next = data.StatusFavorite
	case ActionCompleted:
		next = data.StatusCompleted
	case ActionRemoveCurrent:
		if book.Status != data.StatusReading {
			return false, nil
		}
		next = data.StatusAll
	case ActionRemovePlan:
		if book.Status != data.StatusPlan {
			return false, nil
		}
		next = data.StatusAll
	case ActionDelete:
		if err := c.Delete(ctx, book.ID); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown action %q", action)
	}

	if book.Status == next {
		return false, nil
	}
	err := c.SetStatus(ctx, book.ID, next)
	book.Status = next
	return true, err
}

// RecordProgress stores progress locally and pushes it to the backend
func (c *LibraryController) RecordProgress(ctx context.Context, id string, page, total int) (data.Progress, error) {
	if page < 1 || (total > 0 && page > total) {
		return data.Progress{}, fmt.Errorf("page %d is out of range", page)
	}
	progress, err := c.store.SetProgress(id, page, total)
	if err != nil {
		return data.Progress{}, err
	}
	if err := c.library.UpdateProgress(ctx, id, progress); err != nil {
		return progress, fmt.Errorf("%w: %w", reader.ErrNotSynced, err)
	}
	return progress, nil
}

// AddNote stores a note locally, then posts it
func (c *LibraryController) AddNote(ctx context.Context, id string, page int, content string) (*data.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, reader.ErrEmptyText
	}
	note := &data.Note{BookID: id, Page: page, Content: content}
	if err := c.store.AddNote(note); err != nil {
		return nil, err
	}
	if err := c.library.AddNote(ctx, id, note); err != nil {
		return note, fmt.Errorf("%w: %w", reader.ErrNotSynced, err)
	}
	return note, nil
}

func (c *LibraryController) AddHighlight(ctx context.Context, id string, page int, text, color string) (*data.Highlight, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, reader.ErrEmptyText
	}
	if color == "" {
		color = "yellow"
	}
	h := &data.Highlight{BookID: id, Page: page, Text: text, Color: color}
	if err := c.store.AddHighlight(h); err != nil {
		return nil, err
	}
	if err := c.library.AddHighlight(ctx, id, h); err != nil {
		return h, fmt.Errorf("%w: %w", reader.ErrNotSynced, err)
	}
	return h, nil
}

// Notebook returns the notes and highlights kept for a book
func (c *LibraryController) Notebook(ctx context.Context, book *data.Book) (*data.Notebook, error) {
	notes, err := c.store.ListNotes(book.ID)
	if err != nil {
		return nil, err
	}
	highlights, err := c.store.ListHighlights(book.ID)
	if err != nil {
		return nil, err
	}
	return &data.Notebook{Book: book, Notes: notes, Highlights: highlights}, nil
}

// maxCoverSize bounds how much of a cover image is read into memory
const maxCoverSize = 10 << 20

// Cover downloads the cover image of a book; a book without one yields nil
func (c *LibraryController) Cover(ctx context.Context, book *data.Book) ([]byte, error) {
	if book.CoverURL == "" {
		return nil, nil
	}
	body, _, err := c.library.FetchFile(ctx, book.CoverURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(io.LimitReader(body, maxCoverSize))
}

// Export writes the notebook of a book through exporter. A cover that cannot
// be fetched is left out rather than failing the export.
func (c *LibraryController) Export(ctx context.Context, book *data.Book, exporter integrations.Exporter) (string, error) {
	notebook, err := c.Notebook(ctx, book)
	if err != nil {
		return "", err
	}
	cover, err := c.Cover(ctx, book)
	if err != nil {
		c.log.WithField("book_id", book.ID).WithError(err).Warn("failed to fetch cover")
		cover = nil
	}
	path, err := exporter.Export(notebook, cover)
	if err != nil {
		return "", err
	}
	c.log.WithField("book_id", book.ID).WithField("path", path).Info("notebook exported")
	return path, nil
}

func (c *LibraryController) Fetch(ctx context.Context, book *data.Book, refresh bool) (string, error) {
	return c.fetcher.Fetch(ctx, book, refresh)
}

// NewSession prepares a reading session for book
func (c *LibraryController) NewSession(book *data.Book, syncer *reader.ProgressSyncer, scale float64) *reader.Session {
	return reader.NewSession(book, reader.Deps{
		Store:     c.store,
		Annotator: c.library,
		Fetcher:   c.fetcher,
		Opener:    document.PDFOpener{},
		Syncer:    syncer,
		Log:       c.log,
	}, scale)
}

// Close cleans up resources
func (c *LibraryController) Close() {
	c.fetcher.Close()
	c.uploader.Close()
}
