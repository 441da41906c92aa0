package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "shelf/1.0"

// API is a small JSON-over-HTTP helper bound to a base URL
type API struct {
	client  *http.Client
	stream  *http.Client
	baseURL string
	token   string
}

// NewAPI bounds JSON calls by timeout as a whole. Streamed downloads only
// wait timeout for the response headers; the body is bounded by the caller's
// context.
func NewAPI(baseURL string, timeout time.Duration) *API {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &API{
		client:  &http.Client{Timeout: timeout},
		stream:  &http.Client{Transport: transport},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// WithToken sets the bearer token sent on every request
func (a *API) WithToken(token string) *API {
	a.token = token
	return a
}

func (a *API) BaseURL() string {
	return a.baseURL
}

// Resolve turns a path into an absolute URL; absolute URLs pass through
func (a *API) Resolve(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.baseURL + path
}

// NewRequest builds a request with the common headers set
func (a *API) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.Resolve(path), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return req, nil
}

// Do sends req and returns the response without checking the status
func (a *API) Do(req *http.Request) (*http.Response, error) {
	return a.client.Do(req)
}

// Stream is Do for large bodies: reading the body is not bounded by the
// request timeout
func (a *API) Stream(req *http.Request) (*http.Response, error) {
	return a.stream.Do(req)
}

// JSON sends in (when non-nil) as a JSON body and returns the raw response.
// The caller owns the response body.
func (a *API) JSON(ctx context.Context, method, path string, params url.Values, in any) (*http.Response, error) {
	if params != nil {
		path += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := a.NewRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.client.Do(req)
}
