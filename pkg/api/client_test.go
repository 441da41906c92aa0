package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "", 5*time.Second, nil)
}

func TestListBooks(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/books/all", r.URL.Path)
			assert.Equal(t, http.MethodGet, r.Method)
			w.Write([]byte(`[{"_id":"1","title":"Dune","file_url":"https://f/1.pdf"},{"id":"2","title":"Emma"}]`))
		})

		books, err := client.ListBooks(context.Background())
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, "1", books[0].ID)
		assert.Equal(t, "https://f/1.pdf", books[0].FileURL)
		assert.Equal(t, "Emma", books[1].Title)
	})

	t.Run("wrapped", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"books":[{"id":"9","title":"Ulysses"}]}`))
		})

		books, err := client.ListBooks(context.Background())
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "Ulysses", books[0].Title)
	})
}

func TestAPIErrorCarriesBackendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Book not found"}`))
	})

	_, err := client.GetBook(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Book not found", apiErr.Message)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))
	assert.Equal(t, "Book not found", UserMessage(err, "fallback"))
}

func TestServerErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ListBooks(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Failed to load books.", UserMessage(err, "Failed to load books."))
	assert.Contains(t, err.Error(), "500")
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(srv.URL, "", time.Second, nil)
	_, err := client.ListBooks(context.Background())
	require.Error(t, err)
	assert.Equal(t, "offline", UserMessage(err, "offline"))
}

func TestEndpointsAndPayloads(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]any
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				require.NoError(t, json.Unmarshal(raw, &c.body))
			}
		}
		mu.Lock()
		calls = append(calls, c)
		mu.Unlock()
		if r.Method == http.MethodPatch {
			w.Write([]byte(`{"book":{"id":"b1","title":"New"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	title := "New"
	status := data.StatusReading
	book, err := client.UpdateBook(ctx, "b1", BookUpdate{Title: &title, Status: &status})
	require.NoError(t, err)
	require.NotNil(t, book)
	assert.Equal(t, "New", book.Title)

	require.NoError(t, client.UpdateProgress(ctx, "b1", data.NewProgress(5, 10)))
	require.NoError(t, client.AddNote(ctx, "b1", &data.Note{Page: 5, Content: "hmm"}))
	require.NoError(t, client.AddHighlight(ctx, "b1", &data.Highlight{Page: 5, Text: "quote"}))
	require.NoError(t, client.DeleteBook(ctx, "b1"))

	require.Len(t, calls, 5)
	assert.Equal(t, call{http.MethodPatch, "/api/books/b1", map[string]any{"title": "New", "status": "reading"}}, calls[0])

	assert.Equal(t, "/api/books/b1/progress", calls[1].path)
	assert.Equal(t, float64(5), calls[1].body["page"])
	assert.Equal(t, float64(10), calls[1].body["total_pages"])
	assert.Equal(t, float64(50), calls[1].body["progress"])

	assert.Equal(t, "/api/books/b1/notes", calls[2].path)
	assert.Equal(t, "hmm", calls[2].body["content"])
	assert.Equal(t, "/api/books/b1/highlights", calls[3].path)
	assert.Equal(t, "quote", calls[3].body["text"])
	assert.Equal(t, http.MethodDelete, calls[4].method)
}

func TestUploadBook(t *testing.T) {
	content := strings.Repeat("%PDF-1.4 data ", 1000)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Dune", r.FormValue("title"))
		assert.Equal(t, "Frank Herbert", r.FormValue("author"))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "dune.pdf", header.Filename)
		raw, _ := io.ReadAll(f)
		assert.Equal(t, content, string(raw))

		w.Write([]byte(`{"message":"Book uploaded successfully","book":{"id":"new-1","title":"Dune","file_url":"https://f/new-1.pdf"}}`))
	})

	var percents []int
	result, err := client.UploadBook(context.Background(), Upload{
		Title:    "Dune",
		Author:   "Frank Herbert",
		Filename: "/home/me/dune.pdf",
		File:     strings.NewReader(content),
		Size:     int64(len(content)),
	}, func(p int) { percents = append(percents, p) })
	require.NoError(t, err)

	assert.Equal(t, "Book uploaded successfully", result.Message)
	require.NotNil(t, result.Book)
	assert.Equal(t, "new-1", result.Book.ID)

	require.NotEmpty(t, percents)
	assert.Equal(t, 100, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestFetchFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", "8")
		w.Write([]byte("%PDF-1.7"))
	})

	body, size, err := client.FetchFile(context.Background(), "/files/book.pdf")
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, int64(8), size)
	raw, _ := io.ReadAll(body)
	assert.Equal(t, "%PDF-1.7", string(raw))

	_, _, err = client.FetchFile(context.Background(), "/files/missing.pdf")
	assert.True(t, IsNotFound(err))

	_, _, err = client.FetchFile(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchFileOutlivesRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte("%PDF-1.4"))
		flusher.Flush()
		for i := 0; i < 6; i++ {
			time.Sleep(50 * time.Millisecond)
			w.Write([]byte("\n%chunk"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 100*time.Millisecond, nil)
	body, size, err := client.FetchFile(context.Background(), "/files/slow.pdf")
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, int64(-1), size)

	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4"+strings.Repeat("\n%chunk", 6), string(raw))
}

func TestFetchFileHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(srv.URL, "", time.Second, nil)
	body, _, err := client.FetchFile(ctx, "/files/stuck.pdf")
	require.NoError(t, err)
	defer body.Close()

	cancel()
	_, err = io.ReadAll(body)
	assert.Error(t, err, "Expected a cancelled context to stop the download")
}

func TestFetchFileWaitsForHeadersUpToTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 50*time.Millisecond, nil)
	_, _, err := client.FetchFile(context.Background(), "/files/late.pdf")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "opaque-token", time.Second, nil)
	_, err := client.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer opaque-token", auth)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	got, ok := TokenExpiry(token)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 50, Percent(50, 100))
	assert.Equal(t, 100, Percent(200, 100))
	assert.Equal(t, 0, Percent(0, 0))
	assert.Equal(t, 100, Percent(5, 0))
}
