package services

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/data"
)

// Mock implementations for testing

type mockLibrary struct {
	listBooksFunc      func(ctx context.Context) ([]*data.Book, error)
	getBookFunc        func(ctx context.Context, id string) (*data.Book, error)
	uploadBookFunc     func(ctx context.Context, upload api.Upload, onProgress func(int)) (*api.UploadResult, error)
	updateBookFunc     func(ctx context.Context, id string, update api.BookUpdate) (*data.Book, error)
	deleteBookFunc     func(ctx context.Context, id string) error
	updateProgressFunc func(ctx context.Context, id string, progress data.Progress) error
	addNoteFunc        func(ctx context.Context, id string, note *data.Note) error
	addHighlightFunc   func(ctx context.Context, id string, h *data.Highlight) error
	fetchFileFunc      func(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

func (m *mockLibrary) ListBooks(ctx context.Context) ([]*data.Book, error) {
	if m.listBooksFunc != nil {
		return m.listBooksFunc(ctx)
	}
	return nil, nil
}

func (m *mockLibrary) GetBook(ctx context.Context, id string) (*data.Book, error) {
	if m.getBookFunc != nil {
		return m.getBookFunc(ctx, id)
	}
	return &data.Book{ID: id}, nil
}

func (m *mockLibrary) UploadBook(ctx context.Context, upload api.Upload, onProgress func(int)) (*api.UploadResult, error) {
	if m.uploadBookFunc != nil {
		return m.uploadBookFunc(ctx, upload, onProgress)
	}
	return &api.UploadResult{}, nil
}

func (m *mockLibrary) UpdateBook(ctx context.Context, id string, update api.BookUpdate) (*data.Book, error) {
	if m.updateBookFunc != nil {
		return m.updateBookFunc(ctx, id, update)
	}
	return nil, nil
}

func (m *mockLibrary) DeleteBook(ctx context.Context, id string) error {
	if m.deleteBookFunc != nil {
		return m.deleteBookFunc(ctx, id)
	}
	return nil
}

func (m *mockLibrary) UpdateProgress(ctx context.Context, id string, progress data.Progress) error {
	if m.updateProgressFunc != nil {
		return m.updateProgressFunc(ctx, id, progress)
	}
	return nil
}

func (m *mockLibrary) AddNote(ctx context.Context, id string, note *data.Note) error {
	if m.addNoteFunc != nil {
		return m.addNoteFunc(ctx, id, note)
	}
	return nil
}

func (m *mockLibrary) AddHighlight(ctx context.Context, id string, h *data.Highlight) error {
	if m.addHighlightFunc != nil {
		return m.addHighlightFunc(ctx, id, h)
	}
	return nil
}

func (m *mockLibrary) FetchFile(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	if m.fetchFileFunc != nil {
		return m.fetchFileFunc(ctx, url)
	}
	return io.NopCloser(strings.NewReader("")), 0, nil
}

// Test helpers

func setupTestRepo(t *testing.T) *data.Repository {
	t.Helper()
	repo, err := data.NewDuckDBRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestController(t *testing.T, library api.Library) (*LibraryController, *data.Repository) {
	t.Helper()
	repo := setupTestRepo(t)
	controller := NewLibraryController(library, repo, t.TempDir(), nil)
	t.Cleanup(controller.Close)
	return controller, repo
}

// drain collects what is buffered on a progress channel
func drain(ch <-chan TransferProgress) []TransferProgress {
	var out []TransferProgress
	for {
		select {
		case p := <-ch:
			out = append(out, p)
		default:
			return out
		}
	}
}
