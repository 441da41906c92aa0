package screens

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/document"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/kerbaras/shelf/pkg/services"
)

// Mock implementations for testing

type mockLibrary struct {
	listBooksFunc   func(ctx context.Context) ([]*data.Book, error)
	getBookFunc     func(ctx context.Context, id string) (*data.Book, error)
	uploadFunc      func(ctx context.Context, req services.UploadRequest) (*api.UploadResult, error)
	setStatusFunc   func(ctx context.Context, id string, status data.ReadingStatus) error
	applyActionFunc func(ctx context.Context, book *data.Book, action services.Action) (bool, error)
	notebookFunc    func(ctx context.Context, book *data.Book) (*data.Notebook, error)
	coverFunc       func(ctx context.Context, book *data.Book) ([]byte, error)
	exportFunc      func(ctx context.Context, book *data.Book, exporter integrations.Exporter) (string, error)
	fetchFunc       func(ctx context.Context, book *data.Book, refresh bool) (string, error)
	newSessionFunc  func(book *data.Book, syncer *reader.ProgressSyncer, scale float64) *reader.Session
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
	return &data.Book{ID: id, Title: "Book " + id, Status: data.StatusAll}, nil
}

func (m *mockLibrary) Upload(ctx context.Context, req services.UploadRequest) (*api.UploadResult, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, req)
	}
	return &api.UploadResult{}, nil
}

func (m *mockLibrary) SetStatus(ctx context.Context, id string, status data.ReadingStatus) error {
	if m.setStatusFunc != nil {
		return m.setStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockLibrary) ApplyAction(ctx context.Context, book *data.Book, action services.Action) (bool, error) {
	if m.applyActionFunc != nil {
		return m.applyActionFunc(ctx, book, action)
	}
	return false, nil
}

func (m *mockLibrary) Notebook(ctx context.Context, book *data.Book) (*data.Notebook, error) {
	if m.notebookFunc != nil {
		return m.notebookFunc(ctx, book)
	}
	return &data.Notebook{Book: book}, nil
}

func (m *mockLibrary) Cover(ctx context.Context, book *data.Book) ([]byte, error) {
	if m.coverFunc != nil {
		return m.coverFunc(ctx, book)
	}
	return nil, nil
}

func (m *mockLibrary) Export(ctx context.Context, book *data.Book, exporter integrations.Exporter) (string, error) {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, book, exporter)
	}
	return "", nil
}

func (m *mockLibrary) Fetch(ctx context.Context, book *data.Book, refresh bool) (string, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, book, refresh)
	}
	return "/cache/" + book.ID + ".pdf", nil
}

func (m *mockLibrary) NewSession(book *data.Book, syncer *reader.ProgressSyncer, scale float64) *reader.Session {
	if m.newSessionFunc != nil {
		return m.newSessionFunc(book, syncer, scale)
	}
	return reader.NewSession(book, reader.Deps{}, scale)
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, book *data.Book, refresh bool) (string, error) {
	return "/cache/" + book.ID + ".pdf", nil
}

// blockingFetcher holds Fetch until the context is done
type blockingFetcher struct {
	started chan struct{}
}

func (f blockingFetcher) Fetch(ctx context.Context, book *data.Book, refresh bool) (string, error) {
	close(f.started)
	<-ctx.Done()
	return "", ctx.Err()
}

type fakeDocument struct {
	pages int
}

func (d *fakeDocument) NumPages() int { return d.pages }

func (d *fakeDocument) Page(n int) (*document.Page, error) {
	if n < 1 || n > d.pages {
		return nil, document.ErrPageOutOfRange
	}
	return &document.Page{Number: n, Width: 60, Height: 12, Glyphs: []document.Glyph{{X: 0, Y: 6, S: "page"}}}, nil
}

func (d *fakeDocument) Close() error { return nil }

type fakeOpener struct {
	pages int
}

func (o fakeOpener) Open(path string) (document.Document, error) {
	return &fakeDocument{pages: o.pages}, nil
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

// newTestSession returns a session over a fake document backed by a real store
func newTestSession(t *testing.T, book *data.Book, pages int) *reader.Session {
	t.Helper()
	return reader.NewSession(book, reader.Deps{
		Store:   setupTestRepo(t),
		Fetcher: fakeFetcher{},
		Opener:  fakeOpener{pages: pages},
	}, 1.5)
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func typeText(t *testing.T, model tea.Model, text string) {
	t.Helper()
	for _, r := range text {
		model.Update(keyMsg(string(r)))
	}
}

// run executes a command, returning nil for a nil command
func run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}
