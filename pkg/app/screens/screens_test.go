package screens

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBooks() []*data.Book {
	return []*data.Book{
		{ID: "1", Title: "Dune", Status: data.StatusReading},
		{ID: "2", Title: "Emma", Status: data.StatusFavorite},
		{ID: "3", Title: "Ulysses", Status: data.StatusAll},
	}
}

func newLibraryScreen(lib *mockLibrary) *LibraryScreen {
	s := NewLibraryScreen(Deps{Library: lib}, components.NewProgressTracker(80))
	s.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return s
}

func TestLibraryScreenLoads(t *testing.T) {
	lib := &mockLibrary{listBooksFunc: func(ctx context.Context) ([]*data.Book, error) {
		return testBooks(), nil
	}}
	s := newLibraryScreen(lib)

	msg := run(s.Init())
	assert.True(t, s.loading)
	s.Update(msg)

	assert.False(t, s.loading)
	assert.Len(t, s.bookList.Items, 3)
	assert.Contains(t, s.View(), "Dune")
	assert.Contains(t, s.View(), "Favorites (1)")
}

func TestLibraryScreenShowsLoadError(t *testing.T) {
	lib := &mockLibrary{listBooksFunc: func(ctx context.Context) ([]*data.Book, error) {
		return nil, &services.UserError{Message: services.MsgLoadBooks, Err: errors.New("dial tcp")}
	}}
	s := newLibraryScreen(lib)
	s.Update(run(s.Init()))

	assert.Contains(t, s.View(), services.MsgLoadBooks)
	assert.NotContains(t, s.View(), "dial tcp")
}

func TestLibraryScreenTabsFilter(t *testing.T) {
	s := newLibraryScreen(&mockLibrary{})
	s.Update(libraryLoadedMsg{books: testBooks()})

	s.Update(keyMsg("2"))
	assert.Equal(t, data.StatusReading, s.Status())
	require.Len(t, s.bookList.Items, 1)
	assert.Equal(t, "Dune", s.bookList.Items[0].Title)

	s.Update(keyMsg("l"))
	assert.Equal(t, data.StatusPlan, s.Status())
	assert.Empty(t, s.bookList.Items)
	assert.Contains(t, s.View(), "No books in Plan to Read")

	s.Update(keyMsg("1"))
	s.Update(keyMsg("h"))
	assert.Equal(t, data.StatusFavorite, s.Status(), "tabs wrap around")
}

func TestLibraryScreenCardAction(t *testing.T) {
	var got services.Action
	lib := &mockLibrary{applyActionFunc: func(ctx context.Context, book *data.Book, action services.Action) (bool, error) {
		got = action
		book.Status = data.StatusFavorite
		return true, nil
	}}
	s := newLibraryScreen(lib)
	s.Update(libraryLoadedMsg{books: testBooks()})

	_, cmd := s.Update(keyMsg("f"))
	msg := run(cmd)
	assert.Equal(t, services.ActionFavorite, got)
	assert.Equal(t, data.StatusReading, s.books[0].Status, "book is not touched before the command returns")

	s.Update(msg)
	assert.Equal(t, data.StatusFavorite, s.books[0].Status)
	assert.Contains(t, s.View(), `"Dune" moved to Favorites`)
}

func TestLibraryScreenDeleteNeedsConfirmation(t *testing.T) {
	calls := 0
	lib := &mockLibrary{applyActionFunc: func(ctx context.Context, book *data.Book, action services.Action) (bool, error) {
		calls++
		assert.Equal(t, services.ActionDelete, action)
		return true, nil
	}}
	s := newLibraryScreen(lib)
	s.Update(libraryLoadedMsg{books: testBooks()})

	_, cmd := s.Update(keyMsg("D"))
	assert.Nil(t, cmd)
	assert.Contains(t, s.View(), "Press D again")

	s.Update(keyMsg("j"))
	_, cmd = s.Update(keyMsg("D"))
	assert.Nil(t, cmd, "moving away resets the confirmation")

	_, cmd = s.Update(keyMsg("D"))
	s.Update(run(cmd))
	assert.Equal(t, 1, calls)
	assert.Len(t, s.books, 2)
	for _, b := range s.books {
		assert.NotEqual(t, "2", b.ID)
	}
}

func TestLibraryScreenNavigation(t *testing.T) {
	s := newLibraryScreen(&mockLibrary{})
	s.Update(libraryLoadedMsg{books: testBooks()})
	s.Update(keyMsg("j"))

	_, cmd := s.Update(keyMsg("enter"))
	msg, ok := run(cmd).(SwitchScreenMsg)
	require.True(t, ok)
	assert.Equal(t, ScreenDetails, msg.Screen)
	assert.Equal(t, "Emma", msg.Data.(*data.Book).Title)

	_, cmd = s.Update(keyMsg("o"))
	assert.Equal(t, ScreenReader, run(cmd).(SwitchScreenMsg).Screen)

	_, cmd = s.Update(keyMsg("u"))
	assert.Equal(t, ScreenUpload, run(cmd).(SwitchScreenMsg).Screen)
}

func TestUploadScreenSubmit(t *testing.T) {
	var got services.UploadRequest
	lib := &mockLibrary{uploadFunc: func(ctx context.Context, req services.UploadRequest) (*api.UploadResult, error) {
		got = req
		return &api.UploadResult{Book: &data.Book{ID: "9", Title: req.Title}}, nil
	}}
	s := NewUploadScreen(Deps{Library: lib}, components.NewProgressTracker(80))
	s.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	assert.True(t, s.Capturing())
	typeText(t, s, "/tmp/dune.pdf")
	s.Update(keyMsg("tab"))
	typeText(t, s, "Dune")
	s.Update(keyMsg("enter"))
	typeText(t, s, "Frank Herbert")
	assert.Equal(t, fieldAuthor, s.focus)

	_, cmd := s.Update(keyMsg("enter"))
	assert.True(t, s.uploading)
	assert.False(t, s.Capturing())
	assert.Contains(t, s.View(), "Uploading...")

	s.Update(run(cmd))
	assert.Equal(t, services.UploadRequest{Path: "/tmp/dune.pdf", Title: "Dune", Author: "Frank Herbert"}, got)
	assert.Contains(t, s.View(), `Uploaded "Dune"`)
	assert.Empty(t, s.inputs[fieldPath].Value(), "form is reset")
	assert.Equal(t, fieldPath, s.focus)
}

func TestUploadScreenShowsError(t *testing.T) {
	lib := &mockLibrary{uploadFunc: func(ctx context.Context, req services.UploadRequest) (*api.UploadResult, error) {
		return nil, services.ErrNoFile
	}}
	s := NewUploadScreen(Deps{Library: lib}, components.NewProgressTracker(80))
	s.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	_, cmd := s.Update(keyMsg("ctrl+s"))
	s.Update(run(cmd))

	assert.False(t, s.uploading)
	assert.Contains(t, s.View(), "please select a PDF file to upload")
}

func TestUploadScreenEscGoesBack(t *testing.T) {
	s := NewUploadScreen(Deps{Library: &mockLibrary{}}, components.NewProgressTracker(80))

	_, cmd := s.Update(keyMsg("esc"))
	assert.Equal(t, ScreenLibrary, run(cmd).(SwitchScreenMsg).Screen)
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/abs/file.pdf", expandHome("/abs/file.pdf"))
	assert.Equal(t, "~user/file.pdf", expandHome("~user/file.pdf"))
	assert.False(t, strings.HasPrefix(expandHome("~/file.pdf"), "~"))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newDetailsScreen(lib *mockLibrary, book *data.Book) *DetailsScreen {
	s := NewDetailsScreen(Deps{Library: lib, Exporter: integrations.NewNotebookExporter("")}, components.NewProgressTracker(80), book)
	s.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return s
}

func TestDetailsScreenLoads(t *testing.T) {
	book := &data.Book{ID: "1", Title: "Dune", CoverURL: "https://cdn/c.png"}
	lib := &mockLibrary{
		getBookFunc: func(ctx context.Context, id string) (*data.Book, error) {
			return &data.Book{ID: id, Title: "Dune", Author: "Frank Herbert", Status: data.StatusReading,
				Progress: &data.Progress{Page: 10, TotalPages: 40, Percent: 25}}, nil
		},
		notebookFunc: func(ctx context.Context, b *data.Book) (*data.Notebook, error) {
			return &data.Notebook{Book: b,
				Notes:      []*data.Note{{Page: 3, Content: "spice\nmust flow"}},
				Highlights: []*data.Highlight{{Page: 5, Text: "Fear is the mind-killer"}},
			}, nil
		},
		coverFunc: func(ctx context.Context, b *data.Book) ([]byte, error) {
			return pngBytes(t), nil
		},
	}
	s := newDetailsScreen(lib, book)

	s.Update(s.loadDetails(book)())
	s.Update(s.loadCover(book)())

	view := s.View()
	for _, want := range []string{"Frank Herbert", "Currently Reading", "Page 10 of 40", "Highlights (1)", "Fear is the mind-killer", "spice must flow", "▀"} {
		assert.Contains(t, view, want)
	}
}

func TestDetailsScreenKeepsBookWhenRefreshFails(t *testing.T) {
	book := &data.Book{ID: "1", Title: "Dune"}
	lib := &mockLibrary{getBookFunc: func(ctx context.Context, id string) (*data.Book, error) {
		return nil, &services.UserError{Message: "Book not found"}
	}}
	s := newDetailsScreen(lib, book)
	s.Update(s.loadDetails(book)())

	assert.Equal(t, book, s.book)
	assert.Contains(t, s.View(), "Error: Book not found")
}

func TestDetailsScreenCyclesStatus(t *testing.T) {
	var got data.ReadingStatus
	lib := &mockLibrary{setStatusFunc: func(ctx context.Context, id string, status data.ReadingStatus) error {
		got = status
		return nil
	}}
	s := newDetailsScreen(lib, &data.Book{ID: "1", Title: "Dune", Status: data.StatusPlan})

	_, cmd := s.Update(keyMsg("s"))
	s.Update(run(cmd))

	assert.Equal(t, data.StatusCompleted, got)
	assert.Equal(t, data.StatusCompleted, s.book.Status)
	assert.Contains(t, s.View(), "Moved to Completed")
}

func TestNextStatus(t *testing.T) {
	assert.Equal(t, data.StatusReading, nextStatus(data.StatusAll))
	assert.Equal(t, data.StatusAll, nextStatus(data.StatusFavorite))
	assert.Equal(t, data.StatusReading, nextStatus(""))
}

func TestDetailsScreenExport(t *testing.T) {
	lib := &mockLibrary{exportFunc: func(ctx context.Context, book *data.Book, exporter integrations.Exporter) (string, error) {
		return "", integrations.ErrEmptyNotebook
	}}
	s := newDetailsScreen(lib, &data.Book{ID: "1", Title: "Dune"})

	_, cmd := s.Update(keyMsg("e"))
	assert.Contains(t, s.View(), "Exporting notebook...")
	s.Update(run(cmd))
	assert.Nil(t, s.err)
	assert.Contains(t, s.View(), "Nothing to export yet")

	lib.exportFunc = func(ctx context.Context, book *data.Book, exporter integrations.Exporter) (string, error) {
		return "/exports/Dune-notes.epub", nil
	}
	_, cmd = s.Update(keyMsg("e"))
	s.Update(run(cmd))
	assert.Contains(t, s.View(), "Notebook exported to /exports/Dune-notes.epub")
}

func TestDetailsScreenDeleteReturnsToLibrary(t *testing.T) {
	lib := &mockLibrary{applyActionFunc: func(ctx context.Context, book *data.Book, action services.Action) (bool, error) {
		return true, nil
	}}
	s := newDetailsScreen(lib, &data.Book{ID: "1", Title: "Dune"})

	_, cmd := s.Update(keyMsg("D"))
	assert.Nil(t, cmd)
	_, cmd = s.Update(keyMsg("D"))
	_, cmd = s.Update(run(cmd))
	assert.Equal(t, ScreenLibrary, run(cmd).(SwitchScreenMsg).Screen)
}

func openReader(t *testing.T, pages int) *ReaderScreen {
	t.Helper()
	session := newTestSession(t, &data.Book{ID: "1", Title: "Dune", FileURL: "https://cdn/dune.pdf"}, pages)
	s := NewReaderScreen(session, components.NewProgressTracker(80), nil)
	s.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	s.Update(run(s.Init()))
	require.True(t, session.Loaded())
	return s
}

func TestReaderScreenOpens(t *testing.T) {
	s := openReader(t, 3)

	view := s.View()
	assert.Contains(t, view, "Dune")
	assert.Contains(t, view, "Page 1 of 3 • 150%")
	assert.Contains(t, view, "page")
	assert.Contains(t, view, "n: note")
}

func TestReaderScreenNavigationAndZoom(t *testing.T) {
	s := openReader(t, 3)

	s.Update(keyMsg("right"))
	assert.Equal(t, 2, s.session.Page())
	s.Update(keyMsg("G"))
	assert.Equal(t, 3, s.session.Page())
	s.Update(keyMsg("right"))
	assert.Equal(t, 3, s.session.Page())
	s.Update(keyMsg("b"))
	s.Update(keyMsg("g"))
	assert.Equal(t, 1, s.session.Page())

	s.Update(keyMsg("+"))
	assert.InDelta(t, 1.6, s.session.Scale(), 1e-9)
	s.Update(keyMsg("0"))
	assert.InDelta(t, 1.5, s.session.Scale(), 1e-9)
}

func TestReaderScreenGoTo(t *testing.T) {
	s := openReader(t, 5)

	s.Update(keyMsg(":"))
	assert.True(t, s.Capturing())
	typeText(t, s, "4")
	s.Update(keyMsg("enter"))
	assert.False(t, s.Capturing())
	assert.Equal(t, 4, s.session.Page())

	s.Update(keyMsg(":"))
	typeText(t, s, "9")
	s.Update(keyMsg("enter"))
	assert.Equal(t, 4, s.session.Page())
	assert.Contains(t, s.View(), "Enter a page between 1 and 5")
}

func TestReaderScreenFullscreen(t *testing.T) {
	s := openReader(t, 2)

	s.Update(keyMsg("f"))
	assert.True(t, s.session.Fullscreen())
	assert.NotContains(t, s.View(), "Page 1 of 2")
	assert.Equal(t, 30, s.viewport.Height)

	s.Update(keyMsg("f"))
	assert.Contains(t, s.View(), "Page 1 of 2")
	assert.Less(t, s.viewport.Height, 30)
}

func TestReaderScreenAddsNoteAndHighlight(t *testing.T) {
	s := openReader(t, 3)
	s.Update(keyMsg("right"))

	s.Update(keyMsg("n"))
	assert.Equal(t, modeNote, s.mode)
	typeText(t, s, "great line")
	_, cmd := s.Update(keyMsg("enter"))
	s.Update(run(cmd))
	assert.Contains(t, s.View(), "Note saved on page 2")

	s.Update(keyMsg("h"))
	assert.Equal(t, modeHighlight, s.mode)
	s.Update(keyMsg("esc"))
	assert.Equal(t, modeRead, s.mode, "esc cancels the input")

	s.Update(keyMsg("h"))
	_, cmd = s.Update(keyMsg("enter"))
	s.Update(run(cmd))
	assert.ErrorIs(t, s.err, reader.ErrEmptyText)
}

func TestReaderScreenShowsLoadError(t *testing.T) {
	session := reader.NewSession(&data.Book{ID: "1", Title: "Dune"}, reader.Deps{}, 1.5)
	s := NewReaderScreen(session, components.NewProgressTracker(80), nil)
	s.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	s.Update(run(s.Init()))

	assert.Contains(t, s.View(), "PDF URL is required")

	_, cmd := s.Update(keyMsg("right"))
	assert.Nil(t, cmd)
}

func TestReaderScreenEscClosesSession(t *testing.T) {
	s := openReader(t, 2)

	_, cmd := s.Update(keyMsg("esc"))
	msg := run(cmd).(SwitchScreenMsg)

	assert.Equal(t, ScreenDetails, msg.Screen)
	assert.Equal(t, "1", msg.Data.(*data.Book).ID)
	assert.False(t, s.session.Loaded())
}

func TestReaderScreenEscWhileLoadingCancelsOpen(t *testing.T) {
	fetcher := blockingFetcher{started: make(chan struct{})}
	session := reader.NewSession(&data.Book{ID: "1", Title: "Dune", FileURL: "https://cdn/dune.pdf"}, reader.Deps{
		Store:   setupTestRepo(t),
		Fetcher: fetcher,
		Opener:  fakeOpener{pages: 3},
	}, 1.5)
	s := NewReaderScreen(session, components.NewProgressTracker(80), nil)
	s.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	open := s.Init()
	opened := make(chan tea.Msg, 1)
	go func() { opened <- run(open) }()
	<-fetcher.started

	_, cmd := s.Update(keyMsg("esc"))
	assert.Equal(t, ScreenDetails, run(cmd).(SwitchScreenMsg).Screen)

	select {
	case msg := <-opened:
		assert.ErrorIs(t, msg.(sessionOpenedMsg).err, reader.ErrLoadFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the load to be cancelled")
	}
	assert.False(t, session.Loaded())
}

func TestRootScreenSwitchesScreens(t *testing.T) {
	var gotScale float64
	lib := &mockLibrary{newSessionFunc: func(book *data.Book, syncer *reader.ProgressSyncer, scale float64) *reader.Session {
		gotScale = scale
		return newTestSession(t, book, 2)
	}}
	r := NewRootScreen(Deps{Library: lib, Scale: 2})
	r.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	r.Update(SwitchScreenMsg{Screen: ScreenUpload})
	assert.Equal(t, uploadView, r.currentView)

	r.Update(SwitchScreenMsg{Screen: ScreenDetails, Data: &data.Book{ID: "1", Title: "Dune"}})
	assert.Equal(t, detailsView, r.currentView)
	require.NotNil(t, r.details)

	r.Update(SwitchScreenMsg{Screen: ScreenReader, Data: &data.Book{ID: "1", Title: "Dune"}})
	assert.Equal(t, readerView, r.currentView)
	assert.Equal(t, 2.0, gotScale)
	require.NotNil(t, r.reader)
	assert.Equal(t, 30, r.reader.height, "the reader gets the whole screen")

	r.Update(SwitchScreenMsg{Screen: ScreenLibrary})
	assert.Nil(t, r.reader)
	assert.Equal(t, 28, r.library.height)

	r.Update(SwitchScreenMsg{Screen: ScreenDetails, Data: "not a book"})
	assert.Equal(t, libraryView, r.currentView)
}

func TestRootScreenKeys(t *testing.T) {
	r := NewRootScreen(Deps{Library: &mockLibrary{}})
	r.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	_, cmd := r.Update(keyMsg("tab"))
	r.Update(run(cmd))
	assert.Equal(t, uploadView, r.currentView)

	// Typing in the upload form does not quit
	_, cmd = r.Update(keyMsg("q"))
	assert.Equal(t, "q", r.upload.inputs[fieldPath].Value())
	if cmd != nil {
		_, quit := cmd().(tea.QuitMsg)
		assert.False(t, quit)
	}

	_, cmd = r.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	_, quit := run(cmd).(tea.QuitMsg)
	assert.True(t, quit)
}

func TestRootScreenTracksTransfers(t *testing.T) {
	ch := make(chan services.TransferProgress, 1)
	r := NewRootScreen(Deps{Library: &mockLibrary{}, Downloads: ch})

	ch <- services.TransferProgress{ID: "1", Title: "Dune", Kind: services.TransferDownload, Status: services.StatusDownloading}
	msg := run(listenForProgress(ch))
	_, cmd := r.Update(msg)

	assert.True(t, r.transfers.HasActive())
	assert.NotNil(t, cmd, "listening continues")

	close(ch)
	assert.Nil(t, run(listenForProgress(ch)))
	assert.Nil(t, listenForProgress(nil))
}

func TestRootScreenCloseFlushesReader(t *testing.T) {
	lib := &mockLibrary{newSessionFunc: func(book *data.Book, syncer *reader.ProgressSyncer, scale float64) *reader.Session {
		return newTestSession(t, book, 2)
	}}
	r := NewRootScreen(Deps{Library: lib})
	r.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	r.Update(SwitchScreenMsg{Screen: ScreenReader, Data: &data.Book{ID: "1", Title: "Dune", FileURL: "x"}})
	session := r.reader.session
	r.Update(run(r.reader.Init()))
	require.True(t, session.Loaded())

	assert.NoError(t, r.Close())
	assert.False(t, session.Loaded())
	assert.Nil(t, r.reader)
	assert.NoError(t, r.Close())
}
