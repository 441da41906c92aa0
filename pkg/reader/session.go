// Package reader drives a reading session over one book: navigation, zoom,
// fullscreen, and persisting where the reader is.
package reader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/document"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	DefaultScale = 1.5
	MinScale     = 0.5
	MaxScale     = 3.0
	ScaleStep    = 0.1
)

var (
	ErrNoFileURL  = errors.New("PDF URL is required")
	ErrLoadFailed = errors.New("Failed to load PDF. Please try again.")
	ErrNoDocument = errors.New("no document loaded")
	ErrEmptyText  = errors.New("text is empty")
	ErrNotSynced  = errors.New("saved locally but not synced")
	ErrNoPages    = errors.New("document has no pages")
	ErrClosed     = errors.New("session is closed")
)

// Store is the local persistence a session needs
type Store interface {
	SetProgress(bookID string, page, totalPages int) (data.Progress, error)
	GetReaderState(bookID string) (*data.ReaderState, error)
	SaveReaderState(state *data.ReaderState) error
	AddNote(note *data.Note) error
	AddHighlight(h *data.Highlight) error
}

// Annotator posts notes and highlights to the backend
type Annotator interface {
	AddNote(ctx context.Context, bookID string, note *data.Note) error
	AddHighlight(ctx context.Context, bookID string, highlight *data.Highlight) error
}

// Fetcher makes a book file available locally and returns its path
type Fetcher interface {
	Fetch(ctx context.Context, book *data.Book, refresh bool) (string, error)
}

type Deps struct {
	Store     Store
	Annotator Annotator
	Fetcher   Fetcher
	Opener    document.Opener
	Syncer    *ProgressSyncer
	Log       logrus.FieldLogger
}

// Session is the state of one open book. It is safe for concurrent use.
type Session struct {
	book *data.Book
	deps Deps
	log  logrus.FieldLogger

	defaultScale float64

	mu         sync.Mutex
	doc        document.Document
	page       int
	total      int
	scale      float64
	fullscreen bool
	closed     bool
	err        error
}

// NewSession prepares a session; nothing is loaded until Open
func NewSession(book *data.Book, deps Deps, defaultScale float64) *Session {
	if deps.Log == nil {
		deps.Log = utils.Discard()
	}
	if defaultScale == 0 {
		defaultScale = DefaultScale
	}
	return &Session{
		book:         book,
		deps:         deps,
		log:          deps.Log.WithField("book_id", book.ID),
		defaultScale: clampScale(defaultScale),
		page:         1,
		scale:        clampScale(defaultScale),
	}
}

// Open fetches the book file, decodes it and restores the last position.
// The error returned wraps the cause; Err keeps the user-facing one.
func (s *Session) Open(ctx context.Context) error {
	if strings.TrimSpace(s.book.FileURL) == "" {
		s.setErr(ErrNoFileURL)
		return ErrNoFileURL
	}

	path, err := s.deps.Fetcher.Fetch(ctx, s.book, false)
	if err != nil {
		return s.failLoad(err)
	}
	doc, err := s.deps.Opener.Open(path)
	if err != nil {
		return s.failLoad(err)
	}
	if doc.NumPages() < 1 {
		doc.Close()
		return s.failLoad(ErrNoPages)
	}

	state, err := s.deps.Store.GetReaderState(s.book.ID)
	if err != nil {
		s.log.WithError(err).Warn("failed to read reader state")
		state = nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		doc.Close()
		return ErrClosed
	}
	if s.doc != nil {
		s.doc.Close()
	}
	s.doc = doc
	s.total = doc.NumPages()
	s.page = s.startPage(state)
	if state != nil && state.Scale > 0 {
		s.scale = clampScale(state.Scale)
	}
	s.err = nil
	s.persistLocked()
	s.mu.Unlock()

	s.log.WithField("page", s.page).WithField("total", s.total).Info("book opened")
	return nil
}

func (s *Session) failLoad(err error) error {
	s.log.WithError(err).Error("failed to load book")
	s.setErr(ErrLoadFailed)
	return fmt.Errorf("%w: %w", ErrLoadFailed, err)
}

// startPage is the saved reader position, then remote progress, then 1
func (s *Session) startPage(state *data.ReaderState) int {
	page := 1
	switch {
	case state != nil && state.Page > 0:
		page = state.Page
	case s.book.Progress != nil && s.book.Progress.Page > 0:
		page = s.book.Progress.Page
	}
	if s.total > 0 && page > s.total {
		page = s.total
	}
	return max(page, 1)
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Session) Book() *data.Book { return s.book }

func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *Session) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

func (s *Session) Fullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullscreen
}

// Err is the last load error in a form fit to show the user
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil
}

func (s *Session) Progress() data.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return data.NewProgress(s.page, s.total)
}

// Next moves one page forward; it reports whether the page changed
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.page + 1)
}

func (s *Session) Prev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.page - 1)
}

// GoTo jumps to page n; pages outside the document are ignored
func (s *Session) GoTo(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(n)
}

func (s *Session) First() bool {
	return s.GoTo(1)
}

func (s *Session) Last() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.total)
}

func (s *Session) goToLocked(n int) bool {
	if s.doc == nil || n < 1 || n > s.total || n == s.page {
		return false
	}
	s.page = n
	s.persistLocked()
	return true
}

func (s *Session) ZoomIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setScaleLocked(s.scale + ScaleStep)
}

func (s *Session) ZoomOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setScaleLocked(s.scale - ScaleStep)
}

// ResetZoom goes back to the configured default scale
func (s *Session) ResetZoom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setScaleLocked(s.defaultScale)
}

func (s *Session) setScaleLocked(scale float64) bool {
	scale = clampScale(scale)
	if scale == s.scale {
		return false
	}
	s.scale = scale
	if s.doc != nil {
		s.persistLocked()
	}
	return true
}

func clampScale(scale float64) float64 {
	scale = math.Round(scale*10) / 10
	return math.Min(MaxScale, math.Max(MinScale, scale))
}

func (s *Session) ToggleFullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullscreen = !s.fullscreen
	return s.fullscreen
}

// persistLocked writes progress and reader state locally and queues the
// remote progress update. Local failures are logged, not surfaced.
func (s *Session) persistLocked() {
	entry := s.log.WithField("page", s.page)

	progress, err := s.deps.Store.SetProgress(s.book.ID, s.page, s.total)
	if err != nil {
		entry.WithError(err).Warn("failed to save progress")
		progress = data.NewProgress(s.page, s.total)
	}
	state := &data.ReaderState{BookID: s.book.ID, Page: s.page, Scale: s.scale}
	if err := s.deps.Store.SaveReaderState(state); err != nil {
		entry.WithError(err).Warn("failed to save reader state")
	}
	if s.deps.Syncer != nil {
		s.deps.Syncer.Push(s.book.ID, progress)
	}
}

// Render lays out the current page at the current scale, cut to maxCols
func (s *Session) Render(maxCols int) ([]string, error) {
	s.mu.Lock()
	doc, page, scale := s.doc, s.page, s.scale
	s.mu.Unlock()

	if doc == nil {
		return nil, ErrNoDocument
	}
	p, err := doc.Page(page)
	if err != nil {
		return nil, err
	}
	return document.Render(p, scale, maxCols), nil
}

// AddNote saves a note on the current page locally, then on the backend. When
// only the remote step fails the note is returned with an ErrNotSynced error.
func (s *Session) AddNote(ctx context.Context, content string) (*data.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyText
	}
	note := &data.Note{BookID: s.book.ID, Page: s.Page(), Content: content}
	if err := s.deps.Store.AddNote(note); err != nil {
		return nil, err
	}
	if s.deps.Annotator == nil {
		return note, nil
	}
	if err := s.deps.Annotator.AddNote(ctx, s.book.ID, note); err != nil {
		s.log.WithError(err).Warn("failed to post note")
		return note, fmt.Errorf("%w: %w", ErrNotSynced, err)
	}
	return note, nil
}

func (s *Session) AddHighlight(ctx context.Context, text, color string) (*data.Highlight, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if color == "" {
		color = "yellow"
	}
	h := &data.Highlight{BookID: s.book.ID, Page: s.Page(), Text: text, Color: color}
	if err := s.deps.Store.AddHighlight(h); err != nil {
		return nil, err
	}
	if s.deps.Annotator == nil {
		return h, nil
	}
	if err := s.deps.Annotator.AddHighlight(ctx, s.book.ID, h); err != nil {
		s.log.WithError(err).Warn("failed to post highlight")
		return h, fmt.Errorf("%w: %w", ErrNotSynced, err)
	}
	return h, nil
}

// Close flushes pending progress and releases the document. An Open still
// in flight discards what it loaded.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	var err error
	if s.deps.Syncer != nil {
		err = s.deps.Syncer.Flush(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		if cerr := s.doc.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.doc = nil
	}
	return err
}
