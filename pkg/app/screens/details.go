package screens

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/kerbaras/shelf/pkg/utils"
)

const (
	coverCols = 24
	coverRows = 12
	// maxEntries caps how many notes and highlights are listed
	maxEntries = 5
)

type DetailsScreen struct {
	deps          Deps
	transfers     *components.ProgressTracker
	book          *data.Book
	notebook      *data.Notebook
	cover         string
	confirmDelete bool
	busy          string
	message       string
	width         int
	height        int
	err           error
}

func NewDetailsScreen(deps Deps, transfers *components.ProgressTracker, book *data.Book) *DetailsScreen {
	if deps.Log == nil {
		deps.Log = utils.Discard()
	}
	return &DetailsScreen{
		deps:      deps,
		transfers: transfers,
		book:      book,
	}
}

func (s *DetailsScreen) Init() tea.Cmd {
	return tea.Batch(
		s.loadDetails(s.book),
		s.loadCover(s.book),
	)
}

func (s *DetailsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height

	case tea.KeyMsg:
		key := msg.String()
		if key != "D" {
			s.confirmDelete = false
		}
		switch key {
		case "enter", "o":
			return s, switchTo(ScreenReader, s.book)
		case "s":
			return s, s.setStatus(nextStatus(s.book.Status))
		case "f", "c", "x", "p":
			return s, s.applyAction(actionKeys[key])
		case "e":
			s.busy = "Exporting notebook..."
			return s, s.export(s.book)
		case "d":
			s.busy = "Downloading..."
			return s, s.fetch(s.book)
		case "D":
			if !s.confirmDelete {
				s.confirmDelete = true
				s.message = "Press D again to delete this book"
				break
			}
			s.confirmDelete = false
			return s, s.applyAction(services.ActionDelete)
		case "r":
			return s, s.Init()
		case "esc", "backspace":
			return s, switchTo(ScreenLibrary, nil)
		}

	case detailsLoadedMsg:
		s.err = msg.err
		if msg.book != nil {
			s.book = msg.book
		}
		if msg.notebook != nil {
			s.notebook = msg.notebook
		}

	case coverLoadedMsg:
		// A missing cover is not worth an error on screen
		s.cover = msg.preview

	case actionDoneMsg:
		s.busy = ""
		s.err = msg.err
		if msg.action == services.ActionDelete && msg.err == nil {
			return s, switchTo(ScreenLibrary, nil)
		}
		if msg.changed {
			s.book.Status = msg.book.Status
			s.message = fmt.Sprintf("Moved to %s", msg.book.Status.Label())
		}

	case exportDoneMsg:
		s.busy = ""
		s.err = msg.err
		if errors.Is(msg.err, integrations.ErrEmptyNotebook) {
			s.err = nil
			s.message = "Nothing to export yet: add notes or highlights while reading"
		} else if msg.err == nil {
			s.message = fmt.Sprintf("Notebook exported to %s", msg.path)
		}

	case fetchDoneMsg:
		s.busy = ""
		s.err = msg.err
		if msg.err == nil {
			s.message = fmt.Sprintf("Saved to %s", msg.path)
		}
	}

	return s, nil
}

// nextStatus cycles through the shelves a book can be put on
func nextStatus(current data.ReadingStatus) data.ReadingStatus {
	for i, status := range data.Statuses {
		if status == current {
			return data.Statuses[(i+1)%len(data.Statuses)]
		}
	}
	return data.StatusReading
}

func (s *DetailsScreen) View() string {
	if s.width == 0 || s.book == nil {
		return "Loading..."
	}

	header := styles.TitleStyle.Render(fmt.Sprintf("📖 %s", s.book.Title))

	var notice string
	switch {
	case s.err != nil:
		notice = styles.StatusError.Render(fmt.Sprintf("Error: %s", errorText(s.err))) + "\n\n"
	case s.busy != "":
		notice = styles.StatusActive.Render(s.busy) + "\n\n"
	case s.message != "":
		notice = styles.SuccessStyle.Render(s.message) + "\n\n"
	}

	info := s.renderBookInfo()
	if s.cover != "" {
		info = lipgloss.JoinHorizontal(lipgloss.Top, s.cover, "  ", info)
	}

	help := styles.HelpStyle.Render(
		"enter/o: read • s: next shelf • f: favorite • c: completed • x/p: remove from list • " +
			"e: export notebook • d: download • D: delete • r: refresh • esc: back • q: quit",
	)

	return fmt.Sprintf("%s\n\n%s%s\n\n%s\n%s%s", header, notice, info, s.renderNotebook(), s.transfers.View(), help)
}

func (s *DetailsScreen) renderBookInfo() string {
	author := s.book.Author
	if author == "" {
		author = "Unknown author"
	}

	progress := styles.MutedStyle.Render("Not started")
	if p := s.book.Progress; p != nil && p.Page > 0 {
		counter := fmt.Sprintf("Page %d", p.Page)
		if p.TotalPages > 0 {
			counter = fmt.Sprintf("Page %d of %d", p.Page, p.TotalPages)
		}
		progress = fmt.Sprintf("%s %3.0f%%  %s", components.ProgressBar(p.Percent, 20), p.Percent, counter)
	}

	lines := []string{
		styles.TextStyle.Render(author),
		"",
		styles.ShelfStyle(s.book.Status).Render(s.book.Status.Label()),
		progress,
	}
	if !s.book.CreatedAt.IsZero() {
		lines = append(lines, styles.MutedStyle.Render("Added "+s.book.CreatedAt.Local().Format("Jan 2, 2006")))
	}
	lines = append(lines, styles.MutedStyle.Render("ID: "+s.book.ID))

	width := s.width - 4
	if s.cover != "" {
		width -= coverCols + 2
	}
	return styles.CardStyle.Width(max(width, 20)).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (s *DetailsScreen) renderNotebook() string {
	if s.notebook == nil {
		return ""
	}
	if len(s.notebook.Notes) == 0 && len(s.notebook.Highlights) == 0 {
		return styles.MutedStyle.Render("No notes or highlights yet") + "\n"
	}

	width := max(s.width-12, 20)
	var b strings.Builder
	if n := len(s.notebook.Highlights); n > 0 {
		b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("Highlights (%d)", n)))
		b.WriteString("\n")
		for _, h := range lastN(s.notebook.Highlights, maxEntries) {
			b.WriteString(fmt.Sprintf("  p.%-4d %s\n", h.Page, styles.TextStyle.Render("“"+utils.Truncate(h.Text, width)+"”")))
		}
		b.WriteString("\n")
	}
	if n := len(s.notebook.Notes); n > 0 {
		b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("Notes (%d)", n)))
		b.WriteString("\n")
		for _, note := range lastN(s.notebook.Notes, maxEntries) {
			content := strings.Join(strings.Fields(note.Content), " ")
			b.WriteString(fmt.Sprintf("  p.%-4d %s\n", note.Page, styles.TextStyle.Render(utils.Truncate(content, width))))
		}
	}
	return b.String()
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

// Messages
type detailsLoadedMsg struct {
	book     *data.Book
	notebook *data.Notebook
	err      error
}

type coverLoadedMsg struct {
	preview string
}

type exportDoneMsg struct {
	path string
	err  error
}

type fetchDoneMsg struct {
	path string
	err  error
}

// Commands
func (s *DetailsScreen) loadDetails(current *data.Book) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		book, err := s.deps.Library.GetBook(ctx, current.ID)
		if err != nil {
			// Keep showing what the library had
			book = current
		}
		notebook, nerr := s.deps.Library.Notebook(ctx, book)
		if err == nil {
			err = nerr
		}
		return detailsLoadedMsg{book: book, notebook: notebook, err: err}
	}
}

func (s *DetailsScreen) loadCover(book *data.Book) tea.Cmd {
	log := s.deps.Log.WithField("book_id", book.ID)
	return func() tea.Msg {
		raw, err := s.deps.Library.Cover(context.Background(), book)
		if err != nil {
			log.WithError(err).Debug("no cover preview")
			return coverLoadedMsg{}
		}
		if len(raw) == 0 {
			return coverLoadedMsg{}
		}
		preview, err := integrations.CoverPreview{Cols: coverCols, Rows: coverRows}.Render(bytes.NewReader(raw))
		if err != nil {
			log.WithError(err).Debug("cover could not be decoded")
			return coverLoadedMsg{}
		}
		return coverLoadedMsg{preview: preview}
	}
}

func (s *DetailsScreen) setStatus(status data.ReadingStatus) tea.Cmd {
	id := s.book.ID
	return func() tea.Msg {
		err := s.deps.Library.SetStatus(context.Background(), id, status)
		return actionDoneMsg{book: &data.Book{ID: id, Status: status}, changed: true, err: err}
	}
}

func (s *DetailsScreen) applyAction(action services.Action) tea.Cmd {
	copied := *s.book
	return func() tea.Msg {
		changed, err := s.deps.Library.ApplyAction(context.Background(), &copied, action)
		return actionDoneMsg{book: &copied, action: action, changed: changed, err: err}
	}
}

func (s *DetailsScreen) export(book *data.Book) tea.Cmd {
	return func() tea.Msg {
		if s.deps.Exporter == nil {
			return exportDoneMsg{err: errors.New("no exporter configured")}
		}
		path, err := s.deps.Library.Export(context.Background(), book, s.deps.Exporter)
		return exportDoneMsg{path: path, err: err}
	}
}

func (s *DetailsScreen) fetch(book *data.Book) tea.Cmd {
	return func() tea.Msg {
		path, err := s.deps.Library.Fetch(context.Background(), book, false)
		return fetchDoneMsg{path: path, err: err}
	}
}
