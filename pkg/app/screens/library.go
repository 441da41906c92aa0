package screens

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/services"
)

// actionKeys maps card menu keys to controller actions
var actionKeys = map[string]services.Action{
	"f": services.ActionFavorite,
	"c": services.ActionCompleted,
	"x": services.ActionRemoveCurrent,
	"p": services.ActionRemovePlan,
}

type LibraryScreen struct {
	deps      Deps
	transfers *components.ProgressTracker
	bookList  *components.BookList
	books     []*data.Book
	tab       int
	loading   bool
	// pendingDelete holds the ID awaiting a second "D"
	pendingDelete string
	message       string
	width         int
	height        int
	err           error
}

func NewLibraryScreen(deps Deps, transfers *components.ProgressTracker) *LibraryScreen {
	return &LibraryScreen{
		deps:      deps,
		transfers: transfers,
		bookList:  components.NewBookList(),
	}
}

func (s *LibraryScreen) Init() tea.Cmd {
	s.loading = true
	return s.loadLibrary
}

func (s *LibraryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.bookList.Width = msg.Width - 4
		s.bookList.Height = msg.Height - 10

	case tea.KeyMsg:
		key := msg.String()
		if key != "D" {
			s.pendingDelete = ""
		}
		switch key {
		case "up", "k":
			s.bookList.Prev()
		case "down", "j":
			s.bookList.Next()
		case "left", "h":
			s.setTab(s.tab - 1)
		case "right", "l":
			s.setTab(s.tab + 1)
		case "1", "2", "3", "4", "5":
			s.setTab(int(key[0] - '1'))
		case "r":
			s.loading = true
			return s, s.loadLibrary
		case "u":
			return s, switchTo(ScreenUpload, nil)
		case "enter":
			if selected := s.bookList.Selected(); selected != nil {
				return s, switchTo(ScreenDetails, selected)
			}
		case "o":
			if selected := s.bookList.Selected(); selected != nil {
				return s, switchTo(ScreenReader, selected)
			}
		case "f", "c", "x", "p":
			if selected := s.bookList.Selected(); selected != nil {
				return s, s.applyAction(selected, actionKeys[key])
			}
		case "D":
			selected := s.bookList.Selected()
			if selected == nil {
				break
			}
			if s.pendingDelete != selected.ID {
				s.pendingDelete = selected.ID
				s.message = fmt.Sprintf("Press D again to delete %q", selected.Title)
				break
			}
			s.pendingDelete = ""
			return s, s.applyAction(selected, services.ActionDelete)
		}

	case libraryLoadedMsg:
		s.loading = false
		s.err = msg.err
		if msg.err == nil {
			s.books = msg.books
			s.message = ""
			s.refresh()
		}

	case actionDoneMsg:
		s.err = msg.err
		if msg.action == services.ActionDelete && msg.err == nil {
			s.removeBook(msg.book.ID)
			s.message = fmt.Sprintf("Deleted %q", msg.book.Title)
		} else if msg.changed {
			s.setStatus(msg.book.ID, msg.book.Status)
			s.message = fmt.Sprintf("%q moved to %s", msg.book.Title, msg.book.Status.Label())
		} else if msg.err == nil {
			s.message = fmt.Sprintf("Nothing to change for %q", msg.book.Title)
		}
		s.refresh()
	}

	return s, nil
}

func (s *LibraryScreen) setTab(tab int) {
	n := len(data.Statuses)
	s.tab = (tab%n + n) % n
	s.bookList.SelectedIndex = 0
	s.refresh()
}

// Status is the shelf of the active tab
func (s *LibraryScreen) Status() data.ReadingStatus {
	return data.Statuses[s.tab]
}

func (s *LibraryScreen) refresh() {
	status := s.Status()
	s.bookList.EmptyMessage = fmt.Sprintf("No books in %s", status.Label())
	if status == data.StatusAll {
		s.bookList.EmptyMessage = "Your library is empty. Press u to upload a PDF."
	}
	s.bookList.SetItems(services.FilterByStatus(s.books, status))
}

func (s *LibraryScreen) setStatus(id string, status data.ReadingStatus) {
	for _, b := range s.books {
		if b.ID == id {
			b.Status = status
		}
	}
}

func (s *LibraryScreen) removeBook(id string) {
	kept := s.books[:0]
	for _, b := range s.books {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	s.books = kept
}

func (s *LibraryScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("📚 My Library")

	labels := make([]string, len(data.Statuses))
	for i, status := range data.Statuses {
		labels[i] = fmt.Sprintf("%s (%d)", status.Label(), len(services.FilterByStatus(s.books, status)))
	}
	tabs := components.Tabs(labels, s.tab)

	var notice string
	switch {
	case s.err != nil:
		notice = styles.StatusError.Render(fmt.Sprintf("Error: %s", errorText(s.err))) + "\n\n"
	case s.loading:
		notice = styles.MutedStyle.Render("Loading books...") + "\n\n"
	case s.message != "":
		notice = styles.SuccessStyle.Render(s.message) + "\n\n"
	}

	help := styles.HelpStyle.Render(
		"↑/k ↓/j: select • ←/→ 1-5: shelf • enter: details • o: read • f: favorite • c: completed • " +
			"x: remove from reading • p: remove from plan • D: delete • u: upload • r: reload • tab: switch view • q: quit",
	)

	return fmt.Sprintf("%s\n%s\n\n%s%s\n%s%s", header, tabs, notice, s.bookList.View(), s.transfers.View(), help)
}

// Messages
type libraryLoadedMsg struct {
	books []*data.Book
	err   error
}

type actionDoneMsg struct {
	book    *data.Book
	action  services.Action
	changed bool
	err     error
}

// Commands
func (s *LibraryScreen) loadLibrary() tea.Msg {
	books, err := s.deps.Library.ListBooks(context.Background())
	return libraryLoadedMsg{books: books, err: err}
}

func (s *LibraryScreen) applyAction(book *data.Book, action services.Action) tea.Cmd {
	// The command works on a copy; the result is applied on the UI goroutine
	copied := *book
	return func() tea.Msg {
		changed, err := s.deps.Library.ApplyAction(context.Background(), &copied, action)
		return actionDoneMsg{book: &copied, action: action, changed: changed, err: err}
	}
}
