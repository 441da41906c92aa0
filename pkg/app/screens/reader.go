package screens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/sirupsen/logrus"
)

type readerMode int

const (
	modeRead readerMode = iota
	modeNote
	modeHighlight
	modeGoto
)

// closeTimeout bounds the progress flush when leaving the reader
const closeTimeout = 10 * time.Second

type ReaderScreen struct {
	session   *reader.Session
	ctx       context.Context
	cancel    context.CancelFunc
	transfers *components.ProgressTracker
	log       logrus.FieldLogger
	viewport  viewport.Model
	input     textinput.Model
	mode      readerMode
	loading   bool
	message   string
	width     int
	height    int
	err       error
}

func NewReaderScreen(session *reader.Session, transfers *components.ProgressTracker, log logrus.FieldLogger) *ReaderScreen {
	if log == nil {
		log = utils.Discard()
	}
	ti := textinput.New()
	ti.CharLimit = 2000
	ti.Width = 60

	ctx, cancel := context.WithCancel(context.Background())
	return &ReaderScreen{
		session:   session,
		ctx:       ctx,
		cancel:    cancel,
		transfers: transfers,
		log:       log.WithField("book_id", session.Book().ID),
		viewport:  viewport.New(80, 20),
		input:     ti,
		loading:   true,
	}
}

func (s *ReaderScreen) Init() tea.Cmd {
	s.loading = true
	return s.open
}

// Capturing is true while a note, highlight or page number is typed
func (s *ReaderScreen) Capturing() bool {
	return s.mode != modeRead
}

func (s *ReaderScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.input.Width = max(msg.Width-20, 10)
		s.layout()
		return s, nil

	case sessionOpenedMsg:
		s.loading = false
		s.err = nil
		if msg.err != nil {
			s.log.WithError(msg.err).Warn("failed to open book")
			s.err = s.session.Err()
			if s.err == nil {
				s.err = msg.err
			}
		}
		s.layout()
		return s, nil

	case annotationSavedMsg:
		s.err = nil
		switch {
		case errors.Is(msg.err, reader.ErrNotSynced):
			s.message = fmt.Sprintf("%s saved on this device; it will not reach the server", msg.kind)
		case msg.err != nil:
			s.err = msg.err
		default:
			s.message = fmt.Sprintf("%s saved on page %d", msg.kind, msg.page)
		}
		return s, nil

	case tea.KeyMsg:
		if s.mode != modeRead {
			return s.updateInput(msg)
		}
		return s.updateRead(msg)
	}

	var cmd tea.Cmd
	s.viewport, cmd = s.viewport.Update(msg)
	return s, cmd
}

func (s *ReaderScreen) updateRead(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "esc" || key == "backspace" {
		return s, s.close
	}
	if !s.session.Loaded() {
		if key == "r" && !s.loading {
			return s, s.Init()
		}
		return s, nil
	}

	s.message = ""
	switch key {
	case "right", "l", "pgdown", " ":
		s.turned(s.session.Next())
	case "left", "b", "pgup":
		s.turned(s.session.Prev())
	case "g", "home":
		s.turned(s.session.First())
	case "G", "end":
		s.turned(s.session.Last())
	case "+", "=":
		s.turned(s.session.ZoomIn())
	case "-":
		s.turned(s.session.ZoomOut())
	case "0":
		s.turned(s.session.ResetZoom())
	case "f":
		s.session.ToggleFullscreen()
		s.layout()
	case "n":
		return s, s.startInput(modeNote, "Note: ")
	case "h":
		return s, s.startInput(modeHighlight, "Highlight: ")
	case ":":
		return s, s.startInput(modeGoto, "Go to page: ")
	default:
		var cmd tea.Cmd
		s.viewport, cmd = s.viewport.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *ReaderScreen) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		s.stopInput()
		return s, nil
	case "enter":
		value := s.input.Value()
		mode := s.mode
		s.stopInput()
		switch mode {
		case modeNote:
			return s, s.addNote(value)
		case modeHighlight:
			return s, s.addHighlight(value)
		case modeGoto:
			s.goTo(value)
		}
		return s, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ReaderScreen) startInput(mode readerMode, prompt string) tea.Cmd {
	s.mode = mode
	s.input.Prompt = prompt
	s.input.SetValue("")
	s.layout()
	return s.input.Focus()
}

func (s *ReaderScreen) stopInput() {
	s.mode = modeRead
	s.input.Blur()
	s.layout()
}

func (s *ReaderScreen) goTo(value string) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 || n > s.session.TotalPages() {
		s.message = fmt.Sprintf("Enter a page between 1 and %d", s.session.TotalPages())
		return
	}
	s.turned(s.session.GoTo(n))
}

// turned re-renders after a page or zoom change
func (s *ReaderScreen) turned(changed bool) {
	if changed {
		s.render()
		s.viewport.GotoTop()
	}
}

// layout sizes the viewport around the header and footer
func (s *ReaderScreen) layout() {
	if s.width == 0 {
		return
	}
	chrome := 0
	if !s.session.Fullscreen() {
		chrome = lipgloss.Height(s.headerView()) + lipgloss.Height(s.footerView())
	} else if s.mode != modeRead {
		chrome = 1
	}
	s.viewport.Width = s.width
	s.viewport.Height = max(s.height-chrome, 1)
	s.render()
}

func (s *ReaderScreen) render() {
	if !s.session.Loaded() {
		return
	}
	lines, err := s.session.Render(s.viewport.Width)
	if err != nil {
		s.log.WithField("page", s.session.Page()).WithError(err).Warn("failed to render page")
		s.err = err
		s.viewport.SetContent("")
		return
	}
	s.viewport.SetContent(styles.PageStyle.Render(strings.Join(lines, "\n")))
}

func (s *ReaderScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	var body string
	switch {
	case s.loading:
		body = lipgloss.Place(s.width, max(s.height-4, 1), lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, styles.StatusActive.Render("Loading PDF..."), s.transfers.View()))
	case !s.session.Loaded():
		msg := "No document"
		if s.err != nil {
			msg = errorText(s.err)
		}
		body = lipgloss.Place(s.width, max(s.height-4, 1), lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center,
				styles.StatusError.Render(msg),
				styles.HelpStyle.Render("r: try again • esc: back")))
	default:
		body = s.viewport.View()
	}

	if s.session.Fullscreen() && s.session.Loaded() {
		if s.mode != modeRead {
			return lipgloss.JoinVertical(lipgloss.Left, body, s.input.View())
		}
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, s.headerView(), body, s.footerView())
}

func (s *ReaderScreen) headerView() string {
	book := s.session.Book()
	counter := "Loading"
	if s.session.Loaded() {
		counter = fmt.Sprintf("Page %d of %d • %d%%", s.session.Page(), s.session.TotalPages(), int(s.session.Scale()*100+0.5))
	}
	title := utils.Truncate(book.Title, max(s.width-lipgloss.Width(counter)-6, 10))
	gap := max(s.width-lipgloss.Width(title)-lipgloss.Width(counter)-2, 1)
	return styles.ReaderBarStyle.Width(s.width).Render(title + strings.Repeat(" ", gap) + counter)
}

func (s *ReaderScreen) footerView() string {
	var status string
	switch {
	case s.mode != modeRead:
		status = s.input.View()
	case s.err != nil && s.session.Loaded():
		status = styles.StatusError.Render(errorText(s.err))
	case s.message != "":
		status = styles.SuccessStyle.Render(s.message)
	default:
		percent := s.session.Progress().Percent
		status = fmt.Sprintf("%s %3.0f%%", components.ProgressBar(percent, min(30, max(s.width-10, 5))), percent)
	}

	controls := "←/b →/l: page • g/G: first/last • :: go to • +/-/0: zoom • f: fullscreen • n: note • h: highlight • esc: close"
	if s.mode != modeRead {
		controls = "enter: save • esc: cancel"
	}
	return lipgloss.JoinVertical(lipgloss.Left, status, styles.HelpStyle.UnsetMarginTop().Render(controls))
}

// Messages
type sessionOpenedMsg struct {
	err error
}

type annotationSavedMsg struct {
	kind string
	page int
	err  error
}

// Commands
func (s *ReaderScreen) open() tea.Msg {
	return sessionOpenedMsg{err: s.session.Open(s.ctx)}
}

// close cancels a load still in flight before releasing the session
func (s *ReaderScreen) close() tea.Msg {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.session.Close(ctx); err != nil {
		s.log.WithError(err).Warn("failed to close reading session")
	}
	return SwitchScreenMsg{Screen: ScreenDetails, Data: s.session.Book()}
}

func (s *ReaderScreen) addNote(content string) tea.Cmd {
	page := s.session.Page()
	return func() tea.Msg {
		_, err := s.session.AddNote(context.Background(), content)
		return annotationSavedMsg{kind: "Note", page: page, err: err}
	}
}

func (s *ReaderScreen) addHighlight(text string) tea.Cmd {
	page := s.session.Page()
	return func() tea.Msg {
		_, err := s.session.AddHighlight(context.Background(), text, "")
		return annotationSavedMsg{kind: "Highlight", page: page, err: err}
	}
}
