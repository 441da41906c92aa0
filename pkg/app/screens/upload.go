package screens

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/services"
)

const (
	fieldPath = iota
	fieldTitle
	fieldAuthor
	fieldCount
)

var fieldLabels = [fieldCount]string{"PDF file", "Title", "Author"}

type UploadScreen struct {
	deps      Deps
	transfers *components.ProgressTracker
	inputs    [fieldCount]textinput.Model
	focus     int
	uploading bool
	message   string
	width     int
	height    int
	err       error
}

func NewUploadScreen(deps Deps, transfers *components.ProgressTracker) *UploadScreen {
	s := &UploadScreen{deps: deps, transfers: transfers}

	placeholders := [fieldCount]string{"~/Books/book.pdf", "Defaults to the file name", "Optional"}
	for i := range s.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 512
		ti.Width = 50
		s.inputs[i] = ti
	}
	s.inputs[fieldPath].Focus()
	return s
}

func (s *UploadScreen) Init() tea.Cmd {
	return textinput.Blink
}

// Capturing is true while the form takes keystrokes
func (s *UploadScreen) Capturing() bool {
	return !s.uploading
}

func (s *UploadScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		for i := range s.inputs {
			s.inputs[i].Width = min(60, max(msg.Width-10, 10))
		}

	case tea.KeyMsg:
		// Keys are ignored until the upload returns
		if s.uploading {
			return s, nil
		}

		switch msg.String() {
		case "esc":
			return s, switchTo(ScreenLibrary, nil)
		case "tab", "down":
			return s, s.setFocus(s.focus + 1)
		case "shift+tab", "up":
			return s, s.setFocus(s.focus - 1)
		case "enter":
			if s.focus < fieldCount-1 {
				return s, s.setFocus(s.focus + 1)
			}
			return s, s.submit()
		case "ctrl+s":
			return s, s.submit()
		}

	case uploadDoneMsg:
		s.uploading = false
		s.err = msg.err
		if msg.err == nil {
			title := msg.title
			if msg.result != nil && msg.result.Book != nil {
				title = msg.result.Book.Title
			}
			s.message = fmt.Sprintf("Uploaded %q", title)
			s.reset()
		}
		return s, nil
	}

	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(msg)
	return s, cmd
}

func (s *UploadScreen) setFocus(i int) tea.Cmd {
	s.inputs[s.focus].Blur()
	s.focus = (i%fieldCount + fieldCount) % fieldCount
	return s.inputs[s.focus].Focus()
}

func (s *UploadScreen) reset() {
	for i := range s.inputs {
		s.inputs[i].SetValue("")
	}
	s.setFocus(fieldPath)
}

func (s *UploadScreen) request() services.UploadRequest {
	return services.UploadRequest{
		Path:   expandHome(strings.TrimSpace(s.inputs[fieldPath].Value())),
		Title:  s.inputs[fieldTitle].Value(),
		Author: s.inputs[fieldAuthor].Value(),
	}
}

func (s *UploadScreen) View() string {
	if s.width == 0 {
		return "Loading..."
	}

	header := styles.TitleStyle.Render("⬆ Upload a Book")

	fields := make([]string, 0, fieldCount)
	for i, input := range s.inputs {
		style := styles.InputStyle
		label := styles.MutedStyle.Render(fieldLabels[i])
		if i == s.focus {
			style = styles.FocusedInputStyle
			label = styles.SubtitleStyle.Render(fieldLabels[i])
		}
		fields = append(fields, lipgloss.JoinVertical(lipgloss.Left, label, style.Render(input.View())))
	}
	form := lipgloss.JoinVertical(lipgloss.Left, fields...)

	var notice string
	switch {
	case s.err != nil:
		notice = styles.StatusError.Render(fmt.Sprintf("Error: %s", errorText(s.err)))
	case s.uploading:
		notice = styles.StatusActive.Render("Uploading...")
	case s.message != "":
		notice = styles.SuccessStyle.Render(s.message)
	}

	help := styles.HelpStyle.Render(
		"tab/↓: next field • shift+tab/↑: previous field • enter: next/upload • ctrl+s: upload • esc: library • ctrl+c: quit",
	)

	return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s%s", header, form, notice, s.transfers.View(), help)
}

// Messages
type uploadDoneMsg struct {
	title  string
	result *api.UploadResult
	err    error
}

// Commands
func (s *UploadScreen) submit() tea.Cmd {
	req := s.request()
	s.uploading = true
	s.err = nil
	s.message = ""
	return func() tea.Msg {
		result, err := s.deps.Library.Upload(context.Background(), req)
		return uploadDoneMsg{title: req.Title, result: result, err: err}
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
