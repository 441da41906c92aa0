package screens

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/shelf/pkg/app/components"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
)

type screenType int

const (
	libraryView screenType = iota
	uploadView
	detailsView
	readerView
)

// tabsHeight is what the screen tabs take above the active screen
const tabsHeight = 2

type RootScreen struct {
	deps      Deps
	transfers *components.ProgressTracker

	currentView screenType
	library     *LibraryScreen
	upload      *UploadScreen
	details     *DetailsScreen
	reader      *ReaderScreen

	start *SwitchScreenMsg

	width  int
	height int
}

func NewRootScreen(deps Deps) *RootScreen {
	if deps.Log == nil {
		deps.Log = utils.Discard()
	}
	transfers := components.NewProgressTracker(80)
	return &RootScreen{
		deps:        deps,
		transfers:   transfers,
		currentView: libraryView,
		library:     NewLibraryScreen(deps, transfers),
		upload:      NewUploadScreen(deps, transfers),
	}
}

// StartWith makes the root open another screen than the library first
func (r *RootScreen) StartWith(screen string, data interface{}) {
	r.start = &SwitchScreenMsg{Screen: screen, Data: data}
}

func (r *RootScreen) Init() tea.Cmd {
	first := r.library.Init()
	if r.start != nil {
		first = switchTo(r.start.Screen, r.start.Data)
	}
	return tea.Batch(
		first,
		listenForProgress(r.deps.Downloads),
		listenForProgress(r.deps.Uploads),
	)
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		r.transfers.SetWidth(msg.Width - 4)
		return r, r.resizeAll()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return r, tea.Quit
		}
		if !r.capturing() {
			switch msg.String() {
			case "q":
				return r, tea.Quit
			case "tab":
				// Details and reader are left with esc
				if r.currentView != libraryView && r.currentView != uploadView {
					break
				}
				if r.currentView == libraryView {
					return r, switchTo(ScreenUpload, nil)
				}
				return r, switchTo(ScreenLibrary, nil)
			}
		}

	case transferMsg:
		r.transfers.Update(msg.progress)
		return r, listenForProgress(msg.source)

	case SwitchScreenMsg:
		return r, r.switchScreen(msg)
	}

	// Forward message to active screen
	switch r.currentView {
	case libraryView:
		newModel, newCmd := r.library.Update(msg)
		r.library = newModel.(*LibraryScreen)
		cmd = newCmd
	case uploadView:
		newModel, newCmd := r.upload.Update(msg)
		r.upload = newModel.(*UploadScreen)
		cmd = newCmd
	case detailsView:
		if r.details != nil {
			newModel, newCmd := r.details.Update(msg)
			r.details = newModel.(*DetailsScreen)
			cmd = newCmd
		}
	case readerView:
		if r.reader != nil {
			newModel, newCmd := r.reader.Update(msg)
			r.reader = newModel.(*ReaderScreen)
			cmd = newCmd
		}
	}
	return r, cmd
}

func (r *RootScreen) switchScreen(msg SwitchScreenMsg) tea.Cmd {
	if r.currentView == readerView && msg.Screen != ScreenReader {
		r.reader = nil
	}

	switch msg.Screen {
	case ScreenLibrary:
		r.currentView = libraryView
		return tea.Batch(r.library.Init(), r.resize(r.library, true))
	case ScreenUpload:
		r.currentView = uploadView
		return tea.Batch(r.upload.Init(), r.resize(r.upload, true))
	case ScreenDetails:
		book, ok := msg.Data.(*data.Book)
		if !ok {
			return nil
		}
		r.details = NewDetailsScreen(r.deps, r.transfers, book)
		r.currentView = detailsView
		return tea.Batch(r.details.Init(), r.resize(r.details, false))
	case ScreenReader:
		book, ok := msg.Data.(*data.Book)
		if !ok {
			return nil
		}
		session := r.deps.Library.NewSession(book, r.deps.Syncer, r.deps.Scale)
		r.reader = NewReaderScreen(session, r.transfers, r.deps.Log)
		r.currentView = readerView
		return tea.Batch(r.reader.Init(), r.resize(r.reader, false))
	}
	return nil
}

// resize hands the current size to a screen, minus the tabs when shown
func (r *RootScreen) resize(screen tea.Model, withTabs bool) tea.Cmd {
	if r.width == 0 {
		return nil
	}
	height := r.height
	if withTabs {
		height -= tabsHeight
	}
	_, cmd := screen.Update(tea.WindowSizeMsg{Width: r.width, Height: height})
	return cmd
}

func (r *RootScreen) resizeAll() tea.Cmd {
	cmds := []tea.Cmd{
		r.resize(r.library, true),
		r.resize(r.upload, true),
	}
	if r.details != nil {
		cmds = append(cmds, r.resize(r.details, false))
	}
	if r.reader != nil {
		cmds = append(cmds, r.resize(r.reader, false))
	}
	return tea.Batch(cmds...)
}

// capturing reports whether the active screen is typing into a field, in
// which case global keys are left to it
func (r *RootScreen) capturing() bool {
	switch r.currentView {
	case uploadView:
		return r.upload.Capturing()
	case readerView:
		return r.reader != nil && r.reader.Capturing()
	}
	return false
}

// Close releases the open reading session, flushing its progress
func (r *RootScreen) Close() error {
	if r.reader == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := r.reader.session.Close(ctx)
	r.reader = nil
	return err
}

func (r *RootScreen) View() string {
	var content string
	switch r.currentView {
	case libraryView:
		content = r.library.View()
	case uploadView:
		content = r.upload.View()
	case detailsView:
		if r.details != nil {
			content = r.details.View()
		}
	case readerView:
		if r.reader != nil {
			content = r.reader.View()
		}
	}

	if r.currentView != libraryView && r.currentView != uploadView {
		return content
	}
	return fmt.Sprintf("%s\n\n%s", r.renderTabs(), content)
}

func (r *RootScreen) renderTabs() string {
	active := 0
	if r.currentView == uploadView {
		active = 1
	}
	return components.Tabs([]string{"Library", "Upload"}, active)
}
