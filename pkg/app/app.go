package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/shelf/pkg/app/screens"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/sirupsen/logrus"
)

type App struct {
	deps screens.Deps
}

func NewApp(controller *services.LibraryController, syncer *reader.ProgressSyncer, exporter integrations.Exporter, scale float64, log logrus.FieldLogger) *App {
	return &App{
		deps: screens.Deps{
			Library:   controller,
			Downloads: controller.Fetcher().GetProgressChannel(),
			Uploads:   controller.Uploader().GetProgressChannel(),
			Syncer:    syncer,
			Exporter:  exporter,
			Scale:     scale,
			Log:       log,
		},
	}
}

// Run shows the library
func (a *App) Run() error {
	return a.run(screens.NewRootScreen(a.deps))
}

// Read opens book straight in the reader
func (a *App) Read(book *data.Book) error {
	root := screens.NewRootScreen(a.deps)
	root.StartWith(screens.ScreenReader, book)
	return a.run(root)
}

func (a *App) run(root *screens.RootScreen) error {
	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	if cerr := root.Close(); err == nil {
		err = cerr
	}
	return err
}
