package screens

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kerbaras/shelf/pkg/services"
)

// Screen names understood by SwitchScreenMsg
const (
	ScreenLibrary = "library"
	ScreenUpload  = "upload"
	ScreenDetails = "details"
	ScreenReader  = "reader"
)

// SwitchScreenMsg asks the root screen to show another screen. Details and
// reader expect the *data.Book in Data.
type SwitchScreenMsg struct {
	Screen string
	Data   interface{}
}

func switchTo(screen string, data interface{}) tea.Cmd {
	return func() tea.Msg {
		return SwitchScreenMsg{Screen: screen, Data: data}
	}
}

// transferMsg carries one progress update and the channel to keep reading
type transferMsg struct {
	progress services.TransferProgress
	source   <-chan services.TransferProgress
}

func listenForProgress(ch <-chan services.TransferProgress) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return transferMsg{progress: p, source: ch}
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
