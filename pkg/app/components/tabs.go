package components

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/shelf/pkg/app/styles"
)

// Tabs renders labels side by side, highlighting the active one
func Tabs(labels []string, active int) string {
	rendered := make([]string, len(labels))
	for i, label := range labels {
		if i == active {
			rendered[i] = styles.ActiveTabStyle.Render(label)
		} else {
			rendered[i] = styles.InactiveTabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}
