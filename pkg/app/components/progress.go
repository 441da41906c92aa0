package components

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/services"
)

// ProgressTracker shows the transfers still running. Finished transfers are
// dropped; failed ones stay until cleared so the error can be read.
type ProgressTracker struct {
	transfers map[string]*services.TransferProgress
	order     []string
	width     int
}

func NewProgressTracker(width int) *ProgressTracker {
	return &ProgressTracker{
		transfers: make(map[string]*services.TransferProgress),
		width:     width,
	}
}

func transferKey(p services.TransferProgress) string {
	return p.Kind + ":" + p.ID
}

func (p *ProgressTracker) Update(progress services.TransferProgress) {
	key := transferKey(progress)
	if progress.Status == services.StatusComplete {
		p.remove(key)
		return
	}
	if _, ok := p.transfers[key]; !ok {
		p.order = append(p.order, key)
	}
	prog := progress
	p.transfers[key] = &prog
}

func (p *ProgressTracker) remove(key string) {
	if _, ok := p.transfers[key]; !ok {
		return
	}
	delete(p.transfers, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *ProgressTracker) SetWidth(width int) {
	p.width = width
}

func (p *ProgressTracker) Clear() {
	p.transfers = make(map[string]*services.TransferProgress)
	p.order = nil
}

func (p *ProgressTracker) HasActive() bool {
	return len(p.transfers) > 0
}

func (p *ProgressTracker) View() string {
	if len(p.transfers) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Transfers"))
	b.WriteString("\n\n")

	for _, key := range p.order {
		progress := p.transfers[key]

		verb := "Downloading"
		if progress.Kind == services.TransferUpload {
			verb = "Uploading"
		}
		b.WriteString(styles.TextStyle.Render(fmt.Sprintf("%s %s", verb, progress.Title)))
		b.WriteString("\n")

		statusText := progress.Status
		switch {
		case progress.Total > 0:
			statusText = fmt.Sprintf("%s (%s/%s - %d%%)", progress.Status,
				humanize.Bytes(uint64(progress.Bytes)), humanize.Bytes(uint64(progress.Total)), progress.Percent)
			b.WriteString(renderProgressBar(progress.Percent, 100, max(p.width-4, 10)))
			b.WriteString("\n")
		case progress.Bytes > 0:
			statusText = fmt.Sprintf("%s (%s)", progress.Status, humanize.Bytes(uint64(progress.Bytes)))
		}

		b.WriteString(styles.StatusStyle(progress.Status).Render(statusText))
		b.WriteString("\n")

		if progress.Error != nil {
			b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", progress.Error)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))

	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// SimpleProgress renders a simple progress bar
func SimpleProgress(current, total, width int) string {
	return renderProgressBar(current, total, width)
}

// ProgressBar renders a reading percentage
func ProgressBar(percent float64, width int) string {
	return renderProgressBar(int(percent+0.5), 100, width)
}
