package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/shelf/pkg/app/styles"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
)

// cardHeight is the number of lines a rendered card takes, borders included
const cardHeight = 6

type BookList struct {
	Items         []*data.Book
	SelectedIndex int
	Width         int
	Height        int
	EmptyMessage  string
}

func NewBookList() *BookList {
	return &BookList{
		Items:        []*data.Book{},
		Width:        80,
		Height:       20,
		EmptyMessage: "No books on this shelf",
	}
}

func (m *BookList) SetItems(items []*data.Book) {
	m.Items = items
	if m.SelectedIndex >= len(items) && len(items) > 0 {
		m.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		m.SelectedIndex = 0
	}
}

func (m *BookList) Next() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex++
	if m.SelectedIndex >= len(m.Items) {
		m.SelectedIndex = 0
	}
}

func (m *BookList) Prev() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex--
	if m.SelectedIndex < 0 {
		m.SelectedIndex = len(m.Items) - 1
	}
}

func (m *BookList) Selected() *data.Book {
	if len(m.Items) == 0 || m.SelectedIndex >= len(m.Items) {
		return nil
	}
	return m.Items[m.SelectedIndex]
}

// visibleRange returns the slice of items that fits the height, keeping the
// selection in view
func (m *BookList) visibleRange() (int, int) {
	n := max(m.Height/cardHeight, 1)
	if len(m.Items) <= n {
		return 0, len(m.Items)
	}
	start := m.SelectedIndex - n/2
	start = max(0, min(start, len(m.Items)-n))
	return start, start + n
}

func (m *BookList) View() string {
	if len(m.Items) == 0 {
		emptyMsg := styles.MutedStyle.Render(m.EmptyMessage)
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, emptyMsg)
	}

	var b strings.Builder
	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		book := m.Items[i]
		cardStyle := styles.CardStyle
		if i == m.SelectedIndex {
			cardStyle = styles.ActiveCardStyle
		}

		inner := max(m.Width-8, 10)
		title := styles.TitleStyle.UnsetMarginBottom().Render(utils.Truncate(book.Title, inner))
		author := styles.MutedStyle.Render(utils.Truncate(book.Author, inner))
		if book.Author == "" {
			author = styles.MutedStyle.Render("Unknown author")
		}
		status := styles.ShelfStyle(book.Status).Render(book.Status.Label())

		var percent float64
		if book.Progress != nil {
			percent = book.Progress.Percent
		}
		progress := fmt.Sprintf("%s %3.0f%%", ProgressBar(percent, min(inner-6, 30)), percent)

		card := cardStyle.Width(m.Width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, title, author, status+"  "+progress))
		b.WriteString(card)
		b.WriteString("\n")
	}

	if start > 0 || end < len(m.Items) {
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("Showing %d-%d of %d books", start+1, end, len(m.Items))))
	}
	return b.String()
}
