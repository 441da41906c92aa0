package integrations

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var ErrEmptyNotebook = errors.New("nothing to export: the book has no notes or highlights")

// NotebookExporter writes notes and highlights to an EPUB
type NotebookExporter struct {
	outputDir string
	markdown  goldmark.Markdown
}

var _ Exporter = (*NotebookExporter)(nil)

func NewNotebookExporter(outputDir string) *NotebookExporter {
	return &NotebookExporter{
		outputDir: outputDir,
		markdown:  goldmark.New(goldmark.WithRendererOptions(gmhtml.WithXHTML())),
	}
}

// Path is where the notebook of book gets written
func (p *NotebookExporter) Path(book *data.Book) string {
	return filepath.Join(p.outputDir, utils.SanitizeFilename(book.Title)+"-notes.epub")
}

// Export compiles the notebook into a single EPUB: an optional cover, the
// highlights and then the notes, both grouped by page
func (p *NotebookExporter) Export(notebook *data.Notebook, cover []byte) (string, error) {
	if notebook == nil || notebook.Book == nil {
		return "", fmt.Errorf("notebook cannot be nil")
	}
	if len(notebook.Notes) == 0 && len(notebook.Highlights) == 0 {
		return "", ErrEmptyNotebook
	}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	book := notebook.Book
	e, err := epub.NewEpub("Notes on " + book.Title)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	if book.Author != "" {
		e.SetAuthor(book.Author)
	}
	e.SetDescription(fmt.Sprintf("%d notes and %d highlights from %s", len(notebook.Notes), len(notebook.Highlights), book.Title))
	e.SetLang("en")

	if len(cover) > 0 {
		cleanup, err := p.addCover(e, cover)
		if err != nil {
			return "", err
		}
		defer cleanup()
	}

	if len(notebook.Highlights) > 0 {
		if _, err := e.AddSection(p.highlightsHTML(notebook.Highlights), "Highlights", "highlights.xhtml", ""); err != nil {
			return "", fmt.Errorf("failed to add highlights: %w", err)
		}
	}
	if len(notebook.Notes) > 0 {
		body, err := p.notesHTML(notebook.Notes)
		if err != nil {
			return "", err
		}
		if _, err := e.AddSection(body, "Notes", "notes.xhtml", ""); err != nil {
			return "", fmt.Errorf("failed to add notes: %w", err)
		}
	}

	outputPath := p.Path(book)
	if err := e.Write(outputPath); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	return outputPath, nil
}

// addCover adds the cover as the first section. The image file has to stay
// on disk until the EPUB is written.
func (p *NotebookExporter) addCover(e *epub.Epub, cover []byte) (func(), error) {
	jpg, err := NewImageProcessor(1200, 1600).JPEG(cover)
	if err != nil {
		return nil, fmt.Errorf("failed to process cover: %w", err)
	}
	tmp, err := os.CreateTemp("", "shelf-cover-*.jpg")
	if err != nil {
		return nil, err
	}
	cleanup := func() { os.Remove(tmp.Name()) }
	if _, err := tmp.Write(jpg); err != nil {
		tmp.Close()
		cleanup()
		return nil, err
	}
	tmp.Close()

	internalPath, err := e.AddImage(tmp.Name(), "cover.jpg")
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to add cover image: %w", err)
	}
	body := fmt.Sprintf(`<div class="cover"><img src="%s" alt="Cover" style="width:100%%;height:auto;"/></div>`, internalPath)
	if _, err := e.AddSection(body, "Cover", "cover.xhtml", ""); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to add cover section: %w", err)
	}
	return cleanup, nil
}

func (p *NotebookExporter) highlightsHTML(highlights []*data.Highlight) string {
	var b strings.Builder
	b.WriteString("<h1>Highlights</h1>\n")
	for _, group := range groupByPage(highlights, func(h *data.Highlight) int { return h.Page }) {
		fmt.Fprintf(&b, "<h2>Page %d</h2>\n", group.page)
		for _, h := range group.items {
			fmt.Fprintf(&b, "<blockquote class=\"%s\"><p>%s</p></blockquote>\n",
				html.EscapeString(h.Color), html.EscapeString(h.Text))
		}
	}
	return b.String()
}

func (p *NotebookExporter) notesHTML(notes []*data.Note) (string, error) {
	var b strings.Builder
	b.WriteString("<h1>Notes</h1>\n")
	for _, group := range groupByPage(notes, func(n *data.Note) int { return n.Page }) {
		fmt.Fprintf(&b, "<h2>Page %d</h2>\n", group.page)
		for _, n := range group.items {
			var buf bytes.Buffer
			if err := p.markdown.Convert([]byte(n.Content), &buf); err != nil {
				return "", fmt.Errorf("failed to render note %s: %w", n.ID, err)
			}
			b.WriteString("<div class=\"note\">\n")
			b.Write(buf.Bytes())
			b.WriteString("</div>\n")
		}
	}
	return b.String(), nil
}

type pageGroup[T any] struct {
	page  int
	items []T
}

// groupByPage keeps the original order within a page
func groupByPage[T any](items []T, page func(T) int) []pageGroup[T] {
	index := map[int]int{}
	var groups []pageGroup[T]
	for _, item := range items {
		n := page(item)
		i, ok := index[n]
		if !ok {
			i = len(groups)
			index[n] = i
			groups = append(groups, pageGroup[T]{page: n})
		}
		groups[i].items = append(groups[i].items, item)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].page < groups[j].page })
	return groups
}
