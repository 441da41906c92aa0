package integrations

import "github.com/kerbaras/shelf/pkg/data"

// Exporter writes a book's notebook to a file and returns its path. cover
// holds the book cover image and may be nil.
type Exporter interface {
	Export(notebook *data.Notebook, cover []byte) (string, error)
}
