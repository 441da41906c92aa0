// Package document opens PDF books and lays their pages out on a character
// grid for the terminal reader.
package document

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/patrickmn/go-cache"
)

// US letter, in points
const (
	DefaultPageWidth  = 612.0
	DefaultPageHeight = 792.0
)

var ErrPageOutOfRange = errors.New("page out of range")

// Glyph is a run of text positioned in PDF user space (origin bottom-left)
type Glyph struct {
	X, Y float64
	S    string
}

type Page struct {
	Number int
	Width  float64
	Height float64
	Glyphs []Glyph
}

// Document is an opened book
type Document interface {
	NumPages() int
	Page(n int) (*Page, error)
	Close() error
}

// Opener opens the document stored at path
type Opener interface {
	Open(path string) (Document, error)
}

// PDFOpener opens documents with the ledongthuc decoder and caches decoded pages
type PDFOpener struct {
	CacheTTL time.Duration
}

func (o PDFOpener) Open(path string) (Document, error) {
	return Open(path, o.CacheTTL)
}

type pdfDocument struct {
	mu     sync.Mutex
	file   *os.File
	reader *pdf.Reader
	pages  *cache.Cache
	total  int
}

// Open decodes the PDF at path. Pages are decoded lazily and kept for ttl.
func Open(path string, ttl time.Duration) (_ Document, err error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &pdfDocument{
		file:   f,
		reader: r,
		pages:  cache.New(ttl, 2*ttl),
		total:  r.NumPage(),
	}, nil
}

func (d *pdfDocument) NumPages() int {
	return d.total
}

func (d *pdfDocument) Page(n int) (*Page, error) {
	if n < 1 || n > d.total {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, d.total)
	}
	key := strconv.Itoa(n)
	if cached, ok := d.pages.Get(key); ok {
		return cached.(*Page), nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	page, err := d.decode(n)
	if err != nil {
		return nil, err
	}
	d.pages.SetDefault(key, page)
	return page, nil
}

// decode converts decoder panics on malformed content into errors
func (d *pdfDocument) decode(n int) (page *Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			page, err = nil, fmt.Errorf("failed to decode page %d: %v", n, r)
		}
	}()

	p := d.reader.Page(n)
	if p.V.IsNull() {
		return nil, fmt.Errorf("page %d is missing", n)
	}

	w, h := mediaBox(p.V)
	page = &Page{Number: n, Width: w, Height: h}
	for _, t := range p.Content().Text {
		page.Glyphs = append(page.Glyphs, Glyph{X: t.X, Y: t.Y, S: t.S})
	}
	return page, nil
}

// mediaBox walks up the page tree since MediaBox is inheritable
func mediaBox(v pdf.Value) (float64, float64) {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return DefaultPageWidth, DefaultPageHeight
}

func (d *pdfDocument) Close() error {
	d.pages.Flush()
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ValidatePDF checks the magic bytes
func ValidatePDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
