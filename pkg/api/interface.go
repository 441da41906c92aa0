package api

import (
	"context"
	"io"

	"github.com/kerbaras/shelf/pkg/data"
)

// Library is the remote book collection
type Library interface {
	ListBooks(ctx context.Context) ([]*data.Book, error)
	GetBook(ctx context.Context, id string) (*data.Book, error)
	UploadBook(ctx context.Context, upload Upload, onProgress func(percent int)) (*UploadResult, error)
	UpdateBook(ctx context.Context, id string, update BookUpdate) (*data.Book, error)
	DeleteBook(ctx context.Context, id string) error

	UpdateProgress(ctx context.Context, id string, progress data.Progress) error
	AddNote(ctx context.Context, id string, note *data.Note) error
	AddHighlight(ctx context.Context, id string, highlight *data.Highlight) error

	FetchFile(ctx context.Context, fileURL string) (io.ReadCloser, int64, error)
}

// Upload describes a new book; Size may be -1 when unknown
type Upload struct {
	Title    string
	Author   string
	Filename string
	File     io.Reader
	Size     int64
}

type UploadResult struct {
	Message string
	Book    *data.Book
}

// BookUpdate is a partial update; nil fields are left alone
type BookUpdate struct {
	Title  *string             `json:"title,omitempty"`
	Author *string             `json:"author,omitempty"`
	Status *data.ReadingStatus `json:"status,omitempty"`
}
