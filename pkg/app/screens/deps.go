package screens

import (
	"context"

	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/integrations"
	"github.com/kerbaras/shelf/pkg/reader"
	"github.com/kerbaras/shelf/pkg/services"
	"github.com/sirupsen/logrus"
)

// Library is what the screens use of the library controller
type Library interface {
	ListBooks(ctx context.Context) ([]*data.Book, error)
	GetBook(ctx context.Context, id string) (*data.Book, error)
	Upload(ctx context.Context, req services.UploadRequest) (*api.UploadResult, error)
	SetStatus(ctx context.Context, id string, status data.ReadingStatus) error
	ApplyAction(ctx context.Context, book *data.Book, action services.Action) (bool, error)
	Notebook(ctx context.Context, book *data.Book) (*data.Notebook, error)
	Cover(ctx context.Context, book *data.Book) ([]byte, error)
	Export(ctx context.Context, book *data.Book, exporter integrations.Exporter) (string, error)
	Fetch(ctx context.Context, book *data.Book, refresh bool) (string, error)
	NewSession(book *data.Book, syncer *reader.ProgressSyncer, scale float64) *reader.Session
}

var _ Library = (*services.LibraryController)(nil)

type Deps struct {
	Library   Library
	Downloads <-chan services.TransferProgress
	Uploads   <-chan services.TransferProgress
	Syncer    *reader.ProgressSyncer
	Exporter  integrations.Exporter
	Scale     float64
	Log       logrus.FieldLogger
}
