package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/document"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Fetcher keeps local copies of book files in a cache directory
type Fetcher struct {
	library      api.Library
	cacheDir     string
	progressChan chan TransferProgress
	log          logrus.FieldLogger
}

func NewFetcher(library api.Library, cacheDir string, log logrus.FieldLogger) *Fetcher {
	if log == nil {
		log = utils.Discard()
	}
	return &Fetcher{
		library:      library,
		cacheDir:     cacheDir,
		progressChan: make(chan TransferProgress, 100),
		log:          log.WithField("component", "fetcher"),
	}
}

// GetProgressChannel returns the channel for receiving download progress updates
func (f *Fetcher) GetProgressChannel() <-chan TransferProgress {
	return f.progressChan
}

// Path is where the file of a book is cached
func (f *Fetcher) Path(bookID string) string {
	return filepath.Join(f.cacheDir, utils.SanitizeFilename(bookID)+".pdf")
}

// Fetch returns the path of a local copy of the book, downloading it when
// missing or when refresh is set. Files are streamed to a temporary file and
// renamed into place once complete.
func (f *Fetcher) Fetch(ctx context.Context, book *data.Book, refresh bool) (string, error) {
	if book == nil {
		return "", fmt.Errorf("book cannot be nil")
	}
	path := f.Path(book.ID)
	if !refresh {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return path, nil
		}
	}

	progress := TransferProgress{ID: book.ID, Title: book.Title, Kind: TransferDownload, Total: -1}
	fail := func(err error) (string, error) {
		progress.Status = StatusError
		progress.Error = err
		sendProgress(f.progressChan, progress)
		f.log.WithField("book_id", book.ID).WithError(err).Error("download failed")
		return "", err
	}

	progress.Status = StatusDownloading
	sendProgress(f.progressChan, progress)

	body, size, err := f.library.FetchFile(ctx, book.FileURL)
	if err != nil {
		return fail(fmt.Errorf("failed to download %q: %w", book.Title, err))
	}
	defer body.Close()

	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create cache directory: %w", err))
	}
	tmp, err := os.CreateTemp(f.cacheDir, ".download-*")
	if err != nil {
		return fail(fmt.Errorf("failed to create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	progress.Total = size
	counter := &countingWriter{onWrite: func(n int64) {
		progress.Bytes = n
		if size > 0 {
			progress.Percent = api.Percent(n, size)
		}
		sendProgress(f.progressChan, progress)
	}}

	_, err = io.Copy(io.MultiWriter(tmp, counter), body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fail(fmt.Errorf("failed to save %q: %w", book.Title, err))
	}

	if err := checkPDF(tmp.Name()); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(fmt.Errorf("failed to move download into cache: %w", err))
	}

	progress.Status = StatusComplete
	progress.Percent = 100
	sendProgress(f.progressChan, progress)
	f.log.WithField("book_id", book.ID).WithField("bytes", progress.Bytes).Info("book downloaded")
	return path, nil
}

// Evict drops the cached file of a book, if any
func (f *Fetcher) Evict(bookID string) error {
	err := os.Remove(f.Path(bookID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Close closes the progress channel; the fetcher must not be used afterwards
func (f *Fetcher) Close() {
	close(f.progressChan)
}

var ErrNotPDF = errors.New("file is not a PDF")

func checkPDF(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	head := make([]byte, 5)
	n, _ := io.ReadFull(file, head)
	if !document.ValidatePDF(head[:n]) {
		return ErrNotPDF
	}
	return nil
}

type countingWriter struct {
	n       int64
	onWrite func(int64)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	c.onWrite(c.n)
	return len(p), nil
}
