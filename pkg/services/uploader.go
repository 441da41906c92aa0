package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kerbaras/shelf/pkg/api"
	"github.com/kerbaras/shelf/pkg/document"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/sirupsen/logrus"
)

var ErrNoFile = errors.New("please select a PDF file to upload")

type UploadRequest struct {
	Path   string
	Title  string
	Author string
}

// Uploader sends new books to the library
type Uploader struct {
	library      api.Library
	progressChan chan TransferProgress
	log          logrus.FieldLogger
}

func NewUploader(library api.Library, log logrus.FieldLogger) *Uploader {
	if log == nil {
		log = utils.Discard()
	}
	return &Uploader{
		library:      library,
		progressChan: make(chan TransferProgress, 100),
		log:          log.WithField("component", "uploader"),
	}
}

// GetProgressChannel returns the channel for receiving upload progress updates
func (u *Uploader) GetProgressChannel() <-chan TransferProgress {
	return u.progressChan
}

// Upload validates the file and streams it to the backend. The title
// defaults to the file name without its extension.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (*api.UploadResult, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, ErrNoFile
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	progress := TransferProgress{ID: filepath.Base(path), Title: title, Kind: TransferUpload, Status: StatusQueued}
	fail := func(err error) (*api.UploadResult, error) {
		progress.Status = StatusError
		progress.Error = err
		sendProgress(u.progressChan, progress)
		u.log.WithField("file", path).WithError(err).Error("upload failed")
		return nil, err
	}
	sendProgress(u.progressChan, progress)

	file, err := os.Open(path)
	if err != nil {
		return fail(fmt.Errorf("failed to open %s: %w", path, err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fail(fmt.Errorf("failed to stat %s: %w", path, err))
	}
	if info.IsDir() {
		return fail(fmt.Errorf("%s is a directory", path))
	}

	head := make([]byte, 5)
	n, _ := io.ReadFull(file, head)
	if !document.ValidatePDF(head[:n]) {
		return fail(fmt.Errorf("%s: %w", filepath.Base(path), ErrNotPDF))
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fail(err)
	}

	progress.Status = StatusUploading
	progress.Total = info.Size()
	sendProgress(u.progressChan, progress)

	result, err := u.library.UploadBook(ctx, api.Upload{
		Title:    title,
		Author:   strings.TrimSpace(req.Author),
		Filename: path,
		File:     file,
		Size:     info.Size(),
	}, func(percent int) {
		progress.Percent = percent
		progress.Bytes = info.Size() * int64(percent) / 100
		sendProgress(u.progressChan, progress)
	})
	if err != nil {
		return fail(err)
	}

	progress.Status = StatusComplete
	progress.Percent = 100
	progress.Bytes = info.Size()
	if result.Book != nil {
		progress.ID = result.Book.ID
	}
	sendProgress(u.progressChan, progress)
	u.log.WithField("file", path).WithField("title", title).Info("book uploaded")
	return result, nil
}

// Close closes the progress channel; the uploader must not be used afterwards
func (u *Uploader) Close() {
	close(u.progressChan)
}
