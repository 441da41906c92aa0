package services

// TransferProgress reports on an upload or a book download
type TransferProgress struct {
	ID      string // book ID, or the file name for uploads
	Title   string
	Kind    string // "download", "upload"
	Status  string // "queued", "downloading", "uploading", "complete", "error"
	Bytes   int64
	Total   int64 // -1 when unknown
	Percent int
	Error   error
}

const (
	TransferDownload = "download"
	TransferUpload   = "upload"

	StatusQueued      = "queued"
	StatusDownloading = "downloading"
	StatusUploading   = "uploading"
	StatusComplete    = "complete"
	StatusError       = "error"
)

// sendProgress sends a progress update (non-blocking)
func sendProgress(ch chan TransferProgress, progress TransferProgress) {
	select {
	case ch <- progress:
	default:
		// Channel full, skip this update
	}
}
