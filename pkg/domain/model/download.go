package model

// DownloadedFile is a file written by the downloader and owned by the pipeline
type DownloadedFile struct {
	Path   string // Location on disk
	Size   int64  // Bytes written
	Reused bool   // True if an existing file was reused instead of downloaded
}
