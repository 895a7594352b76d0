package model

// UnknownSize marks a size the server did not advertise
const UnknownSize int64 = -1

// DownloadRequest is the immutable input of one pipeline run
type DownloadRequest struct {
	SourceURL      string // URL of the archive
	DestinationDir string // Directory receiving the download and extracted members
	ForceExtract   bool   // Extract even when the file suffix is not a known archive type
	ReuseExisting  bool   // Reuse an already downloaded file instead of fetching again
}

// ProbeResult is the metadata returned by a reachability probe
type ProbeResult struct {
	FinalURL      string // URL after following redirects
	StatusCode    int
	ContentLength int64 // UnknownSize if the header was absent
	ContentType   string
}

// ResolvedSource represents a reachable source URL with its advertised metadata
type ResolvedSource struct {
	FinalURL     string // Terminal URL after redirects
	ExpectedSize int64  // Advertised Content-Length or UnknownSize
	ContentType  string // Advertised Content-Type of the probe
}

// HasExpectedSize reports whether the server advertised a content length
func (s *ResolvedSource) HasExpectedSize() bool {
	return s != nil && s.ExpectedSize >= 0
}
