package interfaces

import (
	"context"

	"github.com/m-mizutani/fetchex/pkg/domain/model"
)

// Resolver checks a source URL and collects its metadata
type Resolver interface {
	// Resolve probes url and returns its final location and advertised size
	Resolve(ctx context.Context, url string) (*model.ResolvedSource, error)
}

// Downloader streams a resolved source into a directory
type Downloader interface {
	// Download writes the source body to the destination of req and reports
	// cumulative bytes
	Download(ctx context.Context, src *model.ResolvedSource, req *model.DownloadRequest, onProgress func(downloaded, total int64)) (*model.DownloadedFile, error)
}

// Verifier checks a downloaded file against the advertised size
type Verifier interface {
	// Verify removes the file and fails if its size differs from expected.
	// An expected size of model.UnknownSize always passes.
	Verify(ctx context.Context, file *model.DownloadedFile, expected int64, onProgress func(percent int)) error
}

// Extractor unpacks a downloaded archive
type Extractor interface {
	// Extract tests and unpacks the archive at path into destDir
	Extract(ctx context.Context, path, destDir string, force bool, onProgress func(done, total int)) (*model.ArchiveListing, error)
}

// FetchUseCase runs the whole download, verify and extract pipeline
type FetchUseCase interface {
	Run(ctx context.Context, req *model.DownloadRequest, progress *model.Progress) (*model.Result, error)
}
