package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/fetchex/pkg/domain/interfaces"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
)

// Extractor detects, tests and unpacks archives through an ArchiveCodec
type Extractor struct {
	codec interfaces.ArchiveCodec
}

var _ interfaces.Extractor = (*Extractor)(nil)

// NewExtractor creates an Extractor over codec
func NewExtractor(codec interfaces.ArchiveCodec) *Extractor {
	return &Extractor{codec: codec}
}

// Extract unpacks the archive at path into destDir. Nothing is written unless
// every member passes the integrity test first.
func (e *Extractor) Extract(ctx context.Context, path, destDir string, force bool, onProgress func(done, total int)) (*model.ArchiveListing, error) {
	logger := ctxlog.From(ctx)
	report := func(done, total int) {
		if onProgress != nil {
			onProgress(done, total)
		}
	}

	kind, err := e.codec.Detect(ctx, path, force)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to detect archive format", goerr.V("path", path))
	}

	listing, err := e.codec.Test(ctx, path, kind, destDir)
	if err != nil {
		return nil, goerr.Wrap(err, "archive integrity test failed",
			goerr.V("path", path),
			goerr.V("kind", kind.String()))
	}

	logger.Info("Archive integrity verified",
		"path", path,
		"kind", kind.String(),
		"members", len(listing.Members),
	)

	total := len(listing.Members)
	done := 0
	report(done, total)

	err = e.codec.Extract(ctx, path, kind, destDir, func(m model.ArchiveMember) {
		done++
		logger.Debug("Extracted member", "name", m.Name)
		report(done, total)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract archive",
			goerr.V("path", path),
			goerr.V("dest", destDir))
	}

	logger.Info("Archive extracted",
		"path", path,
		"dest", destDir,
		"files", listing.Files(),
	)
	return listing, nil
}
