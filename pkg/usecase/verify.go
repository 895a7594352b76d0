package usecase

import (
	"context"
	"errors"
	"io/fs"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/afero"

	"github.com/m-mizutani/fetchex/pkg/domain/interfaces"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

// Verifier compares a downloaded file with the size the server advertised
type Verifier struct {
	fs afero.Fs
}

var _ interfaces.Verifier = (*Verifier)(nil)

// NewVerifier creates a Verifier reading through fsys
func NewVerifier(fsys afero.Fs) *Verifier {
	return &Verifier{fs: fsys}
}

// Verify deletes the file and returns a size mismatch error when its size on
// disk differs from expected.
func (v *Verifier) Verify(ctx context.Context, file *model.DownloadedFile, expected int64, onProgress func(percent int)) error {
	logger := ctxlog.From(ctx)
	report := func(p int) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	report(0)

	if expected < 0 {
		logger.Warn("Skipping size verification; expected size is unknown", "path", file.Path)
		report(100)
		return nil
	}

	info, err := v.fs.Stat(file.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return types.WrapFS(err, "failed to stat downloaded file", file.Path)
		}
		return goerr.Wrap(err, "downloaded file is missing",
			goerr.V("path", file.Path),
			goerr.V("expected", expected),
			goerr.T(types.ErrTagSizeMismatch))
	}

	if actual := info.Size(); actual != expected {
		if err := v.fs.Remove(file.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to remove mismatched file", "path", file.Path, "error", err)
		}
		return goerr.New("file size does not match the advertised size",
			goerr.V("path", file.Path),
			goerr.V("expected", expected),
			goerr.V("actual", actual),
			goerr.T(types.ErrTagSizeMismatch))
	}

	logger.Info("Size verified", "path", file.Path, "size", expected)
	report(100)
	return nil
}
