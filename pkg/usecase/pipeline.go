package usecase

import (
	"context"
	"errors"
	"io/fs"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"github.com/m-mizutani/fetchex/pkg/domain/interfaces"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

// RetryPolicy bounds the attempts of the download and verify steps
type RetryPolicy struct {
	MaxAttempts int
}

// DefaultRetryPolicy allows exactly one retry
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2}

type fetchConfig struct {
	retry RetryPolicy
	fs    afero.Fs
}

// FetchOption configures the fetch pipeline
type FetchOption func(*fetchConfig)

// WithRetryPolicy overrides DefaultRetryPolicy. Policies with fewer than one
// attempt are ignored.
func WithRetryPolicy(p RetryPolicy) FetchOption {
	return func(c *fetchConfig) {
		if p.MaxAttempts > 0 {
			c.retry = p
		}
	}
}

// WithFs sets the filesystem used to create the destination and to clean up
// downloaded files. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) FetchOption {
	return func(c *fetchConfig) {
		c.fs = fsys
	}
}

type fetchUseCase struct {
	resolver   interfaces.Resolver
	downloader interfaces.Downloader
	verifier   interfaces.Verifier
	extractor  interfaces.Extractor
	cfg        *fetchConfig
}

// NewFetch creates the download, verify and extract pipeline
func NewFetch(resolver interfaces.Resolver, downloader interfaces.Downloader, verifier interfaces.Verifier, extractor interfaces.Extractor, opts ...FetchOption) interfaces.FetchUseCase {
	cfg := &fetchConfig{
		retry: DefaultRetryPolicy,
		fs:    afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &fetchUseCase{
		resolver:   resolver,
		downloader: downloader,
		verifier:   verifier,
		extractor:  extractor,
		cfg:        cfg,
	}
}

// Run executes the pipeline for req. The returned Result is never nil; on
// failure its State is StateFailed and FailedAt names the failing step.
func (uc *fetchUseCase) Run(ctx context.Context, req *model.DownloadRequest, progress *model.Progress) (*model.Result, error) {
	ctx, span := startSpan(ctx, "fetch",
		attribute.String("url", spanURL(req.SourceURL)),
		attribute.String("destination", req.DestinationDir),
	)

	result := &model.Result{}
	err := uc.run(ctx, req, progress, result)
	if err != nil {
		result.FailedAt = result.State
		result.State = model.StateFailed
		ctxlog.From(ctx).Debug("Pipeline state changed",
			"state", model.StateFailed.String(),
			"failed_at", result.FailedAt.String(),
		)
	}
	span.SetAttributes(attribute.Int("attempts", result.Attempts))
	endSpan(span, err)

	return result, err
}

func (uc *fetchUseCase) run(ctx context.Context, req *model.DownloadRequest, progress *model.Progress, result *model.Result) error {
	logger := ctxlog.From(ctx)

	err := uc.step(ctx, result, model.StateResolving, func(ctx context.Context) error {
		src, err := uc.resolver.Resolve(ctx, req.SourceURL)
		if err != nil {
			return err
		}
		result.Source = src
		return nil
	})
	if err != nil {
		return err
	}

	uc.transition(ctx, result, model.StateDownloading)
	if err := uc.cfg.fs.MkdirAll(req.DestinationDir, 0o755); err != nil {
		return types.WrapFS(err, "failed to create destination directory", req.DestinationDir)
	}

	file, err := uc.fetchWithRetry(ctx, req, progress, result)
	if err != nil {
		return err
	}

	err = uc.step(ctx, result, model.StateExtracting, func(ctx context.Context) error {
		listing, err := uc.extractor.Extract(ctx, file.Path, req.DestinationDir, req.ForceExtract, progress.Extract)
		if err != nil {
			return err
		}
		result.Listing = listing
		return nil
	})
	if err != nil {
		if types.HasTag(err, types.ErrTagCorruptArchive) {
			result.Retained = true
			logger.Warn("Keeping corrupt archive for inspection", "path", file.Path)
		} else {
			uc.remove(ctx, file.Path)
		}
		return err
	}

	_ = uc.step(ctx, result, model.StateCleanup, func(ctx context.Context) error {
		uc.remove(ctx, file.Path)
		return nil
	})

	uc.transition(ctx, result, model.StateDone)
	logger.Info("Fetch completed",
		"url", req.SourceURL,
		"destination", req.DestinationDir,
		"files", result.Listing.Files(),
		"attempts", result.Attempts,
	)
	return nil
}

func (uc *fetchUseCase) fetchWithRetry(ctx context.Context, req *model.DownloadRequest, progress *model.Progress, result *model.Result) (*model.DownloadedFile, error) {
	logger := ctxlog.From(ctx)

	var lastErr error
	for attempt := 1; attempt <= uc.cfg.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			uc.transition(ctx, result, model.StateRetrying)
			logger.Warn("Retrying download",
				"attempt", attempt,
				"max_attempts", uc.cfg.retry.MaxAttempts,
				"error", lastErr,
			)
			progress.Retry(attempt)
		}
		result.Attempts = attempt

		file, err := uc.downloadAndVerify(ctx, req, progress, result)
		if err == nil {
			return file, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, goerr.Wrap(err, "fetch interrupted", goerr.T(types.ErrTagNetwork))
		}
		if !types.IsRetryable(err) {
			return nil, err
		}
	}

	return nil, goerr.Wrap(lastErr, "giving up after retry",
		goerr.V("attempts", result.Attempts))
}

func (uc *fetchUseCase) downloadAndVerify(ctx context.Context, req *model.DownloadRequest, progress *model.Progress, result *model.Result) (*model.DownloadedFile, error) {
	var file *model.DownloadedFile

	err := uc.step(ctx, result, model.StateDownloading, func(ctx context.Context) error {
		f, err := uc.downloader.Download(ctx, result.Source, req, progress.Download)
		if err != nil {
			return err
		}
		file = f
		result.File = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = uc.step(ctx, result, model.StateVerifying, func(ctx context.Context) error {
		return uc.verifier.Verify(ctx, file, result.Source.ExpectedSize, progress.Verify)
	})
	if err != nil {
		uc.remove(ctx, file.Path)
		return nil, err
	}

	return file, nil
}

// step moves result into state and runs fn inside a span named after it
func (uc *fetchUseCase) step(ctx context.Context, result *model.Result, state model.State, fn func(ctx context.Context) error) error {
	uc.transition(ctx, result, state)

	ctx, span := startSpan(ctx, state.String(), attribute.Int("attempt", result.Attempts))
	err := fn(ctx)
	endSpan(span, err)
	return err
}

func (uc *fetchUseCase) transition(ctx context.Context, result *model.Result, state model.State) {
	if result.State == state {
		return
	}
	ctxlog.From(ctx).Debug("Pipeline state changed",
		"from", result.State.String(),
		"state", state.String(),
	)
	result.State = state
}

// remove deletes path and only logs failures; a missing file is not an error
func (uc *fetchUseCase) remove(ctx context.Context, path string) {
	if err := uc.cfg.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		ctxlog.From(ctx).Warn("Failed to remove downloaded file", "path", path, "error", err)
		return
	}
	ctxlog.From(ctx).Debug("Removed downloaded file", "path", path)
}
