package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/spf13/afero"

	"github.com/m-mizutani/fetchex/pkg/cli/config"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/infra/archive"
	"github.com/m-mizutani/fetchex/pkg/infra/fetch"
	"github.com/m-mizutani/fetchex/pkg/usecase"
)

func runFetch(ctx context.Context, cfg *config.Fetch, stdout, stderr io.Writer) error {
	logger := ctxlog.From(ctx)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("Starting fetch",
		slog.String("url", cfg.URL),
		slog.String("destination", cfg.Destination),
		slog.Bool("force", cfg.Force),
	)

	fsys := afero.NewOsFs()
	client := fetch.NewClient(fetch.WithProbeTimeout(cfg.ProbeTimeout))

	uc := usecase.NewFetch(
		usecase.NewResolver(client),
		usecase.NewDownloader(client, fsys, usecase.WithChunkSize(cfg.ChunkSize)),
		usecase.NewVerifier(fsys),
		usecase.NewExtractor(archive.New(fsys)),
		usecase.WithFs(fsys),
	)

	var progress *model.Progress
	if cfg.NoProgress {
		progress = newLogProgress(logger).Progress()
	} else {
		bars := newBarProgress(stderr)
		defer bars.Close()
		progress = bars.Progress()
	}

	result, err := uc.Run(ctx, cfg.Request(), progress)
	printResult(stdout, cfg, result, err)
	return err
}
