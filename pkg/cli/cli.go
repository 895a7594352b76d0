package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/fetchex/pkg/cli/config"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(config.DefaultEnvFile); err != nil {
		return err
	}

	var (
		loggerCfg  = config.Logger{Output: stderr}
		fetchCfg   config.Fetch
		configFile string
		logger     *slog.Logger
	)

	flags := append(loggerCfg.Flags(), fetchCfg.Flags()...)
	flags = append(flags, config.FileFlags(&configFile)...)

	app := &cli.Command{
		Name:      "fetchex",
		Usage:     "Download an archive, verify it and extract it",
		Version:   types.Version,
		Flags:     flags,
		Writer:    stdout,
		ErrWriter: stderr,
		OnUsageError: func(ctx context.Context, c *cli.Command, err error, isSubcommand bool) error {
			return goerr.Wrap(err, "invalid command line", goerr.T(types.ErrTagInvalidArgument))
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if configFile != "" {
				file, err := config.LoadFile(afero.NewOsFs(), configFile)
				if err != nil {
					return nil, err
				}
				if err := file.Apply(c.IsSet, &fetchCfg, &loggerCfg); err != nil {
					return nil, err
				}
			}

			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			logger = logger.With("run_id", uuid.NewString())
			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runFetch(ctx, &fetchCfg, stdout, stderr)
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed",
			slog.String("kind", types.Kind(err)),
			slog.Any("error", err),
		)
		return err
	}

	return nil
}
