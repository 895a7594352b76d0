package config

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/infra/fetch"
	"github.com/m-mizutani/fetchex/pkg/usecase"
)

// DefaultDestination is the extraction directory when none is given
const DefaultDestination = "extracted_files"

// Fetch holds the configuration of a single download
type Fetch struct {
	URL          string        `flag:"url" validate:"required"`
	Destination  string        `flag:"destination" validate:"required"`
	Force        bool          `flag:"force"`
	Reuse        bool          `flag:"reuse"`
	ProbeTimeout time.Duration `flag:"probe-timeout" validate:"gt=0"`
	ChunkSize    int           `flag:"chunk-size" validate:"gte=1,lte=16777216"`
	NoProgress   bool          `flag:"no-progress"`
}

// Flags returns CLI flags for fetch configuration
func (c *Fetch) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "url",
			Aliases:     []string{"u"},
			Usage:       "Source URL of the archive",
			Destination: &c.URL,
			Sources:     cli.EnvVars("FETCHEX_URL"),
		},
		&cli.StringFlag{
			Name:        "destination",
			Aliases:     []string{"d"},
			Usage:       "Directory to download and extract into",
			Value:       DefaultDestination,
			Destination: &c.Destination,
			Sources:     cli.EnvVars("FETCHEX_DESTINATION"),
		},
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "Extract even if the file name has no known archive suffix",
			Destination: &c.Force,
			Sources:     cli.EnvVars("FETCHEX_FORCE"),
		},
		&cli.BoolFlag{
			Name:        "reuse",
			Usage:       "Reuse an already downloaded file instead of downloading it again",
			Destination: &c.Reuse,
			Sources:     cli.EnvVars("FETCHEX_REUSE"),
		},
		&cli.DurationFlag{
			Name:        "probe-timeout",
			Usage:       "Timeout of the reachability probe",
			Value:       fetch.DefaultProbeTimeout,
			Destination: &c.ProbeTimeout,
			Sources:     cli.EnvVars("FETCHEX_PROBE_TIMEOUT"),
		},
		&cli.IntFlag{
			Name:        "chunk-size",
			Usage:       "Read size of the download stream in bytes",
			Value:       usecase.DefaultChunkSize,
			Destination: &c.ChunkSize,
			Sources:     cli.EnvVars("FETCHEX_CHUNK_SIZE"),
		},
		&cli.BoolFlag{
			Name:        "no-progress",
			Usage:       "Log progress instead of drawing progress bars",
			Destination: &c.NoProgress,
			Sources:     cli.EnvVars("FETCHEX_NO_PROGRESS"),
		},
	}
}

// Validate checks the configuration and returns an invalid argument error
func (c *Fetch) Validate() error {
	return validateStruct(c)
}

// Request converts the configuration into a pipeline request
func (c *Fetch) Request() *model.DownloadRequest {
	return &model.DownloadRequest{
		SourceURL:      c.URL,
		DestinationDir: c.Destination,
		ForceExtract:   c.Force,
		ReuseExisting:  c.Reuse,
	}
}
