package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

// File is the optional TOML configuration file. Every key is optional and
// only fills in flags that were not given on the command line or through
// the environment.
type File struct {
	URL          *string `toml:"url"`
	Destination  *string `toml:"destination"`
	Force        *bool   `toml:"force"`
	Reuse        *bool   `toml:"reuse"`
	ProbeTimeout *string `toml:"probe_timeout"`
	ChunkSize    *int    `toml:"chunk_size"`
	NoProgress   *bool   `toml:"no_progress"`

	Log struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"log"`
}

// FileFlags returns the flag that points at the configuration file
func FileFlags(path *string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a TOML file with default settings",
			Destination: path,
			Sources:     cli.EnvVars("FETCHEX_CONFIG"),
		},
	}
}

// LoadFile reads and strictly decodes a TOML configuration file. Unknown
// keys are rejected.
func LoadFile(fsys afero.Fs, path string) (*File, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open config file",
			goerr.V("path", path),
			goerr.T(types.ErrTagInvalidArgument))
	}
	defer f.Close()

	var cfg File
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file",
			goerr.V("path", path),
			goerr.T(types.ErrTagInvalidArgument))
	}

	return &cfg, nil
}

// Apply copies file values into fetch and logger for every flag that isSet
// reports as unset.
func (f *File) Apply(isSet func(name string) bool, fetch *Fetch, logger *Logger) error {
	setValue(isSet, "url", f.URL, &fetch.URL)
	setValue(isSet, "destination", f.Destination, &fetch.Destination)
	setValue(isSet, "force", f.Force, &fetch.Force)
	setValue(isSet, "reuse", f.Reuse, &fetch.Reuse)
	setValue(isSet, "no-progress", f.NoProgress, &fetch.NoProgress)
	setValue(isSet, "chunk-size", f.ChunkSize, &fetch.ChunkSize)
	setValue(isSet, "log-level", f.Log.Level, &logger.Level)
	setValue(isSet, "log-format", f.Log.Format, &logger.Format)

	if f.ProbeTimeout != nil && !isSet("probe-timeout") {
		d, err := time.ParseDuration(*f.ProbeTimeout)
		if err != nil {
			return goerr.Wrap(err, "invalid probe_timeout in config file",
				goerr.V("probe_timeout", *f.ProbeTimeout),
				goerr.T(types.ErrTagInvalidArgument))
		}
		fetch.ProbeTimeout = d
	}

	return nil
}

func setValue[T any](isSet func(string) bool, name string, src *T, dst *T) {
	if src != nil && !isSet(name) {
		*dst = *src
	}
}
