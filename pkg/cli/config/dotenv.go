package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

// DefaultEnvFile is loaded from the working directory when present
const DefaultEnvFile = ".env"

// LoadDotEnv exports the variables of each existing file into the process
// environment. Variables that are already set keep their value and missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return goerr.Wrap(err, "failed to load env file",
				goerr.V("path", path),
				goerr.T(types.ErrTagInvalidArgument))
		}
	}
	return nil
}
