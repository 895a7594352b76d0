package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/fetchex/pkg/cli/config"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	gt.NoError(t, os.WriteFile(path, []byte("FETCHEX_TEST_DEST=/from/dotenv\nFETCHEX_TEST_KEEP=from-dotenv\n"), 0o600))

	t.Setenv("FETCHEX_TEST_DEST", "")
	gt.NoError(t, os.Unsetenv("FETCHEX_TEST_DEST"))
	t.Setenv("FETCHEX_TEST_KEEP", "from-env")

	gt.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env"), path))

	gt.Equal(t, os.Getenv("FETCHEX_TEST_DEST"), "/from/dotenv")
	gt.Equal(t, os.Getenv("FETCHEX_TEST_KEEP"), "from-env")
}

func TestLoadDotEnv_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	gt.NoError(t, os.WriteFile(path, []byte("BROKEN=\"unterminated\n"), 0o600))

	gt.Error(t, config.LoadDotEnv(path))
}
