package archive

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

const osCreateFlags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC

// memberPath joins name to destDir and rejects results outside destDir.
// Absolute member names are treated as relative to destDir.
func memberPath(destDir, name string) (string, error) {
	root := filepath.Clean(destDir)
	target := filepath.Join(root, name)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", goerr.New("archive member escapes destination directory",
			goerr.V("member", name),
			goerr.V("dest", destDir),
			goerr.T(types.ErrTagCorruptArchive))
	}
	return target, nil
}

// memberTarget resolves name like memberPath and also rejects a member that
// would overwrite the archive being read.
func memberTarget(destDir, archivePath, name string) (string, error) {
	target, err := memberPath(destDir, name)
	if err != nil {
		return "", err
	}
	if target == filepath.Clean(archivePath) {
		return "", goerr.New("archive member would overwrite the archive itself",
			goerr.V("member", name),
			goerr.V("archive", archivePath),
			goerr.T(types.ErrTagCorruptArchive))
	}
	return target, nil
}
