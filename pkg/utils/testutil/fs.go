package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DenyFs wraps an afero.Fs and refuses directory creation and writes at or
// below Prefix with fs.ErrPermission. Reads pass through.
type DenyFs struct {
	afero.Fs
	Prefix string
}

// NewDenyFs returns a DenyFs over base
func NewDenyFs(base afero.Fs, prefix string) *DenyFs {
	return &DenyFs{Fs: base, Prefix: filepath.Clean(prefix)}
}

func (d *DenyFs) denied(name string) bool {
	name = filepath.Clean(name)
	return name == d.Prefix || strings.HasPrefix(name, d.Prefix+string(os.PathSeparator))
}

func (d *DenyFs) Mkdir(name string, perm os.FileMode) error {
	if d.denied(name) {
		return &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrPermission}
	}
	return d.Fs.Mkdir(name, perm)
}

func (d *DenyFs) MkdirAll(path string, perm os.FileMode) error {
	if d.denied(path) {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrPermission}
	}
	return d.Fs.MkdirAll(path, perm)
}

func (d *DenyFs) Create(name string) (afero.File, error) {
	if d.denied(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return d.Fs.Create(name)
}

func (d *DenyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 && d.denied(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return d.Fs.OpenFile(name, flag, perm)
}
