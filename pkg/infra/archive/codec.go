package archive

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mholt/archives"
	"github.com/spf13/afero"

	"github.com/m-mizutani/fetchex/pkg/domain/interfaces"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

const copyBufferSize = 64 * 1024

type codec struct {
	fs afero.Fs
}

// New creates an archive codec reading and writing through fsys
func New(fsys afero.Fs) interfaces.ArchiveCodec {
	return &codec{fs: fsys}
}

// Detect selects the archive kind of path from its suffix. When force is
// set and the suffix is unknown, the kind is identified from the content.
func (c *codec) Detect(ctx context.Context, path string, force bool) (model.ArchiveKind, error) {
	name := filepath.Base(path)
	if kind := model.KindFromName(name); kind != model.ArchiveUnsupported {
		return kind, nil
	}

	if !force {
		msg := "unsupported archive type; only .zip, .tar.gz, .tgz and .tar are supported"
		if model.IsBareGzip(name) {
			msg = "unsupported archive type .gz; only .zip, .tar.gz, .tgz and .tar are supported"
		}
		return model.ArchiveUnsupported, goerr.New(msg,
			goerr.V("path", path), goerr.T(types.ErrTagUnsupportedFormat))
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return model.ArchiveUnsupported, types.WrapFS(err, "failed to open archive", path)
	}
	defer f.Close()

	format, _, err := archives.Identify(ctx, "", f)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return model.ArchiveUnsupported, goerr.New("could not identify archive format",
				goerr.V("path", path), goerr.T(types.ErrTagUnsupportedFormat))
		}
		return model.ArchiveUnsupported, goerr.Wrap(err, "failed to identify archive format",
			goerr.V("path", path), goerr.T(types.ErrTagCorruptArchive))
	}

	kind := model.KindFromName("archive" + format.Extension())
	if kind == model.ArchiveUnsupported {
		return model.ArchiveUnsupported, goerr.New("detected format is not a supported archive",
			goerr.V("path", path),
			goerr.V("detected", format.Extension()),
			goerr.T(types.ErrTagUnsupportedFormat))
	}

	ctxlog.From(ctx).Debug("Identified archive by content",
		"path", path,
		"kind", kind.String(),
	)
	return kind, nil
}

// Test reads every member to the end so that CRC and stream errors surface
// before anything is written.
func (c *codec) Test(ctx context.Context, path string, kind model.ArchiveKind, destDir string) (*model.ArchiveListing, error) {
	listing := &model.ArchiveListing{Kind: kind}

	err := c.walk(ctx, path, kind, func(ctx context.Context, info archives.FileInfo) error {
		if _, err := memberTarget(destDir, path, info.NameInArchive); err != nil {
			return err
		}

		if info.Mode().IsRegular() {
			if err := drain(info); err != nil {
				return err
			}
		}

		listing.Members = append(listing.Members, toMember(info))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return listing, nil
}

// Extract writes members below destDir. Files already present are
// overwritten; nothing is rolled back on failure.
func (c *codec) Extract(ctx context.Context, path string, kind model.ArchiveKind, destDir string, onMember func(member model.ArchiveMember)) error {
	logger := ctxlog.From(ctx)

	return c.walk(ctx, path, kind, func(ctx context.Context, info archives.FileInfo) error {
		target, err := memberTarget(destDir, path, info.NameInArchive)
		if err != nil {
			return err
		}

		switch {
		case info.IsDir():
			if err := c.fs.MkdirAll(target, 0o755); err != nil {
				return types.WrapFS(err, "failed to create directory", target)
			}
		case info.Mode().IsRegular():
			if err := c.writeFile(info, target); err != nil {
				return err
			}
		default:
			logger.Debug("Skipping non-regular archive member",
				"member", info.NameInArchive,
				"mode", info.Mode().String(),
			)
		}

		if onMember != nil {
			onMember(toMember(info))
		}
		return nil
	})
}

// walk opens the archive and hands every member to handle. Errors returned
// by handle are passed through unchanged; any other failure means the
// archive could not be read.
func (c *codec) walk(ctx context.Context, path string, kind model.ArchiveKind, handle archives.FileHandler) error {
	f, err := c.fs.Open(path)
	if err != nil {
		return types.WrapFS(err, "failed to open archive", path)
	}
	defer f.Close()

	var handlerErr error
	handler := func(ctx context.Context, info archives.FileInfo) error {
		if err := handle(ctx, info); err != nil {
			handlerErr = err
			return err
		}
		return nil
	}

	switch kind {
	case model.ArchiveZip:
		err = archives.Zip{}.Extract(ctx, f, handler)

	case model.ArchiveTarGz:
		rc, gzErr := archives.Gz{}.OpenReader(f)
		if gzErr != nil {
			return goerr.Wrap(gzErr, "failed to open gzip stream",
				goerr.V("path", path), goerr.T(types.ErrTagCorruptArchive))
		}
		defer rc.Close()
		err = archives.Tar{}.Extract(ctx, rc, handler)

	case model.ArchiveTar:
		err = archives.Tar{}.Extract(ctx, f, handler)

	default:
		return goerr.New("unsupported archive type",
			goerr.V("path", path),
			goerr.V("kind", kind.String()),
			goerr.T(types.ErrTagUnsupportedFormat))
	}

	if handlerErr != nil {
		return handlerErr
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return goerr.Wrap(ctxErr, "archive processing interrupted", goerr.V("path", path))
		}
		return goerr.Wrap(err, "failed to read archive",
			goerr.V("path", path),
			goerr.V("kind", kind.String()),
			goerr.T(types.ErrTagCorruptArchive))
	}
	return nil
}

func (c *codec) writeFile(info archives.FileInfo, target string) error {
	if err := c.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return types.WrapFS(err, "failed to create parent directory", filepath.Dir(target))
	}

	src, err := info.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open archive member",
			goerr.V("member", info.NameInArchive), goerr.T(types.ErrTagCorruptArchive))
	}
	defer src.Close()

	// Keep the owner write bit so a second run can overwrite the file
	perm := info.Mode().Perm() | 0o600
	dst, err := c.fs.OpenFile(target, osCreateFlags, perm)
	if err != nil {
		return types.WrapFS(err, "failed to create file", target)
	}

	if _, err := io.CopyBuffer(dst, src, make([]byte, copyBufferSize)); err != nil {
		dst.Close()
		if isFSError(err) {
			return types.WrapFS(err, "failed to write file", target)
		}
		return goerr.Wrap(err, "failed to read archive member",
			goerr.V("member", info.NameInArchive), goerr.T(types.ErrTagCorruptArchive))
	}

	if err := dst.Close(); err != nil {
		return types.WrapFS(err, "failed to close file", target)
	}
	return nil
}

func drain(info archives.FileInfo) error {
	rc, err := info.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open archive member",
			goerr.V("member", info.NameInArchive), goerr.T(types.ErrTagCorruptArchive))
	}
	defer rc.Close()

	if _, err := io.CopyBuffer(io.Discard, rc, make([]byte, copyBufferSize)); err != nil {
		return goerr.Wrap(err, "archive member failed integrity check",
			goerr.V("member", info.NameInArchive), goerr.T(types.ErrTagCorruptArchive))
	}
	return nil
}

func toMember(info archives.FileInfo) model.ArchiveMember {
	return model.ArchiveMember{
		Name: info.NameInArchive,
		Dir:  info.IsDir(),
		Size: info.Size(),
	}
}

func isFSError(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}
