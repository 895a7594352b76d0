package usecase

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/afero"

	"github.com/m-mizutani/fetchex/pkg/domain/interfaces"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

// DefaultChunkSize is the read size of the download stream
const DefaultChunkSize = 4096

// Downloader streams a resolved source into the destination directory
type Downloader struct {
	client    interfaces.HTTPClient
	fs        afero.Fs
	chunkSize int
}

var _ interfaces.Downloader = (*Downloader)(nil)

// DownloaderOption configures a Downloader
type DownloaderOption func(*Downloader)

// WithChunkSize sets the read size of the download stream
func WithChunkSize(size int) DownloaderOption {
	return func(d *Downloader) {
		if size > 0 {
			d.chunkSize = size
		}
	}
}

// NewDownloader creates a Downloader writing through fsys
func NewDownloader(client interfaces.HTTPClient, fsys afero.Fs, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client:    client,
		fs:        fsys,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches src into the destination directory of req. With
// req.ReuseExisting set, a regular file already at the target path is
// returned without reading the body. The body is written to a temporary file
// that is renamed into place only after the stream completes, so a failed
// download never leaves a partial file behind.
func (d *Downloader) Download(ctx context.Context, src *model.ResolvedSource, req *model.DownloadRequest, onProgress func(downloaded, total int64)) (*model.DownloadedFile, error) {
	logger := ctxlog.From(ctx)
	destDir := req.DestinationDir

	resp, err := d.client.Get(ctx, src.FinalURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to start download",
			goerr.V("url", src.FinalURL),
			goerr.T(types.ErrTagNetwork))
	}
	defer safeClose(ctx, resp.Body)

	contentType := resp.Header.Get("Content-Type")
	if isTextContent(contentType) {
		return nil, goerr.New("server returned a document instead of a file",
			goerr.V("url", src.FinalURL),
			goerr.V("content_type", contentType),
			goerr.T(types.ErrTagInvalidContent))
	}

	// The GET may be redirected again after the probe
	fetchedURL := src.FinalURL
	if resp.Request != nil && resp.Request.URL != nil {
		fetchedURL = resp.Request.URL.String()
	}
	name := DeriveFileName(resp.Header, fetchedURL)
	target := filepath.Join(destDir, name)

	if req.ReuseExisting {
		if info, err := d.fs.Stat(target); err == nil && info.Mode().IsRegular() {
			logger.Info("Reusing existing file", "path", target, "size", info.Size())
			return &model.DownloadedFile{Path: target, Size: info.Size(), Reused: true}, nil
		}
	}

	total := resp.ContentLength
	if total < 0 {
		total = src.ExpectedSize
	}

	logger.Info("Downloading",
		"url", src.FinalURL,
		"path", target,
		"content_type", contentType,
		"total", total,
	)

	tmp, err := afero.TempFile(d.fs, destDir, "."+name+".part-*")
	if err != nil {
		return nil, types.WrapFS(err, "failed to create temporary file", destDir)
	}
	tmpName := tmp.Name()

	completed := false
	defer func() {
		if completed {
			return
		}
		_ = tmp.Close()
		if err := d.fs.Remove(tmpName); err != nil {
			logger.Warn("Failed to remove partial download", "path", tmpName, "error", err)
		}
	}()

	written, err := d.stream(tmp, resp.Body, total, onProgress)
	if err != nil {
		return nil, goerr.Wrap(err, "download failed",
			goerr.V("url", src.FinalURL),
			goerr.V("written", written))
	}

	if err := tmp.Close(); err != nil {
		return nil, types.WrapFS(err, "failed to close temporary file", tmpName)
	}
	if err := d.fs.Rename(tmpName, target); err != nil {
		return nil, types.WrapFS(err, "failed to move download into place", target)
	}
	completed = true

	logger.Info("Download completed", "path", target, "size", written)
	return &model.DownloadedFile{Path: target, Size: written}, nil
}

// stream copies body to dst in chunkSize reads and reports the cumulative
// byte count after each chunk.
func (d *Downloader) stream(dst afero.File, body io.Reader, total int64, onProgress func(downloaded, total int64)) (int64, error) {
	buf := make([]byte, d.chunkSize)
	var written int64

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, types.WrapFS(err, "failed to write download", dst.Name())
			}
			written += int64(n)
			if onProgress != nil {
				onProgress(written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, goerr.Wrap(readErr, "connection interrupted",
				goerr.T(types.ErrTagNetwork))
		}
	}
}

func isTextContent(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text") || strings.Contains(ct, "html")
}

func safeClose(ctx context.Context, c io.Closer) {
	if err := c.Close(); err != nil {
		ctxlog.From(ctx).Debug("Failed to close", "error", err)
	}
}
