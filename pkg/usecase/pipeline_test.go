package usecase_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/spf13/afero"

	"github.com/m-mizutani/fetchex/pkg/domain/interfaces"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
	"github.com/m-mizutani/fetchex/pkg/infra/archive"
	"github.com/m-mizutani/fetchex/pkg/infra/fetch"
	"github.com/m-mizutani/fetchex/pkg/usecase"
	"github.com/m-mizutani/fetchex/pkg/utils/testutil"
)

const destDir = "/work/extracted_files"

func newPipeline(fsys afero.Fs, dlOpts ...usecase.DownloaderOption) interfaces.FetchUseCase {
	client := fetch.NewClient()
	return usecase.NewFetch(
		usecase.NewResolver(client),
		usecase.NewDownloader(client, fsys, dlOpts...),
		usecase.NewVerifier(fsys),
		usecase.NewExtractor(archive.New(fsys)),
		usecase.WithFs(fsys),
	)
}

// recorder captures every progress channel of a run
type recorder struct {
	downloads [][2]int64
	verifies  []int
	extracts  [][2]int
	retries   []int
}

func (r *recorder) progress() *model.Progress {
	return &model.Progress{
		OnDownload: func(downloaded, total int64) { r.downloads = append(r.downloads, [2]int64{downloaded, total}) },
		OnVerify:   func(percent int) { r.verifies = append(r.verifies, percent) },
		OnExtract:  func(done, total int) { r.extracts = append(r.extracts, [2]int{done, total}) },
		OnRetry:    func(attempt int) { r.retries = append(r.retries, attempt) },
	}
}

func request(srv *httptest.Server, path string) *model.DownloadRequest {
	return &model.DownloadRequest{SourceURL: srv.URL + path, DestinationDir: destDir}
}

func TestFetch_ZipSuccess(t *testing.T) {
	archiveData := testutil.Zip(t, releaseEntries)
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/pkg.zip": {Body: archiveData, ContentType: "application/zip"},
	})
	fsys := afero.NewMemMapFs()
	rec := &recorder{}

	result, err := newPipeline(fsys, usecase.WithChunkSize(64)).Run(context.Background(), request(srv.Server, "/pkg.zip"), rec.progress())
	gt.NoError(t, err)

	gt.Equal(t, result.State, model.StateDone)
	gt.Equal(t, result.Attempts, 1)
	gt.False(t, result.File.Reused)
	gt.Equal(t, srv.Gets("/pkg.zip"), 1)
	gt.Equal(t, result.Listing.Files(), 3)

	// Archive deleted, contents kept
	exists, err := afero.Exists(fsys, destDir+"/pkg.zip")
	gt.NoError(t, err)
	gt.False(t, exists)
	got, err := afero.ReadFile(fsys, destDir+"/app/main.go")
	gt.NoError(t, err)
	gt.Equal(t, string(got), "package main")

	size := int64(len(archiveData))
	gt.Equal(t, rec.downloads[len(rec.downloads)-1], [2]int64{size, size})
	gt.Equal(t, rec.verifies, []int{0, 100})
	gt.Equal(t, rec.extracts[len(rec.extracts)-1], [2]int{4, 4})
	gt.Equal(t, len(rec.retries), 0)
}

func TestFetch_RedirectedTarGz(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/latest":              {Redirect: "/releases/v1.tar.gz"},
		"/releases/v1.tar.gz": {Body: testutil.TarGz(t, releaseEntries), ContentType: "application/gzip"},
	})
	fsys := afero.NewMemMapFs()

	result, err := newPipeline(fsys).Run(context.Background(), request(srv.Server, "/latest"), nil)
	gt.NoError(t, err)
	gt.Equal(t, result.Source.FinalURL, srv.URL+"/releases/v1.tar.gz")
	gt.Equal(t, result.File.Path, destDir+"/v1.tar.gz")
	gt.Equal(t, result.Listing.Kind, model.ArchiveTarGz)

	_, err = afero.ReadFile(fsys, destDir+"/app/README.md")
	gt.NoError(t, err)
}

func TestFetch_UnknownLengthTar(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/bundle.tar": {Body: testutil.Tar(t, releaseEntries), OmitLength: true},
	})
	fsys := afero.NewMemMapFs()
	rec := &recorder{}

	result, err := newPipeline(fsys).Run(context.Background(), request(srv.Server, "/bundle.tar"), rec.progress())
	gt.NoError(t, err)
	gt.Equal(t, result.State, model.StateDone)
	gt.False(t, result.Source.HasExpectedSize())
	gt.Equal(t, rec.verifies, []int{0, 100})
	for _, d := range rec.downloads {
		gt.Equal(t, d[1], model.UnknownSize)
	}
}

func TestFetch_ForcedExtraction(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/payload.bin": {Body: testutil.Zip(t, releaseEntries)},
	})
	fsys := afero.NewMemMapFs()

	req := request(srv.Server, "/payload.bin")
	req.ForceExtract = true

	result, err := newPipeline(fsys).Run(context.Background(), req, nil)
	gt.NoError(t, err)
	gt.Equal(t, result.Listing.Kind, model.ArchiveZip)
}

func TestFetch_ReuseExisting(t *testing.T) {
	archiveData := testutil.Zip(t, releaseEntries)
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/pkg.zip": {Body: archiveData},
	})
	fsys := afero.NewMemMapFs()
	gt.NoError(t, afero.WriteFile(fsys, destDir+"/pkg.zip", archiveData, 0o644))

	req := request(srv.Server, "/pkg.zip")
	req.ReuseExisting = true

	result, err := newPipeline(fsys).Run(context.Background(), req, nil)
	gt.NoError(t, err)
	gt.True(t, result.File.Reused)
	gt.Equal(t, result.Listing.Files(), 3)
}

func TestFetch_HTMLResponseRetriedOnce(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/pkg.zip": {Body: []byte("<html><body>Sign in</body></html>"), ContentType: "text/html"},
	})
	fsys := afero.NewMemMapFs()
	rec := &recorder{}

	result, err := newPipeline(fsys).Run(context.Background(), request(srv.Server, "/pkg.zip"), rec.progress())
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagInvalidContent))
	gt.Equal(t, types.ExitCode(err), types.ExitDownloadFailed)

	gt.Equal(t, result.State, model.StateFailed)
	gt.Equal(t, result.FailedAt, model.StateDownloading)
	gt.Equal(t, result.Attempts, 2)
	gt.Equal(t, srv.Gets("/pkg.zip"), 2)
	gt.Equal(t, rec.retries, []int{2})
	gt.Equal(t, len(dirEntries(t, fsys, destDir)), 0)
}

func TestFetch_SizeMismatchRetriedOnce(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/pkg.zip": {Body: payload(1000), AdvertisedSize: 1024},
	})
	fsys := afero.NewMemMapFs()

	result, err := newPipeline(fsys).Run(context.Background(), request(srv.Server, "/pkg.zip"), nil)
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagSizeMismatch))
	gt.Equal(t, types.ExitCode(err), types.ExitVerifyFailed)

	gt.Equal(t, result.FailedAt, model.StateVerifying)
	gt.Equal(t, result.Attempts, 2)
	gt.Equal(t, srv.Gets("/pkg.zip"), 2)
	gt.Equal(t, len(dirEntries(t, fsys, destDir)), 0)
}

func TestFetch_RecoversOnRetry(t *testing.T) {
	body := testutil.Zip(t, releaseEntries)
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		if gets.Add(1) == 1 {
			// Drop the connection halfway through the first download
			_, _ = w.Write(body[:len(body)/2])
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	fsys := afero.NewMemMapFs()
	rec := &recorder{}

	result, err := newPipeline(fsys).Run(context.Background(), request(srv, "/pkg.zip"), rec.progress())
	gt.NoError(t, err)
	gt.Equal(t, result.State, model.StateDone)
	gt.Equal(t, result.Attempts, 2)
	gt.Equal(t, gets.Load(), int32(2))
	gt.Equal(t, rec.retries, []int{2})
}

func TestFetch_UnsupportedFormat(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/setup.exe": {Body: []byte("MZ executable")},
	})
	fsys := afero.NewMemMapFs()

	result, err := newPipeline(fsys).Run(context.Background(), request(srv.Server, "/setup.exe"), nil)
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagUnsupportedFormat))
	gt.Equal(t, types.ExitCode(err), types.ExitUnsupportedFormat)
	gt.Equal(t, result.FailedAt, model.StateExtracting)
	gt.Equal(t, result.Attempts, 1)
	gt.False(t, result.Retained)

	// Destination exists but holds nothing
	isDir, err := afero.DirExists(fsys, destDir)
	gt.NoError(t, err)
	gt.True(t, isDir)
	gt.Equal(t, len(dirEntries(t, fsys, destDir)), 0)
}

func TestFetch_CorruptArchiveRetained(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/pkg.zip": {Body: testutil.Corrupt(t, testutil.Zip(t, releaseEntries), "package main")},
	})
	fsys := afero.NewMemMapFs()

	result, err := newPipeline(fsys).Run(context.Background(), request(srv.Server, "/pkg.zip"), nil)
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagCorruptArchive))
	gt.Equal(t, result.FailedAt, model.StateExtracting)
	gt.Equal(t, result.Attempts, 1)
	gt.True(t, result.Retained)

	gt.Equal(t, dirEntries(t, fsys, destDir), []string{"pkg.zip"})
}

func TestFetch_UnreachableURL(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{})
	fsys := afero.NewMemMapFs()

	result, err := newPipeline(fsys).Run(context.Background(), request(srv.Server, "/missing.zip"), nil)
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagInvalidURL))
	gt.Equal(t, types.ExitCode(err), types.ExitInvalidURL)

	gt.Equal(t, result.FailedAt, model.StateResolving)
	gt.Equal(t, result.Attempts, 0)
	gt.Value(t, result.Source).Nil()
	gt.Equal(t, srv.Gets("/missing.zip"), 0)

	exists, err := afero.Exists(fsys, destDir)
	gt.NoError(t, err)
	gt.False(t, exists)
}

func TestFetch_CanceledContextStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		if r.Method == http.MethodGet {
			cancel()
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(srv.Close)

	result, err := newPipeline(afero.NewMemMapFs()).Run(ctx, request(srv, "/pkg.zip"), nil)
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagNetwork))
	gt.Equal(t, result.Attempts, 1)
}

func TestFetch_RetryPolicy(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/pkg.zip": {Body: []byte("<html/>"), ContentType: "text/html"},
	})
	fsys := afero.NewMemMapFs()
	client := fetch.NewClient()
	uc := usecase.NewFetch(
		usecase.NewResolver(client),
		usecase.NewDownloader(client, fsys),
		usecase.NewVerifier(fsys),
		usecase.NewExtractor(archive.New(fsys)),
		usecase.WithFs(fsys),
		usecase.WithRetryPolicy(usecase.RetryPolicy{MaxAttempts: 1}),
	)

	result, err := uc.Run(context.Background(), request(srv.Server, "/pkg.zip"), nil)
	gt.Error(t, err)
	gt.Equal(t, result.Attempts, 1)
	gt.Equal(t, srv.Gets("/pkg.zip"), 1)
}

func TestFetch_ExtractPermissionDenied(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/pkg.zip": {Body: testutil.Zip(t, releaseEntries), ContentType: "application/zip"},
	})
	base := afero.NewMemMapFs()
	fsys := testutil.NewDenyFs(base, destDir+"/app/internal")

	result, err := newPipeline(fsys).Run(context.Background(), request(srv.Server, "/pkg.zip"), nil)
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagPermission))
	gt.Equal(t, types.ExitCode(err), types.ExitPermission)
	gt.Equal(t, result.State, model.StateFailed)
	gt.Equal(t, result.FailedAt, model.StateExtracting)
	gt.Equal(t, result.Attempts, 1)
	gt.False(t, result.Retained)
	gt.Equal(t, srv.Gets("/pkg.zip"), 1)

	// Members extracted before the failure stay; the archive does not
	got, err := afero.ReadFile(base, destDir+"/app/main.go")
	gt.NoError(t, err)
	gt.Equal(t, string(got), "package main")
	exists, err := afero.Exists(base, destDir+"/pkg.zip")
	gt.NoError(t, err)
	gt.False(t, exists)
}

func TestFetch_DestinationNotCreatable(t *testing.T) {
	srv := testutil.NewServer(t, map[string]testutil.Route{
		"/pkg.zip": {Body: testutil.Zip(t, releaseEntries), ContentType: "application/zip"},
	})
	base := afero.NewMemMapFs()

	result, err := newPipeline(testutil.NewDenyFs(base, destDir)).Run(context.Background(), request(srv.Server, "/pkg.zip"), nil)
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagPermission))
	gt.Equal(t, types.ExitCode(err), types.ExitPermission)
	gt.Equal(t, result.FailedAt, model.StateDownloading)
	gt.Equal(t, result.Attempts, 0)
	gt.Value(t, result.Source).NotNil()
	gt.Equal(t, srv.Gets("/pkg.zip"), 0)

	exists, err := afero.Exists(base, destDir)
	gt.NoError(t, err)
	gt.False(t, exists)
}
