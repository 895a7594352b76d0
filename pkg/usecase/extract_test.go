package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/spf13/afero"

	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
	"github.com/m-mizutani/fetchex/pkg/infra/archive"
	"github.com/m-mizutani/fetchex/pkg/usecase"
	"github.com/m-mizutani/fetchex/pkg/utils/testutil"
)

var releaseEntries = []testutil.Entry{
	{Name: "app/"},
	{Name: "app/README.md", Body: "# App"},
	{Name: "app/main.go", Body: "package main"},
	{Name: "app/internal/util.go", Body: "package internal"},
}

func TestExtractor_Extract(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		data func(t *testing.T) []byte
		kind model.ArchiveKind
	}{
		{name: "zip", path: "/out/app.zip", data: func(t *testing.T) []byte { return testutil.Zip(t, releaseEntries) }, kind: model.ArchiveZip},
		{name: "tar.gz", path: "/out/app.tar.gz", data: func(t *testing.T) []byte { return testutil.TarGz(t, releaseEntries) }, kind: model.ArchiveTarGz},
		{name: "tgz", path: "/out/app.tgz", data: func(t *testing.T) []byte { return testutil.TarGz(t, releaseEntries) }, kind: model.ArchiveTarGz},
		{name: "tar", path: "/out/APP.TAR", data: func(t *testing.T) []byte { return testutil.Tar(t, releaseEntries) }, kind: model.ArchiveTar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			gt.NoError(t, afero.WriteFile(fsys, tt.path, tt.data(t), 0o644))

			var last [2]int
			var calls int
			listing, err := usecase.NewExtractor(archive.New(fsys)).Extract(ctx, tt.path, "/out", false, func(done, total int) {
				calls++
				last = [2]int{done, total}
			})
			gt.NoError(t, err)
			gt.Equal(t, listing.Kind, tt.kind)
			gt.Equal(t, listing.Files(), 3)
			gt.Equal(t, last, [2]int{len(listing.Members), len(listing.Members)})
			gt.Equal(t, calls, len(listing.Members)+1)

			got, err := afero.ReadFile(fsys, "/out/app/internal/util.go")
			gt.NoError(t, err)
			gt.Equal(t, string(got), "package internal")
		})
	}
}

func TestExtractor_Unsupported(t *testing.T) {
	fsys := afero.NewMemMapFs()
	gt.NoError(t, afero.WriteFile(fsys, "/out/setup.exe", []byte("MZ"), 0o644))

	var called bool
	_, err := usecase.NewExtractor(archive.New(fsys)).Extract(context.Background(), "/out/setup.exe", "/out", false, func(int, int) { called = true })
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagUnsupportedFormat))
	gt.Equal(t, types.ExitCode(err), types.ExitUnsupportedFormat)
	gt.False(t, called)
}

func TestExtractor_CorruptWritesNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	data := testutil.Corrupt(t, testutil.Zip(t, releaseEntries), "package internal")
	gt.NoError(t, afero.WriteFile(fsys, "/out/app.zip", data, 0o644))

	_, err := usecase.NewExtractor(archive.New(fsys)).Extract(context.Background(), "/out/app.zip", "/out", false, nil)
	gt.Error(t, err)
	gt.True(t, types.HasTag(err, types.ErrTagCorruptArchive))
	gt.Equal(t, types.ExitCode(err), types.ExitCorruptArchive)

	gt.Equal(t, dirEntries(t, fsys, "/out"), []string{"app.zip"})
}
