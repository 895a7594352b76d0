// Package testutil provides archive builders and an HTTP file server for tests.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"sort"
	"testing"
)

// Entry is a member of a generated archive. Names ending in "/" are directories.
type Entry struct {
	Name string
	Body string
}

// Files converts a name to content map into entries sorted by name
func Files(files map[string]string) []Entry {
	entries := make([]Entry, 0, len(files))
	for name, body := range files {
		entries = append(entries, Entry{Name: name, Body: body})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Zip builds a ZIP archive. Members are stored without compression so that
// their bytes can be located and corrupted by tests.
func Zip(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Store})
		if err != nil {
			t.Fatalf("create zip entry %s: %v", e.Name, err)
		}
		if isDir(e.Name) {
			continue
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("write zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// Tar builds an uncompressed TAR archive
func Tar(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0o644, Size: int64(len(e.Body)), Typeflag: tar.TypeReg}
		if isDir(e.Name) {
			hdr.Mode = 0o755
			hdr.Size = 0
			hdr.Typeflag = tar.TypeDir
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("write tar entry %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	return buf.Bytes()
}

// TarGz builds a gzip compressed TAR archive
func TarGz(t *testing.T, entries []Entry) []byte {
	t.Helper()
	return Gzip(t, Tar(t, entries))
}

// Gzip compresses data
func Gzip(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// Corrupt returns a copy of data with the first occurrence of marker
// overwritten, which breaks the CRC of a stored ZIP member.
func Corrupt(t *testing.T, data []byte, marker string) []byte {
	t.Helper()

	idx := bytes.Index(data, []byte(marker))
	if idx < 0 {
		t.Fatalf("marker %q not found in archive", marker)
	}
	out := bytes.Clone(data)
	out[idx] ^= 0xff
	return out
}

func isDir(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}
