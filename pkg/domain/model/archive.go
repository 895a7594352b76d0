package model

import "strings"

// ArchiveKind identifies an archive format supported by the extractor
type ArchiveKind int

const (
	ArchiveUnsupported ArchiveKind = iota
	ArchiveZip
	ArchiveTarGz
	ArchiveTar
)

func (k ArchiveKind) String() string {
	switch k {
	case ArchiveZip:
		return "zip"
	case ArchiveTarGz:
		return "tar.gz"
	case ArchiveTar:
		return "tar"
	default:
		return "unsupported"
	}
}

// archiveSuffixes is matched in order; the first hit wins.
var archiveSuffixes = []struct {
	suffix string
	kind   ArchiveKind
}{
	{".zip", ArchiveZip},
	{".tar.gz", ArchiveTarGz},
	{".tgz", ArchiveTarGz},
	{".tar", ArchiveTar},
}

// KindFromName maps a file name to an archive kind by its suffix.
// Plain ".gz" files are not archives and map to ArchiveUnsupported.
func KindFromName(name string) ArchiveKind {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind
		}
	}
	return ArchiveUnsupported
}

// IsBareGzip reports whether name is a gzip stream that is not a tarball
func IsBareGzip(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".gz") && KindFromName(lower) == ArchiveUnsupported
}

// ArchiveMember is a single entry of an archive
type ArchiveMember struct {
	Name string // Path recorded in the archive
	Dir  bool   // Directory entry
	Size int64  // Uncompressed size
}

// ArchiveListing is the result of a successful integrity test. A listing is
// only produced when every member could be enumerated and read.
type ArchiveListing struct {
	Kind    ArchiveKind
	Members []ArchiveMember
}

// Files returns the number of non-directory members
func (l *ArchiveListing) Files() int {
	var n int
	for _, m := range l.Members {
		if !m.Dir {
			n++
		}
	}
	return n
}
