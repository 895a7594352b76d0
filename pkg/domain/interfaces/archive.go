package interfaces

import (
	"context"

	"github.com/m-mizutani/fetchex/pkg/domain/model"
)

// ArchiveCodec reads archives from storage and writes their members
type ArchiveCodec interface {
	// Detect selects the archive kind of path. With force set, files without
	// a known suffix are identified by content.
	Detect(ctx context.Context, path string, force bool) (model.ArchiveKind, error)

	// Test reads every member of the archive and fails on any inconsistency
	// or on a member that would escape destDir.
	Test(ctx context.Context, path string, kind model.ArchiveKind, destDir string) (*model.ArchiveListing, error)

	// Extract writes all members to destDir, calling onMember after each one
	Extract(ctx context.Context, path string, kind model.ArchiveKind, destDir string, onMember func(member model.ArchiveMember)) error
}
