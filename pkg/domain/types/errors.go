package types

import (
	"errors"
	"io/fs"

	"github.com/m-mizutani/goerr/v2"
)

// Error kinds of the fetch pipeline. Every error returned by a pipeline
// component carries exactly one of these tags.
var (
	ErrTagInvalidArgument   = goerr.NewTag("invalid_argument")
	ErrTagInvalidURL        = goerr.NewTag("invalid_url")
	ErrTagNetwork           = goerr.NewTag("network")
	ErrTagInvalidContent    = goerr.NewTag("invalid_content")
	ErrTagSizeMismatch      = goerr.NewTag("size_mismatch")
	ErrTagCorruptArchive    = goerr.NewTag("corrupt_archive")
	ErrTagUnsupportedFormat = goerr.NewTag("unsupported_format")
	ErrTagPermission        = goerr.NewTag("permission")
)

// Process exit codes
const (
	ExitSuccess           = 0
	ExitGeneralError      = 1
	ExitInvalidArgs       = 2
	ExitInvalidURL        = 3
	ExitDownloadFailed    = 4
	ExitVerifyFailed      = 5
	ExitCorruptArchive    = 6
	ExitUnsupportedFormat = 7
	ExitPermission        = 8
)

var exitCodes = []struct {
	tag  goerr.Tag
	name string
	code int
}{
	{ErrTagInvalidArgument, "InvalidArgument", ExitInvalidArgs},
	{ErrTagInvalidURL, "InvalidURL", ExitInvalidURL},
	{ErrTagPermission, "Permission", ExitPermission},
	{ErrTagNetwork, "Network", ExitDownloadFailed},
	{ErrTagInvalidContent, "InvalidContent", ExitDownloadFailed},
	{ErrTagSizeMismatch, "SizeMismatch", ExitVerifyFailed},
	{ErrTagCorruptArchive, "CorruptArchive", ExitCorruptArchive},
	{ErrTagUnsupportedFormat, "UnsupportedFormat", ExitUnsupportedFormat},
}

// HasTag reports whether any error in err's chain carries tag.
func HasTag(err error, tag goerr.Tag) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if goerr.HasTag(e, tag) {
			return true
		}
	}
	return false
}

// Kind returns the name of the first pipeline error kind found in err, or
// "Error" when err is untagged.
func Kind(err error) string {
	for _, ec := range exitCodes {
		if HasTag(err, ec.tag) {
			return ec.name
		}
	}
	return "Error"
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	for _, ec := range exitCodes {
		if HasTag(err, ec.tag) {
			return ec.code
		}
	}
	return ExitGeneralError
}

// IsRetryable reports whether err is a transient download or verification
// failure that the pipeline may retry.
func IsRetryable(err error) bool {
	if HasTag(err, ErrTagPermission) {
		return false
	}
	return HasTag(err, ErrTagNetwork) ||
		HasTag(err, ErrTagInvalidContent) ||
		HasTag(err, ErrTagSizeMismatch)
}

// WrapFS wraps a filesystem error. Access failures are tagged as permission
// errors; other failures stay untagged.
func WrapFS(err error, msg, path string) error {
	if errors.Is(err, fs.ErrPermission) {
		return goerr.Wrap(err, msg, goerr.V("path", path), goerr.T(ErrTagPermission))
	}
	return goerr.Wrap(err, msg, goerr.V("path", path))
}
