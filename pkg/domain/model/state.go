package model

// State is a step of the fetch pipeline
type State int

const (
	StateResolving State = iota
	StateDownloading
	StateVerifying
	StateRetrying
	StateExtracting
	StateCleanup
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateDownloading:
		return "downloading"
	case StateVerifying:
		return "verifying"
	case StateRetrying:
		return "retrying"
	case StateExtracting:
		return "extracting"
	case StateCleanup:
		return "cleanup"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result summarizes a pipeline run. It is returned on failure as well, with
// State set to StateFailed and FailedAt naming the step that failed.
type Result struct {
	State    State
	FailedAt State
	Attempts int             // Download attempts made, at most the retry policy's MaxAttempts
	Source   *ResolvedSource // nil if resolution failed
	File     *DownloadedFile // Last downloaded file; removed from disk unless retained
	Listing  *ArchiveListing // Extracted members on success
	Retained bool            // The downloaded file was kept on disk after a failure
}
