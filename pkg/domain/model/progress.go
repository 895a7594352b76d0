package model

// Progress carries the progress channels of a pipeline run. Any of
// the callbacks may be nil. Callbacks run synchronously on the I/O path and
// must return quickly.
type Progress struct {
	// OnDownload receives cumulative bytes written and the expected total,
	// which is UnknownSize if the server did not send a content length.
	OnDownload func(downloaded, total int64)

	// OnVerify receives the verification percentage.
	OnVerify func(percent int)

	// OnExtract receives the number of members extracted so far and the
	// member total.
	OnExtract func(done, total int)

	// OnRetry is called before a download attempt other than the first.
	OnRetry func(attempt int)
}

// Download reports download progress
func (p *Progress) Download(downloaded, total int64) {
	if p != nil && p.OnDownload != nil {
		p.OnDownload(downloaded, total)
	}
}

// Verify reports verification progress
func (p *Progress) Verify(percent int) {
	if p != nil && p.OnVerify != nil {
		p.OnVerify(percent)
	}
}

// Extract reports extraction progress
func (p *Progress) Extract(done, total int) {
	if p != nil && p.OnExtract != nil {
		p.OnExtract(done, total)
	}
}

// Retry reports the start of another download attempt
func (p *Progress) Retry(attempt int) {
	if p != nil && p.OnRetry != nil {
		p.OnRetry(attempt)
	}
}

// Percent returns floor(done / total * 100). It returns 0 when total is not
// positive.
func Percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int(done * 100 / total)
}
