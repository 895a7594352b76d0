package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/m-mizutani/fetchex/pkg/domain/model"
)

const barWidth = 30

// barProgress draws one progress bar per pipeline channel
type barProgress struct {
	w        io.Writer
	download *progressbar.ProgressBar
	verify   *progressbar.ProgressBar
	extract  *progressbar.ProgressBar
}

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{w: w}
}

func (b *barProgress) Progress() *model.Progress {
	return &model.Progress{
		OnDownload: b.onDownload,
		OnVerify:   b.onVerify,
		OnExtract:  b.onExtract,
		OnRetry:    b.onRetry,
	}
}

func (b *barProgress) newBar(max int64, description string, opts ...progressbar.Option) *progressbar.ProgressBar {
	opts = append([]progressbar.Option{
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(barWidth),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(b.w) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer: "█", SaucerHead: "█", SaucerPadding: "░",
			BarStart: "[", BarEnd: "]",
		}),
	}, opts...)
	return progressbar.NewOptions64(max, opts...)
}

func (b *barProgress) onDownload(downloaded, total int64) {
	if b.download == nil {
		b.download = b.newBar(total, "Downloading", progressbar.OptionShowBytes(true))
	}
	_ = b.download.Set64(downloaded)
	if total > 0 && downloaded >= total {
		_ = b.download.Finish()
	}
}

func (b *barProgress) onVerify(percent int) {
	if b.download != nil && !b.download.IsFinished() {
		_ = b.download.Finish()
	}
	if b.verify == nil {
		b.verify = b.newBar(100, "Verifying")
	}
	_ = b.verify.Set(percent)
	if percent >= 100 {
		_ = b.verify.Finish()
	}
}

func (b *barProgress) onExtract(done, total int) {
	if b.extract == nil {
		b.extract = b.newBar(int64(total), "Extracting", progressbar.OptionShowCount())
	}
	_ = b.extract.Set(done)
	if done >= total {
		_ = b.extract.Finish()
	}
}

// onRetry discards the bars of the failed attempt
func (b *barProgress) onRetry(attempt int) {
	for _, bar := range []*progressbar.ProgressBar{b.download, b.verify} {
		if bar != nil && !bar.IsFinished() {
			_ = bar.Exit()
		}
	}
	b.download = nil
	b.verify = nil
	_, _ = fmt.Fprintf(b.w, "Retrying download (attempt %d)\n", attempt)
}

// Close stops bars left unfinished by a failed run
func (b *barProgress) Close() {
	for _, bar := range []*progressbar.ProgressBar{b.download, b.verify, b.extract} {
		if bar != nil && !bar.IsFinished() {
			_ = bar.Exit()
		}
	}
}

// logProgress reports progress as log lines, at most one per interval and
// channel, plus the final line of each channel.
type logProgress struct {
	logger   *slog.Logger
	download *rate.Sometimes
	extract  *rate.Sometimes
}

func newLogProgress(logger *slog.Logger) *logProgress {
	return &logProgress{
		logger:   logger,
		download: &rate.Sometimes{Interval: time.Second},
		extract:  &rate.Sometimes{Interval: time.Second},
	}
}

func (l *logProgress) Progress() *model.Progress {
	return &model.Progress{
		OnDownload: l.onDownload,
		OnVerify:   l.onVerify,
		OnExtract:  l.onExtract,
		OnRetry:    l.onRetry,
	}
}

func (l *logProgress) onDownload(downloaded, total int64) {
	emit := func() {
		attrs := []any{slog.Int64("downloaded", downloaded)}
		if total >= 0 {
			attrs = append(attrs, slog.Int64("total", total), slog.Int("percent", model.Percent(downloaded, total)))
		}
		l.logger.Info("Download progress", attrs...)
	}
	if total > 0 && downloaded >= total {
		emit()
		return
	}
	l.download.Do(emit)
}

func (l *logProgress) onVerify(percent int) {
	l.logger.Info("Verify progress", slog.Int("percent", percent))
}

func (l *logProgress) onExtract(done, total int) {
	emit := func() {
		l.logger.Info("Extract progress",
			slog.Int("done", done),
			slog.Int("total", total),
			slog.Int("percent", model.Percent(int64(done), int64(total))),
		)
	}
	if done >= total {
		emit()
		return
	}
	l.extract.Do(emit)
}

func (l *logProgress) onRetry(attempt int) {
	l.download = &rate.Sometimes{Interval: time.Second}
	l.logger.Info("Restarting download progress", slog.Int("attempt", attempt))
}
