package cli

import (
	"io"

	"github.com/fatih/color"

	"github.com/m-mizutani/fetchex/pkg/cli/config"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	detailColor  = color.New(color.FgYellow)
)

// printResult writes the one-line outcome of a run followed by detail lines
func printResult(w io.Writer, cfg *config.Fetch, result *model.Result, err error) {
	if err == nil {
		files := 0
		if result != nil && result.Listing != nil {
			files = result.Listing.Files()
		}
		_, _ = successColor.Fprintf(w, "✔ Extracted %d files into %s\n", files, cfg.Destination)
		return
	}

	_, _ = failureColor.Fprintf(w, "✘ %s: %v\n", types.Kind(err), err)
	_, _ = detailColor.Fprintf(w, "  url: %s\n", cfg.URL)

	if result == nil {
		return
	}
	if result.State == model.StateFailed {
		_, _ = detailColor.Fprintf(w, "  failed while %s (attempts: %d)\n", result.FailedAt, result.Attempts)
	}
	if result.Retained && result.File != nil {
		_, _ = detailColor.Fprintf(w, "  file kept for inspection: %s\n", result.File.Path)
	}
}
