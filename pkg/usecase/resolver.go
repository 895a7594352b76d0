package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/fetchex/pkg/domain/interfaces"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

// Resolver probes a source URL before any bytes are downloaded
type Resolver struct {
	client interfaces.HTTPClient
}

var _ interfaces.Resolver = (*Resolver)(nil)

// NewResolver creates a Resolver backed by client
func NewResolver(client interfaces.HTTPClient) *Resolver {
	return &Resolver{client: client}
}

// CheckReachable reports whether a HEAD probe of url succeeds
func (r *Resolver) CheckReachable(ctx context.Context, url string) bool {
	if _, err := r.client.Probe(ctx, url); err != nil {
		ctxlog.From(ctx).Debug("Source is not reachable", "url", url, "error", err)
		return false
	}
	return true
}

// ResolveFinalURL returns the URL left after following redirects, or url
// itself when the probe fails.
func (r *Resolver) ResolveFinalURL(ctx context.Context, url string) string {
	probe, err := r.client.Probe(ctx, url)
	if err != nil {
		ctxlog.From(ctx).Debug("Failed to resolve final URL", "url", url, "error", err)
		return url
	}
	return probe.FinalURL
}

// ResolveExpectedSize returns the advertised Content-Length of url or
// model.UnknownSize.
func (r *Resolver) ResolveExpectedSize(ctx context.Context, url string) int64 {
	probe, err := r.client.Probe(ctx, url)
	if err != nil {
		ctxlog.From(ctx).Debug("Failed to resolve expected size", "url", url, "error", err)
		return model.UnknownSize
	}
	return probe.ContentLength
}

// Resolve runs a single probe and returns everything the download step needs
func (r *Resolver) Resolve(ctx context.Context, url string) (*model.ResolvedSource, error) {
	logger := ctxlog.From(ctx)

	probe, err := r.client.Probe(ctx, url)
	if err != nil {
		return nil, goerr.Wrap(err, "source URL is not reachable",
			goerr.V("url", url),
			goerr.T(types.ErrTagInvalidURL))
	}

	src := &model.ResolvedSource{
		FinalURL:     probe.FinalURL,
		ExpectedSize: probe.ContentLength,
		ContentType:  probe.ContentType,
	}
	if src.FinalURL == "" {
		src.FinalURL = url
	}

	logger.Info("Resolved source",
		"url", url,
		"final_url", src.FinalURL,
		"expected_size", src.ExpectedSize,
	)
	if !src.HasExpectedSize() {
		logger.Warn("Server did not advertise a content length; size verification will be skipped", "url", url)
	}

	return src, nil
}
