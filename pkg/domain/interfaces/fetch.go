package interfaces

import (
	"context"
	"net/http"

	"github.com/m-mizutani/fetchex/pkg/domain/model"
)

// HTTPClient defines the transport operations used by the pipeline
type HTTPClient interface {
	// Probe issues a HEAD request following redirects, bounded by the probe timeout
	Probe(ctx context.Context, url string) (*model.ProbeResult, error)

	// Get starts a streaming GET. The caller closes the response body.
	Get(ctx context.Context, url string) (*http.Response, error)
}
