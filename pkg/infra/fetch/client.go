package fetch

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/fetchex/pkg/domain/interfaces"
	"github.com/m-mizutani/fetchex/pkg/domain/model"
	"github.com/m-mizutani/fetchex/pkg/domain/types"
)

const (
	// DefaultProbeTimeout bounds the reachability probe
	DefaultProbeTimeout = 5 * time.Second

	defaultUserAgent = "fetchex"
)

// config holds internal HTTP client configuration
type config struct {
	probeTimeout time.Duration
	userAgent    string
	transport    http.RoundTripper
}

// Option is a functional option for the HTTP client
type Option func(*config)

// WithProbeTimeout sets the timeout of the HEAD probe
func WithProbeTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header of every request
func WithUserAgent(ua string) Option {
	return func(c *config) {
		c.userAgent = ua
	}
}

// WithTransport replaces the underlying round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		c.transport = rt
	}
}

type client struct {
	httpClient *http.Client
	cfg        *config
}

// NewClient creates an HTTP client for probing and downloading archives.
// Downloads have no overall deadline; only the probe is time bounded.
func NewClient(opts ...Option) interfaces.HTTPClient {
	cfg := &config{
		probeTimeout: DefaultProbeTimeout,
		userAgent:    defaultUserAgent,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.transport == nil {
		cfg.transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			// Keep the body byte-for-byte so its length matches Content-Length
			DisableCompression: true,
		}
	}

	return &client{
		httpClient: &http.Client{Transport: cfg.transport},
		cfg:        cfg,
	}
}

// Probe performs a HEAD request and reports the final URL after redirects
func (c *client) Probe(ctx context.Context, rawURL string) (*model.ProbeResult, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create probe request",
			goerr.V("url", rawURL), goerr.T(types.ErrTagInvalidURL))
	}
	req.Header.Set("User-Agent", c.cfg.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "probe request failed",
			goerr.V("url", rawURL), goerr.T(types.ErrTagInvalidURL))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("probe returned non-success status",
			goerr.V("url", rawURL),
			goerr.V("status", resp.StatusCode),
			goerr.T(types.ErrTagInvalidURL))
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	size := resp.ContentLength
	if size < 0 {
		size = model.UnknownSize
	}

	return &model.ProbeResult{
		FinalURL:      finalURL,
		StatusCode:    resp.StatusCode,
		ContentLength: size,
		ContentType:   resp.Header.Get("Content-Type"),
	}, nil
}

// Get starts a streaming GET request
func (c *client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create download request",
			goerr.V("url", rawURL), goerr.T(types.ErrTagNetwork))
	}
	req.Header.Set("User-Agent", c.cfg.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "download request failed",
			goerr.V("url", rawURL), goerr.T(types.ErrTagNetwork))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, goerr.New("download returned non-success status",
			goerr.V("url", rawURL),
			goerr.V("status", resp.StatusCode),
			goerr.T(types.ErrTagNetwork))
	}

	return resp, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return goerr.Wrap(err, "failed to parse URL",
			goerr.V("url", rawURL), goerr.T(types.ErrTagInvalidURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return goerr.New("URL scheme must be http or https",
			goerr.V("url", rawURL), goerr.T(types.ErrTagInvalidURL))
	}
	if u.Host == "" {
		return goerr.New("URL has no host",
			goerr.V("url", rawURL), goerr.T(types.ErrTagInvalidURL))
	}
	return nil
}
