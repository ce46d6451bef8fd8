// Package fetch retrieves per-module dog payloads from the upstream HTTP API.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/jsonvalue"
)

const (
	// defaultTimeout is the per-request timeout.
	defaultTimeout = 5 * time.Second

	// defaultMaxBodyBytes caps how much of a response body is decoded.
	defaultMaxBodyBytes = 4 << 20

	// errorBodyLimit caps how much of an error body is quoted in errors.
	errorBodyLimit = 256
)

// Fetcher fetches one module payload for one dog.
type Fetcher interface {
	Fetch(ctx context.Context, dogID, module string) (jsonvalue.Value, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, dogID, module string) (jsonvalue.Value, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, dogID, module string) (jsonvalue.Value, error) {
	return f(ctx, dogID, module)
}

// HTTPClient fetches payloads with GET {base}/dogs/{id}/{module}.
type HTTPClient struct {
	base       *url.URL
	httpClient *http.Client
	maxBody    int64
	userAgent  string
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxBodyBytes caps the decoded response size.
func WithMaxBodyBytes(n int64) ClientOption {
	return func(c *HTTPClient) {
		c.maxBody = n
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPClient) {
		c.userAgent = ua
	}
}

// NewHTTPClient creates a client for baseURL, which must be an absolute
// http or https URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewValidationError("invalid base url").WithField("fetch.base_url").WithValue(baseURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.NewValidationError("base url must be absolute http(s)").WithField("fetch.base_url").WithValue(baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &HTTPClient{
		base:       u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxBody:    defaultMaxBodyBytes,
		userAgent:  "pawsync",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the request URL for one dog module.
func (c *HTTPClient) URL(dogID, module string) string {
	u := *c.base
	u.Path = c.base.Path + "/dogs/" + dogID + "/" + module
	u.RawPath = c.base.EscapedPath() + "/dogs/" + url.PathEscape(dogID) + "/" + url.PathEscape(module)
	return u.String()
}

// Fetch implements Fetcher. Transport failures, 429 and 5xx responses are
// retryable; other non-2xx responses are not.
func (c *HTTPClient) Fetch(ctx context.Context, dogID, module string) (jsonvalue.Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(dogID, module), nil)
	if err != nil {
		return jsonvalue.Value{}, errors.NewFetchError("create request", err).WithDog(dogID).WithModule(module)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return jsonvalue.Value{}, ctx.Err()
		}
		return jsonvalue.Value{}, errors.NewFetchError("send request", err).
			WithDog(dogID).WithModule(module).WithRetryable(true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		cause := fmt.Errorf("%w: %s", errors.ErrUnexpectedStatus, strings.TrimSpace(string(body)))
		return jsonvalue.Value{}, errors.NewFetchError("upstream rejected request", cause).
			WithDog(dogID).WithModule(module).WithStatus(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusNoContent {
		return jsonvalue.Null(), nil
	}
	v, err := jsonvalue.Decode(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return jsonvalue.Value{}, errors.NewFetchError("decode response", err).WithDog(dogID).WithModule(module)
	}
	return v, nil
}
