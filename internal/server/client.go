package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pawcontrol/pawsync/internal/errors"
	"github.com/pawcontrol/pawsync/internal/metrics"
)

const defaultClientTimeout = 5 * time.Second

// Client talks to a running diagnostics server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client for the server at addr. A bare host:port is
// treated as http.
func NewClient(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

// Diagnostics fetches the operational snapshot.
func (c *Client) Diagnostics(ctx context.Context) (metrics.OperationalSnapshot, error) {
	var snap metrics.OperationalSnapshot
	err := c.do(ctx, http.MethodGet, "/diagnostics", &snap)
	return snap, err
}

// Changes fetches the entity keys changed by the last cycle.
func (c *Client) Changes(ctx context.Context) ([]string, error) {
	var resp ChangesResponse
	if err := c.do(ctx, http.MethodGet, "/changes", &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// Refresh queues a priority refresh for dogID.
func (c *Client) Refresh(ctx context.Context, dogID string, priority int) error {
	path := "/dogs/" + url.PathEscape(dogID) + "/refresh?priority=" + strconv.Itoa(priority)
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		var body ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", body.Error, errors.ErrDogNotFound)
		}
		return fmt.Errorf("%s %s: status %d: %s: %w", method, path, resp.StatusCode, body.Error, errors.ErrUnexpectedStatus)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
