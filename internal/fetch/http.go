package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// HTTPClient fetches files with net/http.
type HTTPClient struct {
	client   *http.Client
	timeouts Timeouts
}

// NewHTTPClient builds a client whose dialer honours t.Connect. t.Max is
// applied per request through the context.
func NewHTTPClient(t Timeouts) *HTTPClient {
	dialer := &net.Dialer{Timeout: t.Connect}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = t.Connect
	return &HTTPClient{
		client:   &http.Client{Transport: transport},
		timeouts: t,
	}
}

func (c *HTTPClient) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeouts.Max <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeouts.Max)
}

// Fetch implements Fetcher.
func (c *HTTPClient) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, &StatusError{URL: url, Code: resp.StatusCode}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("reading body of %s: %w", url, err)
	}
	return n, nil
}

// probeTimeout bounds a connectivity probe regardless of the fetch timeouts.
const probeTimeout = 10 * time.Second

// Probe sends a HEAD request. Any HTTP response, whatever its status,
// proves the host is reachable.
func (c *HTTPClient) Probe(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
