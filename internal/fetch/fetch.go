// Package fetch downloads remote files over HTTP, either with the built-in
// client or by shelling out to curl.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher streams the body of url into w and returns the number of bytes
// written. A non-2xx response is reported as *StatusError.
type Fetcher interface {
	Fetch(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Prober checks that a host is reachable.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// Client is a Fetcher that can also probe connectivity.
type Client interface {
	Fetcher
	Prober
}

// Client kinds accepted by New.
const (
	KindHTTP = "http"
	KindCurl = "curl"
)

// Timeouts bound a single attempt.
type Timeouts struct {
	// Connect bounds establishing the TCP/TLS connection.
	Connect time.Duration
	// Max bounds the whole attempt, including reading the body.
	Max time.Duration
}

// StatusError is returned for a completed request with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Retryable reports whether another attempt may succeed. Mirrors the set of
// statuses curl --retry treats as transient.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsPermanent reports whether err is a response that retrying will not fix.
func IsPermanent(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return !se.Retryable()
	}
	return false
}

// New returns a Client of the given kind.
func New(kind string, t Timeouts) (Client, error) {
	switch kind {
	case "", KindHTTP:
		return NewHTTPClient(t), nil
	case KindCurl:
		return NewCurl(t), nil
	}
	return nil, fmt.Errorf("unknown fetch client %q (want %s or %s)", kind, KindHTTP, KindCurl)
}
