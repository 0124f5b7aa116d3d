package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.md", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# hello\n")
	})
	mux.HandleFunc("/busy.md", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow.md", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClientFetch(t *testing.T) {
	srv := newServer(t)
	c := NewHTTPClient(Timeouts{Connect: time.Second, Max: 5 * time.Second})

	var buf bytes.Buffer
	n, err := c.Fetch(context.Background(), srv.URL+"/ok.md", &buf)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if n != int64(len("# hello\n")) || buf.String() != "# hello\n" {
		t.Errorf("Fetch() = %d %q", n, buf.String())
	}
}

func TestHTTPClientStatusErrors(t *testing.T) {
	srv := newServer(t)
	c := NewHTTPClient(Timeouts{Connect: time.Second, Max: 5 * time.Second})

	_, err := c.Fetch(context.Background(), srv.URL+"/missing.md", io.Discard)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("Code = %d, want 404", se.Code)
	}
	if !IsPermanent(err) {
		t.Error("404 should be permanent")
	}

	_, err = c.Fetch(context.Background(), srv.URL+"/busy.md", io.Discard)
	if !errors.As(err, &se) || !se.Retryable() {
		t.Errorf("503 should be retryable, got %v", err)
	}
	if IsPermanent(err) {
		t.Error("503 should not be permanent")
	}
}

func TestHTTPClientMaxTime(t *testing.T) {
	srv := newServer(t)
	c := NewHTTPClient(Timeouts{Connect: time.Second, Max: 50 * time.Millisecond})

	start := time.Now()
	_, err := c.Fetch(context.Background(), srv.URL+"/slow.md", io.Discard)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("Fetch took %v, want about 50ms", time.Since(start))
	}
	if IsPermanent(err) {
		t.Error("timeouts should not be permanent")
	}
}

func TestHTTPClientProbe(t *testing.T) {
	srv := newServer(t)
	c := NewHTTPClient(Timeouts{Connect: time.Second})

	// Any response counts as reachable, even a 404.
	if err := c.Probe(context.Background(), srv.URL+"/missing"); err != nil {
		t.Errorf("Probe() error: %v", err)
	}

	url := srv.URL
	srv.Close()
	if err := c.Probe(context.Background(), url); err == nil {
		t.Error("Probe() on closed server should fail")
	}
}

func TestStatusErrorRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusNotImplemented, false},
	}
	for _, tt := range tests {
		e := &StatusError{URL: "u", Code: tt.code}
		if got := e.Retryable(); got != tt.want {
			t.Errorf("Retryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, kind := range []string{"", KindHTTP, KindCurl} {
		if _, err := New(kind, Timeouts{}); err != nil {
			t.Errorf("New(%q) error: %v", kind, err)
		}
	}
	if _, err := New("wget", Timeouts{}); err == nil {
		t.Error("New(wget) should fail")
	}
}

type recordedCall struct {
	name string
	args []string
}

func fakeCurl(out string, runErr error, calls *[]recordedCall) *Curl {
	c := NewCurl(Timeouts{Connect: 10 * time.Second, Max: 1500 * time.Millisecond})
	c.run = func(_ context.Context, w io.Writer, name string, args ...string) error {
		*calls = append(*calls, recordedCall{name: name, args: args})
		if runErr != nil {
			return runErr
		}
		_, err := io.WriteString(w, out)
		return err
	}
	return c
}

func TestCurlFetch(t *testing.T) {
	var calls []recordedCall
	c := fakeCurl("body text"+statusMarker+"200", nil, &calls)

	var buf bytes.Buffer
	n, err := c.Fetch(context.Background(), "https://example.com/a.md", &buf)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if buf.String() != "body text" || n != 9 {
		t.Errorf("Fetch() = %d %q", n, buf.String())
	}

	args := calls[0].args
	if calls[0].name != "curl" {
		t.Errorf("ran %q, want curl", calls[0].name)
	}
	for _, want := range []string{"--connect-timeout", "10", "--max-time", "1.5", "https://example.com/a.md"} {
		if !slices.Contains(args, want) {
			t.Errorf("args %v missing %q", args, want)
		}
	}
}

func TestCurlFetchStatus(t *testing.T) {
	var calls []recordedCall
	c := fakeCurl("not found"+statusMarker+"404", nil, &calls)

	var buf bytes.Buffer
	_, err := c.Fetch(context.Background(), "https://example.com/a.md", &buf)
	if !IsPermanent(err) {
		t.Errorf("expected permanent status error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("body written on error: %q", buf.String())
	}
}

func TestCurlFetchRunError(t *testing.T) {
	var calls []recordedCall
	c := fakeCurl("", errors.New("curl: (6) could not resolve host"), &calls)

	_, err := c.Fetch(context.Background(), "https://example.com/a.md", io.Discard)
	if err == nil || !strings.Contains(err.Error(), "resolve host") {
		t.Errorf("Fetch() error = %v", err)
	}
}

func TestCurlFetchMissingMarker(t *testing.T) {
	var calls []recordedCall
	c := fakeCurl("garbage", nil, &calls)
	if _, err := c.Fetch(context.Background(), "u", io.Discard); err == nil {
		t.Error("expected error for missing status marker")
	}
}

func TestCurlProbe(t *testing.T) {
	var calls []recordedCall
	c := fakeCurl("", nil, &calls)
	if err := c.Probe(context.Background(), "https://github.com"); err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if !slices.Contains(calls[0].args, "-sSI") {
		t.Errorf("probe args %v missing -sSI", calls[0].args)
	}
}
