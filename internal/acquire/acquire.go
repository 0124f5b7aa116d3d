// Package acquire downloads manifest entries into the local base directory
// with bounded retries and non-empty validation.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/antopolskiy/chatmode-kit/internal/fetch"
	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
)

const (
	dirMode    = 0o750
	scriptMode = 0o755

	// partSuffix marks a download in progress. It is renamed over the
	// destination only after validation.
	partSuffix = ".part"
)

// ErrEmpty is recorded when a download completes with a zero-byte body.
var ErrEmpty = errors.New("downloaded file is empty")

// Reporter receives per-file progress lines.
type Reporter interface {
	OK(format string, args ...any)
	Warn(format string, args ...any)
	Fail(format string, args ...any)
}

// Result is the outcome of acquiring one entry.
type Result struct {
	Entry     manifest.Entry `json:"entry"`
	Succeeded bool           `json:"succeeded"`
	SizeBytes int64          `json:"size_bytes"`
	Attempts  int            `json:"attempts"`
	Err       error          `json:"-"`
	Error     string         `json:"error,omitempty"`
}

// ProbeResult records the diagnostic connectivity check.
type ProbeResult struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Summary aggregates a batch.
type Summary struct {
	Results   []Result     `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Probe     *ProbeResult `json:"probe,omitempty"`
}

// NetworkDown reports whether the batch fell below the threshold and the
// probe could not reach the probe host either.
func (s Summary) NetworkDown() bool {
	return s.Probe != nil && !s.Probe.Reachable
}

// Acquirer fetches manifest entries one by one, or with a bounded pool when
// Concurrency > 1.
type Acquirer struct {
	Fetcher fetch.Fetcher
	Prober  fetch.Prober
	Policy  Policy

	// Concurrency is the number of simultaneous downloads; values below 2
	// mean strictly sequential in manifest order.
	Concurrency int
	// SuccessThreshold triggers the connectivity probe when fewer files
	// than this were acquired.
	SuccessThreshold int
	ProbeURL         string

	OS       platform.OS
	Logger   *zap.Logger
	Reporter Reporter
}

func (a *Acquirer) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

// Run acquires every entry. Individual failures never stop the batch.
// Results are returned in the order of entries.
func (a *Acquirer) Run(ctx context.Context, baseURL, baseDir string, entries []manifest.Entry) Summary {
	results := make([]Result, len(entries))

	if a.Concurrency < 2 {
		for i, e := range entries {
			results[i] = a.acquireOne(ctx, baseURL, baseDir, e)
			a.report(results[i])
		}
	} else {
		var g errgroup.Group
		g.SetLimit(a.Concurrency)
		for i, e := range entries {
			g.Go(func() error {
				results[i] = a.acquireOne(ctx, baseURL, baseDir, e)
				a.report(results[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	s := Summary{Results: results}
	for _, r := range results {
		if r.Succeeded {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}

	if s.Succeeded < a.SuccessThreshold && a.Prober != nil && a.ProbeURL != "" {
		s.Probe = a.probe(ctx)
	}
	return s
}

func (a *Acquirer) probe(ctx context.Context) *ProbeResult {
	p := &ProbeResult{URL: a.ProbeURL, Reachable: true}
	if err := a.Prober.Probe(ctx, a.ProbeURL); err != nil {
		p.Reachable = false
		p.Error = err.Error()
	}
	a.logger().Debug("connectivity probe",
		zap.String("url", p.URL), zap.Bool("reachable", p.Reachable), zap.String("error", p.Error))
	return p
}

func (a *Acquirer) report(r Result) {
	if a.Reporter == nil {
		return
	}
	name := filepath.Join(r.Entry.LocalSubdir, r.Entry.RemoteName)
	if r.Succeeded {
		a.Reporter.OK("%s (%d bytes)", name, r.SizeBytes)
		return
	}
	a.Reporter.Fail("%s: %v", name, r.Err)
}

func (a *Acquirer) acquireOne(ctx context.Context, baseURL, baseDir string, e manifest.Entry) Result {
	res := Result{Entry: e}
	fail := func(err error) Result {
		res.Err = err
		res.Error = err.Error()
		return res
	}

	dest := e.LocalPath(baseDir)
	if err := os.MkdirAll(filepath.Dir(dest), dirMode); err != nil {
		return fail(fmt.Errorf("creating directory: %w", err))
	}

	url := e.URL(baseURL)
	part := dest + partSuffix
	log := a.logger().With(zap.String("url", url), zap.String("dest", dest))

	attempts, err := a.Policy.Do(ctx, func(attempt int) error {
		log.Debug("fetching", zap.Int("attempt", attempt))
		err := fetchTo(ctx, a.Fetcher, url, part)
		if err != nil {
			log.Debug("attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	res.Attempts = attempts
	if err != nil {
		_ = os.Remove(part)
		return fail(err)
	}

	info, err := os.Stat(part)
	if err != nil {
		_ = os.Remove(part)
		return fail(fmt.Errorf("verifying download: %w", err))
	}
	if info.Size() == 0 {
		_ = os.Remove(part)
		return fail(ErrEmpty)
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return fail(fmt.Errorf("moving download into place: %w", err))
	}

	if e.Category == manifest.Script && a.OS != platform.Windows {
		if err := os.Chmod(dest, scriptMode); err != nil {
			log.Warn("marking script executable", zap.Error(err))
		}
	}

	res.Succeeded = true
	res.SizeBytes = info.Size()
	log.Debug("acquired", zap.Int64("bytes", res.SizeBytes), zap.Int("attempts", attempts))
	return res
}

// fetchTo downloads url into path, truncating any previous attempt.
func fetchTo(ctx context.Context, f fetch.Fetcher, url, path string) error {
	out, err := os.Create(path) //nolint:gosec // path is built from the manifest under the base dir
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	_, fetchErr := f.Fetch(ctx, url, out)
	closeErr := out.Close()
	if fetchErr != nil {
		return fetchErr
	}
	return closeErr
}
