package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/antopolskiy/chatmode-kit/internal/fetch"
	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const baseURL = "https://example.test/raw"

var errNetwork = errors.New("dial tcp: connection refused")

// fakeFetcher serves bodies by URL. failures[url] makes the first N
// requests for that URL fail with errNetwork.
type fakeFetcher struct {
	mu       sync.Mutex
	bodies   map[string]string
	failures map[string]int
	errs     map[string]error
	calls    map[string]int
	delay    time.Duration
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies:   make(map[string]string),
		failures: make(map[string]int),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	f.mu.Lock()
	f.calls[url]++
	call := f.calls[url]
	body, ok := f.bodies[url]
	failN := f.failures[url]
	fixedErr := f.errs[url]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if fixedErr != nil {
		return 0, fixedErr
	}
	if call <= failN {
		return 0, errNetwork
	}
	if !ok {
		return 0, &fetch.StatusError{URL: url, Code: 404}
	}
	n, err := io.WriteString(w, body)
	return int64(n), err
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type countingProber struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingProber) Probe(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

type recordingReporter struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingReporter) add(prefix, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, prefix+" "+fmt.Sprintf(format, args...))
}

func (r *recordingReporter) OK(format string, args ...any)   { r.add("ok", format, args...) }
func (r *recordingReporter) Warn(format string, args ...any) { r.add("warn", format, args...) }
func (r *recordingReporter) Fail(format string, args ...any) { r.add("fail", format, args...) }

func testEntries() []manifest.Entry {
	return []manifest.Entry{
		{Category: manifest.Chatmode, RemoteName: "a.chatmode.md", RemoteDir: "chatmodes", LocalSubdir: "chatmodes"},
		{Category: manifest.Chatmode, RemoteName: "b.chatmode.md", RemoteDir: "chatmodes", LocalSubdir: "chatmodes"},
		{Category: manifest.Instruction, RemoteName: "go.instructions.md", RemoteDir: "instructions", LocalSubdir: "instructions"},
		{Category: manifest.Script, RemoteName: "update.sh", RemoteDir: "scripts", LocalSubdir: "scripts"},
		{Category: manifest.Doc, RemoteName: "README.md"},
	}
}

func serveAll(f *fakeFetcher, entries []manifest.Entry) {
	for _, e := range entries {
		f.bodies[e.URL(baseURL)] = "content of " + e.RemoteName + "\n"
	}
}

func newAcquirer(t *testing.T, f fetch.Fetcher, p fetch.Prober) *Acquirer {
	t.Helper()
	return &Acquirer{
		Fetcher:          f,
		Prober:           p,
		Policy:           Policy{Attempts: 3},
		SuccessThreshold: 3,
		ProbeURL:         "https://probe.test",
		OS:               platform.Linux,
		Logger:           zaptest.NewLogger(t),
	}
}

func TestRunAllSucceed(t *testing.T) {
	entries := testEntries()
	f := newFakeFetcher()
	serveAll(f, entries)
	prober := &countingProber{}
	rep := &recordingReporter{}
	a := newAcquirer(t, f, prober)
	a.Reporter = rep

	base := t.TempDir()
	s := a.Run(context.Background(), baseURL, base, entries)

	if s.Succeeded != len(entries) || s.Failed != 0 {
		t.Errorf("Succeeded/Failed = %d/%d, want %d/0", s.Succeeded, s.Failed, len(entries))
	}
	if s.Probe != nil || prober.calls != 0 {
		t.Errorf("probe ran on success (calls=%d)", prober.calls)
	}
	for i, e := range entries {
		info, err := os.Stat(e.LocalPath(base))
		if err != nil {
			t.Fatalf("missing %s: %v", e.RemoteName, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", e.RemoteName)
		}
		if s.Results[i].Entry.RemoteName != e.RemoteName {
			t.Errorf("result %d is %s, want %s", i, s.Results[i].Entry.RemoteName, e.RemoteName)
		}
		if s.Results[i].SizeBytes != info.Size() {
			t.Errorf("%s SizeBytes = %d, want %d", e.RemoteName, s.Results[i].SizeBytes, info.Size())
		}
		if _, err := os.Stat(e.LocalPath(base) + partSuffix); !os.IsNotExist(err) {
			t.Errorf("%s left a .part file", e.RemoteName)
		}
	}
	if len(rep.lines) != len(entries) {
		t.Errorf("reported %d lines, want %d", len(rep.lines), len(entries))
	}
}

func TestRunEmptyBodyIsFailure(t *testing.T) {
	entries := testEntries()[:1]
	f := newFakeFetcher()
	f.bodies[entries[0].URL(baseURL)] = ""
	a := newAcquirer(t, f, &countingProber{})
	a.SuccessThreshold = 0

	base := t.TempDir()
	s := a.Run(context.Background(), baseURL, base, entries)

	if s.Succeeded != 0 || s.Failed != 1 {
		t.Fatalf("Succeeded/Failed = %d/%d, want 0/1", s.Succeeded, s.Failed)
	}
	if !errors.Is(s.Results[0].Err, ErrEmpty) {
		t.Errorf("Err = %v, want ErrEmpty", s.Results[0].Err)
	}
	dest := entries[0].LocalPath(base)
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("empty download left %s behind", dest)
	}
	if _, err := os.Stat(dest + partSuffix); !os.IsNotExist(err) {
		t.Error("empty download left a .part file behind")
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	entries := testEntries()[:1]
	url := entries[0].URL(baseURL)
	f := newFakeFetcher()
	serveAll(f, entries)
	f.failures[url] = 2
	a := newAcquirer(t, f, &countingProber{})
	a.SuccessThreshold = 0

	s := a.Run(context.Background(), baseURL, t.TempDir(), entries)

	if !s.Results[0].Succeeded {
		t.Fatalf("expected success after retries, got %v", s.Results[0].Err)
	}
	if s.Results[0].Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", s.Results[0].Attempts)
	}
}

func TestRunGivesUpAfterAttempts(t *testing.T) {
	entries := testEntries()[:1]
	url := entries[0].URL(baseURL)
	f := newFakeFetcher()
	serveAll(f, entries)
	f.failures[url] = 5
	a := newAcquirer(t, f, &countingProber{})
	a.SuccessThreshold = 0

	s := a.Run(context.Background(), baseURL, t.TempDir(), entries)

	if s.Results[0].Succeeded {
		t.Fatal("expected failure")
	}
	if got := f.callCount(url); got != 3 {
		t.Errorf("fetch calls = %d, want 3", got)
	}
}

func TestRunDoesNotRetryNotFound(t *testing.T) {
	entries := testEntries()[:1]
	f := newFakeFetcher()
	a := newAcquirer(t, f, &countingProber{})
	a.SuccessThreshold = 0

	s := a.Run(context.Background(), baseURL, t.TempDir(), entries)

	if s.Results[0].Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", s.Results[0].Attempts)
	}
	if !fetch.IsPermanent(s.Results[0].Err) {
		t.Errorf("Err = %v, want permanent status error", s.Results[0].Err)
	}
}

func TestRunNetworkDownProbesOnce(t *testing.T) {
	entries := testEntries()
	f := newFakeFetcher()
	for _, e := range entries {
		f.errs[e.URL(baseURL)] = errNetwork
	}
	prober := &countingProber{err: errNetwork}
	a := newAcquirer(t, f, prober)

	s := a.Run(context.Background(), baseURL, t.TempDir(), entries)

	if s.Succeeded != 0 || s.Failed != len(entries) {
		t.Errorf("Succeeded/Failed = %d/%d, want 0/%d", s.Succeeded, s.Failed, len(entries))
	}
	for _, e := range entries {
		if got := f.callCount(e.URL(baseURL)); got != 3 {
			t.Errorf("%s fetched %d times, want 3", e.RemoteName, got)
		}
	}
	if prober.calls != 1 {
		t.Errorf("probe calls = %d, want 1", prober.calls)
	}
	if s.Probe == nil || s.Probe.Reachable {
		t.Errorf("Probe = %+v, want unreachable", s.Probe)
	}
	if !s.NetworkDown() {
		t.Error("NetworkDown() = false, want true")
	}
}

func TestRunBelowThresholdWithReachableProbe(t *testing.T) {
	entries := testEntries()
	f := newFakeFetcher() // every file 404s
	prober := &countingProber{}
	a := newAcquirer(t, f, prober)

	s := a.Run(context.Background(), baseURL, t.TempDir(), entries)

	if prober.calls != 1 {
		t.Errorf("probe calls = %d, want 1", prober.calls)
	}
	if s.NetworkDown() {
		t.Error("NetworkDown() = true with a reachable probe host")
	}
}

func TestRunFailedRefetchKeepsExistingFile(t *testing.T) {
	entries := testEntries()[:1]
	base := t.TempDir()
	dest := entries[0].LocalPath(base)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("previous\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	f := newFakeFetcher()
	f.bodies[entries[0].URL(baseURL)] = ""
	a := newAcquirer(t, f, &countingProber{})
	a.SuccessThreshold = 0
	a.Run(context.Background(), baseURL, base, entries)

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous\n" {
		t.Errorf("existing file changed to %q", data)
	}
}

func TestRunRefetchOverwrites(t *testing.T) {
	entries := testEntries()
	f := newFakeFetcher()
	serveAll(f, entries)
	a := newAcquirer(t, f, &countingProber{})
	base := t.TempDir()

	first := a.Run(context.Background(), baseURL, base, entries)
	second := a.Run(context.Background(), baseURL, base, entries)

	if second.Succeeded != first.Succeeded {
		t.Errorf("second run succeeded %d, first %d", second.Succeeded, first.Succeeded)
	}
	for _, e := range entries {
		data, err := os.ReadFile(e.LocalPath(base))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "content of "+e.RemoteName+"\n" {
			t.Errorf("%s = %q after re-run", e.RemoteName, data)
		}
	}
}

func TestRunMarksScriptsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	entries := testEntries()
	f := newFakeFetcher()
	serveAll(f, entries)
	a := newAcquirer(t, f, &countingProber{})
	base := t.TempDir()
	a.Run(context.Background(), baseURL, base, entries)

	for _, e := range entries {
		info, err := os.Stat(e.LocalPath(base))
		if err != nil {
			t.Fatal(err)
		}
		exec := info.Mode().Perm()&0o100 != 0
		if e.Category == manifest.Script && !exec {
			t.Errorf("%s mode %v, want executable", e.RemoteName, info.Mode())
		}
		if e.Category != manifest.Script && exec {
			t.Errorf("%s mode %v, want not executable", e.RemoteName, info.Mode())
		}
	}
}

func TestRunWindowsLeavesScriptModeAlone(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	entries := testEntries()[3:4]
	f := newFakeFetcher()
	serveAll(f, entries)
	a := newAcquirer(t, f, &countingProber{})
	a.OS = platform.Windows
	a.SuccessThreshold = 0
	base := t.TempDir()
	a.Run(context.Background(), baseURL, base, entries)

	info, err := os.Stat(entries[0].LocalPath(base))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 != 0 {
		t.Errorf("mode %v, want not executable", info.Mode())
	}
}

func TestRunConcurrentPreservesOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var entries []manifest.Entry
	for i := range 20 {
		entries = append(entries, manifest.Entry{
			Category:    manifest.Instruction,
			RemoteName:  fmt.Sprintf("f%02d.instructions.md", i),
			RemoteDir:   "instructions",
			LocalSubdir: "instructions",
		})
	}
	f := newFakeFetcher()
	serveAll(f, entries)
	f.delay = time.Millisecond
	a := newAcquirer(t, f, &countingProber{})
	a.Concurrency = 4
	a.Reporter = &recordingReporter{}

	s := a.Run(context.Background(), baseURL, t.TempDir(), entries)

	if s.Succeeded != len(entries) {
		t.Fatalf("Succeeded = %d, want %d", s.Succeeded, len(entries))
	}
	for i, r := range s.Results {
		if r.Entry.RemoteName != entries[i].RemoteName {
			t.Errorf("result %d = %s, want %s", i, r.Entry.RemoteName, entries[i].RemoteName)
		}
	}
}

func TestRunCanceledContextCompletesLoop(t *testing.T) {
	entries := testEntries()
	f := newFakeFetcher()
	serveAll(f, entries)
	f.delay = time.Second
	a := newAcquirer(t, f, &countingProber{err: context.Canceled})
	a.Policy.Delay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := a.Run(ctx, baseURL, t.TempDir(), entries)

	if len(s.Results) != len(entries) {
		t.Fatalf("got %d results, want %d", len(s.Results), len(entries))
	}
	if s.Succeeded != 0 {
		t.Errorf("Succeeded = %d, want 0", s.Succeeded)
	}
}

func TestReportFormatsFailures(t *testing.T) {
	rep := &recordingReporter{}
	a := &Acquirer{Reporter: rep}
	a.report(Result{
		Entry: manifest.Entry{RemoteName: "x.md", LocalSubdir: "chatmodes"},
		Err:   ErrEmpty,
	})
	if len(rep.lines) != 1 || !strings.HasPrefix(rep.lines[0], "fail ") || !strings.Contains(rep.lines[0], "empty") {
		t.Errorf("lines = %v", rep.lines)
	}
}
