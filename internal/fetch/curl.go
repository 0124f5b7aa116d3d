package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes a command, streaming stdout to w. Replaceable in tests.
type Runner func(ctx context.Context, w io.Writer, name string, args ...string) error

// Curl fetches files by running the curl binary.
type Curl struct {
	Bin      string
	timeouts Timeouts
	run      Runner
}

// NewCurl returns a curl-backed client.
func NewCurl(t Timeouts) *Curl {
	return &Curl{Bin: "curl", timeouts: t, run: runCommand}
}

// statusMarker separates the body from the status line written by -w.
const statusMarker = "\n__chatmode_kit_status__:"

func (c *Curl) timeoutArgs() []string {
	var args []string
	if c.timeouts.Connect > 0 {
		args = append(args, "--connect-timeout", seconds(c.timeouts.Connect.Seconds()))
	}
	if c.timeouts.Max > 0 {
		args = append(args, "--max-time", seconds(c.timeouts.Max.Seconds()))
	}
	return args
}

func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// Fetch implements Fetcher. curl writes the body followed by a status
// marker; the marker is stripped and turned into a StatusError when the
// response is not 2xx.
func (c *Curl) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	args := []string{"-sSL", "-o", "-", "-w", statusMarker + "%{http_code}"}
	args = append(args, c.timeoutArgs()...)
	args = append(args, url)

	var buf bytes.Buffer
	if err := c.run(ctx, &buf, c.Bin, args...); err != nil {
		return 0, err
	}

	out := buf.Bytes()
	idx := bytes.LastIndex(out, []byte(statusMarker))
	if idx < 0 {
		return 0, fmt.Errorf("curl %s: missing status in output", url)
	}
	code, err := strconv.Atoi(strings.TrimSpace(string(out[idx+len(statusMarker):])))
	if err != nil {
		return 0, fmt.Errorf("curl %s: parsing status: %w", url, err)
	}
	if code < 200 || code > 299 {
		return 0, &StatusError{URL: url, Code: code}
	}

	n, err := w.Write(out[:idx])
	return int64(n), err
}

// Probe runs a HEAD request with curl.
func (c *Curl) Probe(ctx context.Context, url string) error {
	args := []string{"-sSI", "-o", "-"}
	args = append(args, c.timeoutArgs()...)
	args = append(args, url)
	return c.run(ctx, io.Discard, c.Bin, args...)
}

func runCommand(ctx context.Context, w io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stderr.Len() > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
