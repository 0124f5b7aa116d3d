package prereq

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/antopolskiy/chatmode-kit/internal/clierr"
)

func fakeLookPath(available map[string]string) LookPathFunc {
	return func(file string) (string, error) {
		if p, ok := available[file]; ok {
			return p, nil
		}
		return "", exec.ErrNotFound
	}
}

func fakeRun(outputs map[string]string) RunFunc {
	return func(_ context.Context, name string, _ ...string) ([]byte, error) {
		out, ok := outputs[name]
		if !ok {
			return nil, errors.New("no such command")
		}
		return []byte(out), nil
	}
}

func TestCheck(t *testing.T) {
	c := Checker{
		LookPath: fakeLookPath(map[string]string{
			"codium": "/usr/bin/codium",
			"git":    "/usr/bin/git",
		}),
		Run: fakeRun(map[string]string{
			"/usr/bin/codium": "1.95.0\nabcdef\nx64\n",
			"/usr/bin/git":    "git version 2.45.1\n",
		}),
	}

	got := c.Check(context.Background(), []Tool{
		Editor("code", []string{"code-insiders", "codium"}),
		Fetcher("http"),
		Git(),
	})

	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	editor := got[0]
	if !editor.Found || editor.Command != "codium" || editor.Path != "/usr/bin/codium" {
		t.Errorf("editor = %+v", editor)
	}
	if editor.Version != "1.95.0" {
		t.Errorf("editor version = %q, want first line", editor.Version)
	}
	if !got[1].Found || got[1].Path != "" {
		t.Errorf("builtin http = %+v", got[1])
	}
	if got[2].Version != "git version 2.45.1" {
		t.Errorf("git version = %q", got[2].Version)
	}
	if err := Err(got); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestCheckPrefersFirstCommand(t *testing.T) {
	c := Checker{
		LookPath: fakeLookPath(map[string]string{"code": "/a/code", "codium": "/b/codium"}),
		Run:      fakeRun(nil),
	}
	got := c.Check(context.Background(), []Tool{Editor("code", []string{"codium"})})
	if got[0].Command != "code" {
		t.Errorf("Command = %q, want code", got[0].Command)
	}
	if got[0].Version != "" {
		t.Errorf("Version = %q, want empty when probe fails", got[0].Version)
	}
}

func TestMissingRequiredTool(t *testing.T) {
	c := Checker{LookPath: fakeLookPath(nil), Run: fakeRun(nil)}

	results := c.Check(context.Background(), []Tool{
		Editor("code", []string{"code-insiders"}),
		Fetcher("curl"),
		Git(),
	})

	var missing []string
	for _, r := range results {
		if r.Missing() {
			missing = append(missing, r.Tool.Name)
		}
	}
	if diff := cmp.Diff([]string{"editor", "curl"}, missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}

	err := Err(results)
	var cliErr *clierr.Error
	if !errors.As(err, &cliErr) {
		t.Fatalf("Err() = %v, want *clierr.Error", err)
	}
	if cliErr.Code != clierr.ToolMissing || cliErr.ExitCode() != 1 {
		t.Errorf("code = %s exit = %d", cliErr.Code, cliErr.ExitCode())
	}
	if !strings.Contains(cliErr.Message, "editor (code, code-insiders)") {
		t.Errorf("message = %q", cliErr.Message)
	}
	if strings.Contains(cliErr.Message, "git") {
		t.Errorf("optional git should not be fatal: %q", cliErr.Message)
	}
}

func TestFetcherTool(t *testing.T) {
	if tool := Fetcher("http"); !tool.Builtin {
		t.Error("http fetcher should be builtin")
	}
	if tool := Fetcher("curl"); tool.Builtin || !tool.Required {
		t.Errorf("curl fetcher = %+v", tool)
	}
}

func TestLocateSkipsVersionProbe(t *testing.T) {
	c := Checker{
		LookPath: fakeLookPath(map[string]string{"code": "/usr/bin/code"}),
		Run: func(context.Context, string, ...string) ([]byte, error) {
			t.Error("Locate must not run the tool")
			return nil, nil
		},
	}
	r := c.Locate(Editor("code", nil))
	if !r.Found || r.Path != "/usr/bin/code" || r.Version != "" {
		t.Errorf("Locate() = %+v", r)
	}
}
