package classifier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/supporttools/logcheck/pkg/types"
)

// mockExecutor records calls and returns canned replies.
type mockExecutor struct {
	stdout   string
	stderr   string
	exitCode int
	err      error

	mu    sync.Mutex
	calls []mockCall
}

type mockCall struct {
	path  string
	stdin string
	env   map[string]string
}

func (m *mockExecutor) Execute(ctx context.Context, path, stdin string, env map[string]string) (string, string, int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mockCall{path: path, stdin: stdin, env: env})
	m.mu.Unlock()
	return m.stdout, m.stderr, m.exitCode, m.err
}

// writeProgram creates an executable file so plugin path validation passes.
func writeProgram(t *testing.T, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classify.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("failed to write program: %v", err)
	}
	return path
}

func TestInlineClassify(t *testing.T) {
	tests := []struct {
		name       string
		expr       string
		line       string
		wantResult int
		wantOutput string
		wantMetric string
	}{
		{name: "no match", expr: `status=5\d\d`, line: "status=200 ok", wantResult: 0},
		{name: "plain match", expr: `status=5\d\d`, line: "status=503 down", wantResult: 1},
		{
			name:       "output group",
			expr:       `user=(?P<output>\w+) denied`,
			line:       "user=bob denied",
			wantResult: 1,
			wantOutput: "bob",
		},
		{
			name:       "metric group",
			expr:       `latency=(?P<metric>\d+)ms`,
			line:       "latency=340ms",
			wantResult: 1,
			wantMetric: "340",
		},
		{
			name:       "optional group not taking part",
			expr:       `fail(?: code=(?P<output>\d+))?`,
			line:       "fail",
			wantResult: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewInline(tt.expr)
			if err != nil {
				t.Fatalf("NewInline() error = %v", err)
			}
			st := &State{}
			got, err := c.Classify(context.Background(), tt.line, st)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got != tt.wantResult {
				t.Errorf("result = %d, want %d", got, tt.wantResult)
			}
			if st.Output != tt.wantOutput || st.OutputSet != (tt.wantOutput != "") {
				t.Errorf("output = %q (set %v), want %q", st.Output, st.OutputSet, tt.wantOutput)
			}
			if st.Metric != tt.wantMetric || st.MetricSet != (tt.wantMetric != "") {
				t.Errorf("metric = %q (set %v), want %q", st.Metric, st.MetricSet, tt.wantMetric)
			}
		})
	}
}

func TestNewInlineRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{`(unclosed`, `(a+)+$`} {
		_, err := NewInline(expr)
		if kind, ok := types.KindOf(err); !ok || kind != types.ErrUsage {
			t.Errorf("NewInline(%q) error = %v, want usage fault", expr, err)
		}
	}
}

func TestRunIsolatesStateOnFailure(t *testing.T) {
	st := &State{Output: "kept", Metric: "lines=1"}

	failing := Func(func(line string, s *State) (int, error) {
		s.Output = "clobbered"
		return 5, errors.New("boom")
	})
	got, err := Run(context.Background(), failing, "x", st)
	if err == nil || got != 0 {
		t.Fatalf("Run() = %d, %v; want 0 and an error", got, err)
	}
	if st.Output != "kept" {
		t.Errorf("state modified by failing classifier: %q", st.Output)
	}

	panicking := Func(func(line string, s *State) (int, error) {
		s.Metric = "clobbered"
		panic("classifier bug")
	})
	got, err = Run(context.Background(), panicking, "x", st)
	if err == nil || got != 0 {
		t.Fatalf("Run() = %d, %v; want 0 and an error", got, err)
	}
	if !strings.Contains(err.Error(), "classifier bug") {
		t.Errorf("panic value not reported: %v", err)
	}
	if st.Metric != "lines=1" {
		t.Errorf("state modified by panicking classifier: %q", st.Metric)
	}
}

func TestRunMergesStateOnSuccess(t *testing.T) {
	st := &State{Output: "earlier", OutputSet: true}

	c := Func(func(line string, s *State) (int, error) {
		if s.OutputSet {
			t.Error("OutputSet must be reset before each call")
		}
		s.Metric = "custom=1"
		s.MetricSet = true
		return 1, nil
	})
	got, err := Run(context.Background(), c, "x", st)
	if err != nil || got != 1 {
		t.Fatalf("Run() = %d, %v", got, err)
	}
	if st.Metric != "custom=1" || !st.MetricSet {
		t.Errorf("metric not merged: %+v", st)
	}
	if st.Output != "earlier" || st.OutputSet {
		t.Errorf("unexpected output state: %+v", st)
	}
}

func TestPluginClassify(t *testing.T) {
	tests := []struct {
		name       string
		stdout     string
		stderr     string
		exitCode   int
		execErr    error
		wantResult int
		wantErr    bool
		wantOutput string
		wantMetric string
	}{
		{name: "exit 0 counts", exitCode: 0, wantResult: 1},
		{name: "exit 1 does not count", exitCode: 1, wantResult: 0},
		{name: "exit 0 with text", stdout: "disk full on sda\nmore\n", wantResult: 1, wantOutput: "disk full on sda"},
		{name: "other exit is a fault", exitCode: 2, stderr: "bad input", wantErr: true},
		{name: "exec failure is a fault", execErr: errors.New("timed out"), wantErr: true},
		{
			name:       "json reply",
			stdout:     `{"result": 3, "output": "parsed", "metric": "errors=3"}`,
			exitCode:   1,
			wantResult: 3,
			wantOutput: "parsed",
			wantMetric: "errors=3",
		},
		{
			name:       "json without result falls back to exit code",
			stdout:     `{"output": "x"}`,
			exitCode:   0,
			wantResult: 1,
			wantOutput: `{"output": "x"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{stdout: tt.stdout, stderr: tt.stderr, exitCode: tt.exitCode, err: tt.execErr}
			p, err := NewPlugin(writeProgram(t, 0755), exec)
			if err != nil {
				t.Fatalf("NewPlugin() error = %v", err)
			}

			st := &State{}
			got, err := p.Classify(context.Background(), "the line", st)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Classify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.wantResult {
				t.Errorf("result = %d, want %d", got, tt.wantResult)
			}
			if st.Output != tt.wantOutput {
				t.Errorf("output = %q, want %q", st.Output, tt.wantOutput)
			}
			if st.Metric != tt.wantMetric {
				t.Errorf("metric = %q, want %q", st.Metric, tt.wantMetric)
			}
		})
	}
}

func TestPluginPassesLineAndOutput(t *testing.T) {
	exec := &mockExecutor{}
	path := writeProgram(t, 0755)
	p, err := NewPlugin(path, exec)
	if err != nil {
		t.Fatalf("NewPlugin() error = %v", err)
	}

	st := &State{Output: "previous match"}
	if _, err := p.Classify(context.Background(), "ERROR disk", st); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if len(exec.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(exec.calls))
	}
	call := exec.calls[0]
	if call.path != path {
		t.Errorf("path = %q", call.path)
	}
	if call.stdin != "ERROR disk\n" {
		t.Errorf("stdin = %q", call.stdin)
	}
	if call.env[EnvLine] != "ERROR disk" || call.env[EnvOutput] != "previous match" {
		t.Errorf("env = %v", call.env)
	}
}

func TestNewPluginValidatesPath(t *testing.T) {
	exec := &mockExecutor{}
	tests := []struct {
		name string
		path string
	}{
		{name: "relative", path: "classify.sh"},
		{name: "traversal", path: "/tmp/../etc/classify"},
		{name: "missing", path: filepath.Join(t.TempDir(), "nope")},
		{name: "not executable", path: writeProgram(t, 0644)},
		{name: "directory", path: t.TempDir()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlugin(tt.path, exec)
			if kind, ok := types.KindOf(err); !ok || kind != types.ErrUsage {
				t.Errorf("NewPlugin(%q) error = %v, want usage fault", tt.path, err)
			}
		})
	}
}

func TestNewPrefersFile(t *testing.T) {
	c, err := New(Options{})
	if err != nil || c != nil {
		t.Fatalf("New(empty) = %v, %v; want nil, nil", c, err)
	}

	c, err = New(Options{Code: "x"})
	if err != nil {
		t.Fatalf("New(code) error = %v", err)
	}
	if _, ok := c.(*Inline); !ok {
		t.Errorf("expected *Inline, got %T", c)
	}

	c, err = New(Options{Code: "x", File: writeProgram(t, 0755)})
	if err != nil {
		t.Fatalf("New(file) error = %v", err)
	}
	if _, ok := c.(*Plugin); !ok {
		t.Errorf("expected *Plugin, got %T", c)
	}
}

func TestLimitedBuffer(t *testing.T) {
	b := limitedBuffer{limit: 4}
	n, err := b.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if b.String() != "abcd" {
		t.Errorf("buffer = %q, want abcd", b.String())
	}
	if n, _ := b.Write([]byte("gh")); n != 2 || b.String() != "abcd" {
		t.Errorf("writes past the limit must be dropped, got %q", b.String())
	}
}
