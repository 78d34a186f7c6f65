package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/supporttools/logcheck/pkg/classifier"
	"github.com/supporttools/logcheck/pkg/types"
)

// newConfig writes content to a log file in a temp dir and returns a config
// scanning it with seek files kept in the same dir.
func newConfig(t *testing.T, content string) *types.CheckConfig {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	cfg := &types.CheckConfig{
		LogTarget:    logPath,
		ScratchDir:   dir,
		MatchPattern: "ERROR",
	}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	return cfg
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
}

func scan(t *testing.T, cfg *types.CheckConfig, opts ...Option) *Report {
	t.Helper()
	e := New(cfg, opts...)
	report, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if e.State() != StateDone {
		t.Errorf("engine state = %v, want done", e.State())
	}
	return report
}

func TestScanCountsMatches(t *testing.T) {
	cfg := newConfig(t, "info start\nERROR one\ninfo middle\nERROR two\n")

	r := scan(t, cfg)
	if r.Result.TotalLines != 4 || r.Result.MatchCount != 2 {
		t.Errorf("lines=%d matches=%d, want 4 and 2", r.Result.TotalLines, r.Result.MatchCount)
	}
	if r.Result.Output != "ERROR two" {
		t.Errorf("output = %q, want last match", r.Result.Output)
	}
	if r.Result.Offset != int64(len("info start\nERROR one\ninfo middle\nERROR two\n")) {
		t.Errorf("offset = %d", r.Result.Offset)
	}
	if r.SeekFile != filepath.Join(cfg.ScratchDir, "app.log.seek") {
		t.Errorf("seek file = %q", r.SeekFile)
	}
}

func TestScanIsIncremental(t *testing.T) {
	cfg := newConfig(t, "ERROR one\nERROR two\n")

	first := scan(t, cfg)
	if first.Result.MatchCount != 2 {
		t.Fatalf("first run matches = %d, want 2", first.Result.MatchCount)
	}

	second := scan(t, cfg)
	if second.Result.MatchCount != 0 || second.Result.TotalLines != 0 {
		t.Errorf("second run with no growth: matches=%d lines=%d, want 0 and 0",
			second.Result.MatchCount, second.Result.TotalLines)
	}

	appendLog(t, cfg.LogTarget, "info\nERROR three\n")
	third := scan(t, cfg)
	if third.Result.MatchCount != 1 || third.Result.TotalLines != 2 {
		t.Errorf("third run: matches=%d lines=%d, want 1 and 2",
			third.Result.MatchCount, third.Result.TotalLines)
	}
}

func TestScanRecoversFromRotation(t *testing.T) {
	cfg := newConfig(t, "ERROR a\nERROR b\n")

	seekFile := filepath.Join(cfg.ScratchDir, "app.log.seek")
	if err := os.WriteFile(seekFile, []byte("99999\n"), 0644); err != nil {
		t.Fatalf("failed to write seek file: %v", err)
	}

	r := scan(t, cfg)
	if r.Result.MatchCount != 2 || r.Result.TotalLines != 2 {
		t.Errorf("rotated file must be read from start: matches=%d lines=%d", r.Result.MatchCount, r.Result.TotalLines)
	}

	data, err := os.ReadFile(seekFile)
	if err != nil {
		t.Fatalf("failed to read seek file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "16" {
		t.Errorf("seek file = %q, want 16", data)
	}
}

func TestScanIgnorePrecedence(t *testing.T) {
	cfg := newConfig(t, "ERROR disk full\nERROR harmless retry\nERROR net down\n")
	cfg.IgnorePattern = "harmless"

	r := scan(t, cfg)
	if r.Result.MatchCount != 2 {
		t.Errorf("matches = %d, want 2", r.Result.MatchCount)
	}
}

func TestScanClassifierGating(t *testing.T) {
	cfg := newConfig(t, "ERROR a\nERROR b\nok\n")

	never := classifier.Func(func(line string, st *classifier.State) (int, error) {
		return 0, nil
	})
	r := scan(t, cfg, WithClassifier(never))

	if !r.Result.ClassifierActive {
		t.Error("ClassifierActive should be set")
	}
	if r.Result.MatchCount != 2 || r.Result.ClassifiedCount != 0 {
		t.Errorf("matches=%d classified=%d, want 2 and 0", r.Result.MatchCount, r.Result.ClassifiedCount)
	}
	if r.Result.Output != "" {
		t.Errorf("unclassified matches must not be retained, got %q", r.Result.Output)
	}
}

func TestScanClassifierOverrides(t *testing.T) {
	cfg := newConfig(t, "ERROR code=7\nERROR code=9\n")
	cfg.OutputAll = true

	c := classifier.Func(func(line string, st *classifier.State) (int, error) {
		if strings.HasSuffix(line, "=9") {
			return 0, nil
		}
		st.Output = "custom " + strings.TrimPrefix(line, "ERROR ")
		st.OutputSet = true
		st.Metric = "codes=1"
		st.MetricSet = true
		return 1, nil
	})
	r := scan(t, cfg, WithClassifier(c))

	if r.Result.ClassifiedCount != 1 {
		t.Errorf("classified = %d, want 1", r.Result.ClassifiedCount)
	}
	if r.Result.Output != "custom code=7" {
		t.Errorf("output = %q", r.Result.Output)
	}
	if r.Result.Metric != "codes=1" {
		t.Errorf("metric = %q", r.Result.Metric)
	}
}

func TestScanClassifierFaultsAreWarnings(t *testing.T) {
	cfg := newConfig(t, "ERROR a\nERROR b\n")

	c := classifier.Func(func(line string, st *classifier.State) (int, error) {
		if line == "ERROR a" {
			return 0, errors.New("bad classifier")
		}
		return 1, nil
	})
	r := scan(t, cfg, WithClassifier(c))

	if r.Result.MatchCount != 2 || r.Result.ClassifiedCount != 1 {
		t.Errorf("matches=%d classified=%d, want 2 and 1", r.Result.MatchCount, r.Result.ClassifiedCount)
	}
	if len(r.Result.Warnings) != 1 || !strings.Contains(r.Result.Warnings[0], "line 1") {
		t.Errorf("warnings = %v", r.Result.Warnings)
	}
}

func TestScanNoGrowthSkipsStreaming(t *testing.T) {
	content := "ERROR a\n"
	cfg := newConfig(t, content)
	cfg.NoGrowthCrit = true

	seekFile := filepath.Join(cfg.ScratchDir, "app.log.seek")
	if err := os.WriteFile(seekFile, []byte("8\n"), 0644); err != nil {
		t.Fatalf("failed to write seek file: %v", err)
	}

	r := scan(t, cfg)
	if !r.NoGrowth {
		t.Fatal("expected no-growth report")
	}
	if r.Result.TotalLines != 0 || r.Result.MatchCount != 0 {
		t.Errorf("no lines must be scanned, got lines=%d", r.Result.TotalLines)
	}
}

func TestScanNoGrowthNotTriggeredByGrowth(t *testing.T) {
	cfg := newConfig(t, "ERROR a\n")
	cfg.NoGrowthWarn = true

	if r := scan(t, cfg); r.NoGrowth {
		t.Fatal("first run over a non-empty file is growth")
	}
	if r := scan(t, cfg); !r.NoGrowth {
		t.Fatal("second run without growth must report no growth")
	}
}

func TestScanStopFirstMatch(t *testing.T) {
	cfg := newConfig(t, "info\ninfo\nERROR here\nERROR later\ninfo\n")
	cfg.StopFirstMatch = true

	r := scan(t, cfg)
	if r.Result.TotalLines != 3 || r.Result.MatchCount != 1 {
		t.Errorf("lines=%d matches=%d, want 3 and 1", r.Result.TotalLines, r.Result.MatchCount)
	}
	if r.Result.Offset != int64(len("info\ninfo\nERROR here\n")) {
		t.Errorf("offset = %d, want end of the matching line", r.Result.Offset)
	}
}

func TestScanStopFirstMatchWithContext(t *testing.T) {
	content := "info\ninfo\nERROR here\nnext1\nnext2\nERROR later\n"
	cfg := newConfig(t, content)
	cfg.StopFirstMatch = true
	cfg.ContextSpec = "+2"
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}

	r := scan(t, cfg)
	if r.Result.TotalLines != 3 || r.Result.MatchCount != 1 {
		t.Errorf("lines=%d matches=%d, want 3 and 1", r.Result.TotalLines, r.Result.MatchCount)
	}
	if r.Result.Output != "ERROR here next1 next2" {
		t.Errorf("output = %q", r.Result.Output)
	}
	if want := int64(len("info\ninfo\nERROR here\nnext1\nnext2\n")); r.Result.Offset != want {
		t.Errorf("offset = %d, want %d", r.Result.Offset, want)
	}
}

func TestScanContext(t *testing.T) {
	cfg := newConfig(t, "a\nb\nERROR x\nERROR y\nc\nd\n")
	cfg.ContextSpec = "1"
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}

	r := scan(t, cfg)
	// The look-ahead consumes "ERROR y", so it is not matched on its own.
	if r.Result.MatchCount != 1 {
		t.Errorf("matches = %d, want 1", r.Result.MatchCount)
	}
	// "ERROR y" is taken as context and not counted.
	if r.Result.TotalLines != 5 {
		t.Errorf("lines = %d, want 5", r.Result.TotalLines)
	}
	if r.Result.Output != "b ERROR x ERROR y" {
		t.Errorf("output = %q", r.Result.Output)
	}
}

func TestScanOutputAll(t *testing.T) {
	cfg := newConfig(t, "ERROR one\ninfo\nERROR two\n")
	cfg.OutputAll = true

	r := scan(t, cfg)
	if r.Result.Output != "ERROR one; ERROR two" {
		t.Errorf("output = %q", r.Result.Output)
	}
}

func TestScanMissingTarget(t *testing.T) {
	cfg := newConfig(t, "")
	cfg.LogTarget = filepath.Join(cfg.ScratchDir, "absent.log")

	e := New(cfg)
	_, err := e.Scan(context.Background())
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrIO {
		t.Fatalf("Scan() error = %v, want I/O fault", err)
	}
	if e.State() != StateError {
		t.Errorf("state = %v, want error", e.State())
	}

	cfg.MissingOK = true
	r := scan(t, cfg)
	if !r.Missing {
		t.Error("expected missing report")
	}
}

func TestScanUsageFaults(t *testing.T) {
	cfg := newConfig(t, "x\n")
	cfg.MatchPattern = ""

	_, err := New(cfg).Scan(context.Background())
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrUsage {
		t.Errorf("no criterion: error = %v, want usage fault", err)
	}

	cfg.MatchPattern = "(broken"
	_, err = New(cfg).Scan(context.Background())
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrUsage {
		t.Errorf("bad pattern: error = %v, want usage fault", err)
	}
}

func TestScanSeekWriteFailureIsFatal(t *testing.T) {
	cfg := newConfig(t, "ERROR a\n")
	cfg.SeekKey = filepath.Join(cfg.ScratchDir, "no-such-dir", "app.seek")

	_, err := New(cfg).Scan(context.Background())
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrIO {
		t.Errorf("error = %v, want I/O fault", err)
	}
}

func TestScanNullSeekKeyAlwaysRescans(t *testing.T) {
	cfg := newConfig(t, "ERROR a\n")
	cfg.SeekKey = types.NullSeekKey

	for i := 0; i < 2; i++ {
		if r := scan(t, cfg); r.Result.MatchCount != 1 {
			t.Errorf("run %d: matches = %d, want 1", i, r.Result.MatchCount)
		}
	}
}

func TestScanCancelledContext(t *testing.T) {
	cfg := newConfig(t, "ERROR a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg).Scan(ctx)
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrCanceled {
		t.Errorf("error = %v, want canceled fault", err)
	}

	expired, stop := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer stop()
	_, err = New(cfg).Scan(expired)
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrTimeout {
		t.Errorf("error = %v, want timeout fault", err)
	}
}

func TestScanDirectoryTargetSeekKey(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app-20260101.log"), []byte("ERROR a\n"), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	seekDir := t.TempDir()

	cfg := &types.CheckConfig{
		LogTarget:    dir,
		ScratchDir:   seekDir,
		MatchPattern: "ERROR",
	}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}

	// The selected name changes with every rotation, so no key is derived.
	_, err := New(cfg).Scan(context.Background())
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrUsage {
		t.Fatalf("no seek key: error = %v, want usage fault", err)
	}
	entries, _ := os.ReadDir(seekDir)
	if len(entries) != 0 {
		t.Errorf("seek files were created: %v", entries)
	}

	cfg.SeekKey = filepath.Join(seekDir, "app.seek")
	if r := scan(t, cfg); r.SeekFile != cfg.SeekKey || r.Result.MatchCount != 1 {
		t.Errorf("fixed key: seek file %q, matches %d", r.SeekFile, r.Result.MatchCount)
	}

	cfg.SeekKey = seekDir
	r := scan(t, cfg)
	if want := filepath.Join(seekDir, "app-20260101.log.seek"); r.SeekFile != want {
		t.Errorf("directory key: seek file %q, want %q", r.SeekFile, want)
	}

	cfg.SeekKey = types.NullSeekKey
	if r := scan(t, cfg); r.Result.MatchCount != 1 {
		t.Errorf("null key: matches = %d, want 1", r.Result.MatchCount)
	}
}

func TestScanDoesNotSaveWhenAborted(t *testing.T) {
	cfg := newConfig(t, "ERROR a\ninfo\n")
	cfg.StopFirstMatch = true
	ctx, cancel := context.WithCancel(context.Background())

	// Stopping at the first match skips the per-line deadline check, so the
	// context is already done when the scan reaches finalizing.
	c := classifier.Func(func(line string, st *classifier.State) (int, error) {
		cancel()
		return 1, nil
	})

	e := New(cfg, WithClassifier(c))
	_, err := e.Scan(ctx)
	if kind, ok := types.KindOf(err); !ok || kind != types.ErrCanceled {
		t.Fatalf("error = %v, want canceled fault", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.ScratchDir, "app.log.seek")); !os.IsNotExist(err) {
		t.Errorf("seek file must not be written after the deadline, stat error = %v", err)
	}
}
