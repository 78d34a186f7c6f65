package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/logcheck/pkg/check"
	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/types"
)

// Runner runs one check.
type Runner interface {
	Run(ctx context.Context, cfg *types.CheckConfig) check.Outcome
}

// Options configures a Loop.
type Options struct {
	// Debounce collapses bursts of writes into one check.
	Debounce time.Duration

	// Interval forces a check when nothing changed for this long. Zero
	// disables it.
	Interval time.Duration

	// Out receives one output line per check.
	Out io.Writer

	// OnOutcome is called after every check, e.g. to publish status.
	OnOutcome func(check.Outcome)
}

// Loop runs checks for one configuration, strictly one after another.
type Loop struct {
	cfg    *types.CheckConfig
	runner Runner
	opts   Options
	log    *logrus.Entry
}

// NewLoop creates a Loop.
func NewLoop(cfg *types.CheckConfig, runner Runner, opts Options) *Loop {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Loop{
		cfg:    cfg,
		runner: runner,
		opts:   opts,
		log:    logger.ForComponent("watch").WithField("target", cfg.LogTarget),
	}
}

// Run checks once immediately, then on every change and interval tick until
// ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	fw, err := NewFileWatcher(WatchDirs(l.cfg), TargetFilter(l.cfg), l.opts.Debounce)
	if err != nil {
		return err
	}
	defer fw.Stop()

	changes, err := fw.Start(ctx)
	if err != nil {
		return err
	}

	var tick <-chan time.Time
	if l.opts.Interval > 0 {
		ticker := time.NewTicker(l.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	l.log.WithFields(logrus.Fields{
		"dirs":     WatchDirs(l.cfg),
		"interval": l.opts.Interval.String(),
	}).Info("watching log target")

	l.checkOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("watch stopped")
			return nil
		case <-changes:
			l.checkOnce(ctx)
		case <-tick:
			l.checkOnce(ctx)
		}
	}
}

func (l *Loop) checkOnce(ctx context.Context) {
	out := l.runner.Run(ctx, l.cfg)
	if _, err := fmt.Fprintln(l.opts.Out, out.String()); err != nil {
		l.log.WithError(err).Warn("failed to write check result")
	}
	if l.opts.OnOutcome != nil {
		l.opts.OnOutcome(out)
	}
}

// WatchDirs returns the directories whose changes can affect the target.
func WatchDirs(cfg *types.CheckConfig) []string {
	base := filepath.Clean(cfg.LogTarget)
	if info, err := os.Stat(base); err == nil && info.IsDir() {
		return []string{base}
	}
	if cfg.LogFilePattern != "" {
		// The pattern may add path components; watch the directory that
		// holds the expanded names.
		return []string{filepath.Dir(base + cfg.LogFilePattern)}
	}
	return []string{filepath.Dir(base)}
}

// TargetFilter accepts events that may concern the target and rejects
// writes to seek files, which would otherwise retrigger the check that wrote
// them.
func TargetFilter(cfg *types.CheckConfig) Filter {
	base := filepath.Clean(cfg.LogTarget)
	info, err := os.Stat(base)
	literal := cfg.LogFilePattern == "" && (err != nil || !info.IsDir())
	seekKey := filepath.Clean(cfg.SeekKey)

	return func(path string) bool {
		if strings.HasSuffix(path, types.DefaultSeekSuffix) {
			return false
		}
		if cfg.SeekKey != "" && path == seekKey {
			return false
		}
		if literal {
			return path == base
		}
		return true
	}
}
