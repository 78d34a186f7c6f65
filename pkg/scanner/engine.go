// Package scanner implements the incremental scan of one log target: select
// the file, restore the seek offset, stream new lines through the matcher and
// classifier, and persist the new offset.
package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/logcheck/pkg/classifier"
	"github.com/supporttools/logcheck/pkg/linebuf"
	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/matcher"
	"github.com/supporttools/logcheck/pkg/seek"
	"github.com/supporttools/logcheck/pkg/selector"
	"github.com/supporttools/logcheck/pkg/types"
)

const (
	fragmentSeparator = " "
	blockSeparator    = "; "
)

// Report is what a finished scan hands to the verdict stage.
type Report struct {
	// Result holds the counts and retained text.
	Result types.ScanResult

	// Missing is set when the target was absent and missing files are tolerated.
	Missing bool

	// NoGrowth is set when the no-growth policy ended the scan before streaming.
	NoGrowth bool

	// SeekFile is the resolved seek file location.
	SeekFile string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClassifier injects a classifier, replacing the one built from the
// configuration.
func WithClassifier(c classifier.Classifier) Option {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithClock overrides the clock used for timestamp patterns.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine runs one scan. All per-run state lives on the Engine; use a new
// Engine for every run.
type Engine struct {
	cfg        *types.CheckConfig
	classifier classifier.Classifier
	now        func() time.Time
	log        *logrus.Entry

	state   State
	matcher *matcher.Matcher
	window  *linebuf.Window
	cstate  classifier.State
	result  types.ScanResult
}

// New creates an Engine for cfg. cfg must have had ApplyDefaults called.
func New(cfg *types.CheckConfig, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		now:   time.Now,
		log:   logger.ForComponent("scanner"),
		state: StateInit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the state the engine has reached.
func (e *Engine) State() State {
	return e.state
}

func (e *Engine) transition(to State) {
	e.log.WithFields(logrus.Fields{
		"from": e.state.String(),
		"to":   to.String(),
	}).Debug("scan state transition")
	e.state = to
}

func (e *Engine) fail(err error) error {
	e.transition(StateError)
	return err
}

// Scan runs the state machine to completion. Errors carry a types.CheckError
// kind: usage faults, I/O faults, or a timeout when ctx is done mid-stream.
func (e *Engine) Scan(ctx context.Context) (*Report, error) {
	if err := e.init(); err != nil {
		return nil, e.fail(err)
	}

	e.transition(StateSelecting)
	target, err := selector.Select(selector.Options{
		Base:      e.cfg.LogTarget,
		Pattern:   e.cfg.LogFilePattern,
		Strategy:  e.cfg.FileSelect,
		Reference: e.cfg.ReferenceTimestamp,
		Now:       e.now,
	})
	if err != nil {
		return nil, e.fail(err)
	}
	e.result.Target = target.Path
	e.log = e.log.WithField("target", target.Path)

	if target.Missing {
		if e.cfg.MissingOK {
			e.log.Info("target missing, reporting as OK")
			e.transition(StateDone)
			return &Report{Result: e.result, Missing: true}, nil
		}
		return nil, e.fail(types.IOError("log file %s not found", target.Path))
	}

	seekPath, err := seek.ResolveKey(e.cfg.SeekKey, e.cfg.ScratchDir, target.Path, target.Dynamic)
	if err != nil {
		return nil, e.fail(err)
	}
	store := seek.New(seekPath)

	e.transition(StateOpening)
	f, err := os.Open(target.Path)
	if err != nil {
		return nil, e.fail(types.IOError("failed to open log file %s: %w", target.Path, err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, e.fail(types.IOError("failed to stat log file %s: %w", target.Path, err))
	}
	size := info.Size()

	e.transition(StateSeekRestoring)
	stored, found := store.Load()
	if (e.cfg.NoGrowthWarn || e.cfg.NoGrowthCrit) && seek.Unchanged(stored, size) {
		e.log.WithField("offset", stored).Info("log file has not grown")
		e.result.Offset = stored
		e.transition(StateDone)
		return &Report{Result: e.result, NoGrowth: true, SeekFile: seekPath}, nil
	}

	offset := seek.Apply(stored, size)
	if found && offset != stored {
		e.log.WithFields(logrus.Fields{
			"stored": stored,
			"size":   size,
		}).Info("seek offset beyond end of file, log was rotated or truncated")
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, e.fail(types.IOError("failed to seek %s to %d: %w", target.Path, offset, err))
		}
	}

	e.transition(StateStreaming)
	reader := linebuf.NewReader(f, offset)
	if err := e.stream(ctx, reader); err != nil {
		return nil, e.fail(err)
	}

	e.transition(StateFinalizing)
	if err := ctx.Err(); err != nil {
		return nil, e.fail(types.Aborted(err, "scan aborted before saving the offset: %w", err))
	}
	e.result.Offset = reader.Offset()
	if err := store.Save(e.result.Offset); err != nil {
		return nil, e.fail(err)
	}

	e.log.WithFields(logrus.Fields{
		"lines":      e.result.TotalLines,
		"matches":    e.result.MatchCount,
		"classified": e.result.ClassifiedCount,
		"offset":     e.result.Offset,
	}).Debug("scan finished")

	e.transition(StateDone)
	return &Report{Result: e.result, SeekFile: seekPath}, nil
}

func (e *Engine) init() error {
	if !e.cfg.HasMatchCriterion() {
		return types.UsageError("no match pattern, pattern file or no-growth check given")
	}

	m, err := matcher.New(matcher.Options{
		Match:           e.cfg.MatchPattern,
		MatchFile:       e.cfg.MatchPatternFile,
		Ignore:          e.cfg.IgnorePattern,
		IgnoreFile:      e.cfg.IgnorePatternFile,
		CaseInsensitive: e.cfg.CaseInsensitive,
	})
	if err != nil {
		return err
	}
	e.matcher = m
	e.log.WithField("pattern", m.String()).Debug("matcher ready")

	if e.classifier == nil && e.cfg.ClassifierConfigured() {
		c, err := classifier.New(classifier.Options{
			Code:    e.cfg.ClassifierCode,
			File:    e.cfg.ClassifierFile,
			Timeout: e.cfg.ClassifierTimeout,
		})
		if err != nil {
			return err
		}
		e.classifier = c
	}
	e.result.ClassifierActive = e.classifier != nil

	e.window = linebuf.NewWindow(e.cfg.Context.Before)
	return nil
}

func (e *Engine) stream(ctx context.Context, r *linebuf.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return types.Aborted(err, "scan aborted after %d lines: %w", e.result.TotalLines, err)
		}

		line, ok, err := r.Next()
		if err != nil {
			return types.IOError("failed to read log file: %w", err)
		}
		if !ok {
			return nil
		}
		e.result.TotalLines++

		if !e.matcher.Matches(line) {
			e.window.Push(line)
			continue
		}
		e.result.MatchCount++

		before := e.window.Lines()
		// Look-ahead lines are consumed but not counted or matched.
		after, err := r.ReadAhead(e.cfg.Context.After)
		if err != nil {
			return types.IOError("failed to read log file: %w", err)
		}

		e.capture(ctx, line, before, after)

		e.window.Push(line)
		for _, l := range after {
			e.window.Push(l)
		}

		if e.cfg.StopFirstMatch {
			e.log.WithField("line", e.result.TotalLines).Debug("stopping at first match")
			return nil
		}
	}
}

// capture runs the classifier, if any, and records the retained text.
func (e *Engine) capture(ctx context.Context, line string, before, after []string) {
	parts := make([]string, 0, len(before)+1+len(after))
	parts = append(parts, before...)
	parts = append(parts, line)
	parts = append(parts, after...)
	block := strings.Join(parts, fragmentSeparator)

	if e.classifier != nil {
		e.cstate.Output = e.result.Output
		result, err := classifier.Run(ctx, e.classifier, line, &e.cstate)
		if err != nil {
			msg := fmt.Sprintf("line %d: %v", e.result.TotalLines, err)
			e.log.WithError(err).Warn("classifier failed, line not counted")
			e.result.Warnings = append(e.result.Warnings, msg)
			return
		}
		if e.cstate.MetricSet {
			e.result.Metric = e.cstate.Metric
		}
		if result <= 0 {
			return
		}
		e.result.ClassifiedCount++
		if e.cstate.OutputSet {
			block = e.cstate.Output
		}
	}

	if e.cfg.OutputAll && e.result.Output != "" {
		e.result.Output += blockSeparator + block
	} else {
		e.result.Output = block
	}
}
