// Package check runs one complete log check: it drives the scanner under the
// global execution budget, turns the outcome into a verdict line and records
// metrics.
package check

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/supporttools/logcheck/pkg/classifier"
	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/metrics"
	"github.com/supporttools/logcheck/pkg/scanner"
	"github.com/supporttools/logcheck/pkg/types"
	"github.com/supporttools/logcheck/pkg/verdict"
)

// Outcome is the result of one check.
type Outcome struct {
	Verdict types.Verdict
	Line    verdict.Line

	// Result is nil when the check failed before a scan result existed.
	Result *types.ScanResult

	// Err is the fault behind a usage, I/O, timeout or internal failure.
	Err error

	Duration time.Duration
}

// String renders the output line.
func (o Outcome) String() string {
	return o.Line.String()
}

// ExitCode returns the process exit status for the outcome.
func (o Outcome) ExitCode() int {
	return o.Verdict.ExitCode()
}

// Runner runs checks. The zero value is usable.
type Runner struct {
	metrics    *metrics.Metrics
	classifier classifier.Classifier
	now        func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithMetrics records every check into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithClassifier injects a classifier into every scan.
func WithClassifier(c classifier.Classifier) Option {
	return func(r *Runner) {
		r.classifier = c
	}
}

// WithClock overrides the clock, for timestamp patterns in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run is a shorthand for NewRunner(opts...).Run(ctx, cfg).
func Run(ctx context.Context, cfg *types.CheckConfig, opts ...Option) Outcome {
	return NewRunner(opts...).Run(ctx, cfg)
}

type scanDone struct {
	report *scanner.Report
	err    error
}

// Run performs one check. cfg must have had ApplyDefaults called. Run never
// returns an error: faults are folded into the outcome's verdict.
func (r *Runner) Run(ctx context.Context, cfg *types.CheckConfig) Outcome {
	start := time.Now()
	log := logger.ForComponent("check").WithField("target", cfg.LogTarget)

	out := r.run(ctx, cfg, log)
	out.Duration = time.Since(start)

	if r.metrics != nil {
		r.metrics.ObserveCheck(cfg.LogTarget, out.Verdict, out.Result, out.Duration)
	}

	entry := log.WithFields(logrus.Fields{
		"verdict":  out.Verdict.String(),
		"duration": out.Duration.String(),
	})
	if out.Err != nil {
		entry.WithError(out.Err).Debug("check failed")
	} else {
		entry.Debug("check completed")
	}
	return out
}

func (r *Runner) run(ctx context.Context, cfg *types.CheckConfig, log *logrus.Entry) Outcome {
	if err := cfg.Validate(); err != nil {
		return faultOutcome(err)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var opts []scanner.Option
	if r.classifier != nil {
		opts = append(opts, scanner.WithClassifier(r.classifier))
	}
	if r.now != nil {
		opts = append(opts, scanner.WithClock(r.now))
	}
	engine := scanner.New(cfg, opts...)

	done := make(chan scanDone, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- scanDone{err: fmt.Errorf("internal fault: %v", p)}
			}
		}()
		report, err := engine.Scan(ctx)
		done <- scanDone{report: report, err: err}
	}()

	select {
	case d := <-done:
		if d.err != nil {
			return faultOutcome(d.err)
		}
		return reportOutcome(cfg, d.report)
	case <-ctx.Done():
		// The scan goroutine sees the cancelled context on its next line
		// and releases the file without saving the offset.
		err := ctx.Err()
		if !errors.Is(err, context.DeadlineExceeded) {
			log.Debug("check cancelled")
			return faultOutcome(types.Aborted(err, "check cancelled: %w", err))
		}
		log.WithField("timeout", cfg.Timeout.String()).Warn("check exceeded its execution budget")
		if cfg.Timeout > 0 {
			return faultOutcome(types.Aborted(err, "check timed out after %v", cfg.Timeout))
		}
		return faultOutcome(types.Aborted(err, "check deadline exceeded: %w", err))
	}
}

func reportOutcome(cfg *types.CheckConfig, report *scanner.Report) Outcome {
	res := report.Result

	switch {
	case report.Missing:
		return Outcome{
			Verdict: types.VerdictOK,
			Line: verdict.Line{
				Verdict: types.VerdictOK,
				Summary: cfg.MissingMessage,
				Metric:  verdict.Metric(res),
			},
			Result: &res,
		}

	case report.NoGrowth:
		v := types.VerdictWarning
		if cfg.NoGrowthCrit {
			v = types.VerdictCritical
		}
		if cfg.AlwaysOK {
			v = types.VerdictOK
		}
		return Outcome{
			Verdict: v,
			Line: verdict.Line{
				Verdict: v,
				Summary: fmt.Sprintf("Log file has not grown since the last check (%d bytes)", res.Offset),
				Metric:  verdict.Metric(res),
			},
			Result: &res,
		}
	}

	in := verdict.Input{
		Result:   res,
		Warning:  cfg.Warning,
		Critical: cfg.Critical,
		AlwaysOK: cfg.AlwaysOK,
	}
	v := verdict.Evaluate(in)
	return Outcome{
		Verdict: v,
		Line:    verdict.ForScan(v, in),
		Result:  &res,
	}
}

func faultOutcome(err error) Outcome {
	v := types.VerdictUnknown
	var ce *types.CheckError
	if errors.As(err, &ce) {
		v = ce.Verdict()
	}
	return Outcome{
		Verdict: v,
		Line: verdict.Line{
			Verdict: v,
			Summary: err.Error(),
		},
		Err: err,
	}
}
