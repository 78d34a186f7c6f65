// Package classifier decides whether a matched line counts toward the
// classified total and may override the retained output and metric text.
//
// A classifier never touches engine state directly: it receives a scratch
// State copy and the engine merges it back only after a successful call.
package classifier

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/supporttools/logcheck/pkg/logger"
)

// State is the working state a classifier may read and modify.
type State struct {
	// Output is the retained output text accumulated so far.
	Output string

	// Metric is the metric text override, if any.
	Metric string

	// OutputSet is raised when the classifier supplies its own output text
	// for the current line.
	OutputSet bool

	// MetricSet is raised when the classifier replaced the metric text.
	MetricSet bool
}

// Classifier scores one matched line. A result above zero counts the line.
type Classifier interface {
	Classify(ctx context.Context, line string, st *State) (int, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(line string, st *State) (int, error)

// Classify implements Classifier.
func (f Func) Classify(_ context.Context, line string, st *State) (int, error) {
	return f(line, st)
}

// Options selects and configures the classifier for a check.
type Options struct {
	// Code is an inline classifier expression.
	Code string

	// File is the absolute path of an external classifier program.
	File string

	// Timeout bounds a single external classifier call.
	Timeout time.Duration
}

// New builds the configured classifier, or returns nil when none is
// configured. The file form wins over the inline form.
func New(opts Options) (Classifier, error) {
	switch {
	case opts.File != "":
		if opts.Code != "" {
			logger.ForComponent("classifier").Debug("classifier file given, ignoring inline classifier")
		}
		return NewPlugin(opts.File, NewExecutor(opts.Timeout))
	case opts.Code != "":
		return NewInline(opts.Code)
	default:
		return nil, nil
	}
}

// Run calls c on a copy of st. On success the copy is written back to st;
// on error or panic st is left untouched and the result is 0.
func Run(ctx context.Context, c Classifier, line string, st *State) (result int, err error) {
	scratch := *st
	scratch.OutputSet = false
	scratch.MetricSet = false

	defer func() {
		if r := recover(); r != nil {
			logger.ForComponent("classifier").WithField("stack", string(debug.Stack())).Debug("classifier panicked")
			result = 0
			err = fmt.Errorf("classifier panicked: %v", r)
		}
	}()

	result, err = c.Classify(ctx, line, &scratch)
	if err != nil {
		return 0, err
	}
	*st = scratch
	return result, nil
}
