// Package types defines the core types shared by the logcheck packages:
// verdicts, thresholds, scan results and the fault taxonomy.
package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Verdict is the health outcome of a single check. The numeric value is the
// process exit code understood by monitoring plugin hosts.
type Verdict int

const (
	// VerdictOK indicates no threshold was met.
	VerdictOK Verdict = 0

	// VerdictWarning indicates the warning threshold was met.
	VerdictWarning Verdict = 1

	// VerdictCritical indicates the critical threshold was met, or a fatal I/O fault.
	VerdictCritical Verdict = 2

	// VerdictUnknown is reserved for usage faults, internal faults and timeouts.
	VerdictUnknown Verdict = 3
)

// String returns the upper-case state name used in the output line.
func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "OK"
	case VerdictWarning:
		return "WARNING"
	case VerdictCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExitCode returns the process exit status for this verdict.
func (v Verdict) ExitCode() int {
	if v < VerdictOK || v > VerdictUnknown {
		return int(VerdictUnknown)
	}
	return int(v)
}

// Threshold is a warning or critical limit given either as an absolute count
// or as a percentage. Set distinguishes an explicit "0" from an absent value.
type Threshold struct {
	Value   float64
	Percent bool
	Set     bool
}

// ParseThreshold parses "3", "2.5" or "40%".
func ParseThreshold(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("threshold is empty")
	}

	t := Threshold{Set: true}
	if strings.HasSuffix(s, "%") {
		t.Percent = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q: %w", s, err)
	}
	if v < 0 {
		return Threshold{}, fmt.Errorf("threshold must not be negative, got %v", v)
	}
	t.Value = v
	return t, nil
}

// Enabled reports whether the threshold participates in evaluation.
func (t Threshold) Enabled() bool {
	return t.Value > 0
}

// String renders the threshold the way it is written on the command line.
func (t Threshold) String() string {
	s := strconv.FormatFloat(t.Value, 'f', -1, 64)
	if t.Percent {
		return s + "%"
	}
	return s
}

// UnmarshalText implements encoding.TextUnmarshaler (YAML, TOML strings, flags).
// Empty text leaves the threshold unset.
func (t *Threshold) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*t = Threshold{}
		return nil
	}
	parsed, err := ParseThreshold(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler. An unset threshold
// marshals to empty text.
func (t Threshold) MarshalText() ([]byte, error) {
	if !t.Set {
		return nil, nil
	}
	return []byte(t.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and strings.
func (t *Threshold) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Threshold{}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		return t.UnmarshalText([]byte(strconv.FormatFloat(n, 'f', -1, 64)))
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("threshold must be a number or string: %w", err)
	}
	return t.UnmarshalText([]byte(s))
}

// ScanResult is accumulated while streaming the target and finalized at end
// of file or at the first match when stop-on-first-match is set.
type ScanResult struct {
	// Target is the resolved file that was scanned.
	Target string

	// TotalLines counts lines taken by the streaming loop. Look-ahead context
	// lines are consumed without being counted.
	TotalLines int

	// MatchCount counts lines accepted by the matcher.
	MatchCount int

	// ClassifiedCount counts matches the classifier scored above zero.
	ClassifiedCount int

	// ClassifierActive is set when a classifier took part in the scan.
	ClassifierActive bool

	// Output is the retained match text (with context).
	Output string

	// Metric overrides the default metric block when a classifier set it.
	Metric string

	// Offset is the byte position persisted for the next run.
	Offset int64

	// Warnings collects non-fatal annotations such as classifier faults.
	Warnings []string
}

// ErrorKind classifies a fault into the verdict it maps to.
type ErrorKind int

const (
	// ErrUsage is a configuration or invocation fault detected before any file I/O.
	ErrUsage ErrorKind = iota

	// ErrIO is an unrecoverable I/O fault (target or seek file).
	ErrIO

	// ErrTimeout is raised when the global execution budget runs out.
	ErrTimeout

	// ErrCanceled is raised when the caller stops the check, e.g. on SIGINT.
	ErrCanceled
)

// String returns a short name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrUsage:
		return "usage"
	case ErrIO:
		return "io"
	case ErrTimeout:
		return "timeout"
	case ErrCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// CheckError carries the fault kind alongside the underlying error.
type CheckError struct {
	Kind ErrorKind
	Err  error
}

// Error implements error.
func (e *CheckError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *CheckError) Unwrap() error {
	return e.Err
}

// Verdict returns the verdict this fault maps to.
func (e *CheckError) Verdict() Verdict {
	if e.Kind == ErrIO {
		return VerdictCritical
	}
	return VerdictUnknown
}

// UsageError builds an ErrUsage fault.
func UsageError(format string, args ...interface{}) error {
	return &CheckError{Kind: ErrUsage, Err: fmt.Errorf(format, args...)}
}

// IOError builds an ErrIO fault.
func IOError(format string, args ...interface{}) error {
	return &CheckError{Kind: ErrIO, Err: fmt.Errorf(format, args...)}
}

// Aborted builds the fault for a check stopped by its context: ErrTimeout
// when ctxErr is a deadline, ErrCanceled otherwise.
func Aborted(ctxErr error, format string, args ...interface{}) error {
	kind := ErrCanceled
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &CheckError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the fault kind of err, and false if err carries none.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CheckError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
