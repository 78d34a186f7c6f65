// Package verdict turns scan counts into a verdict and renders the single
// output line a monitoring host parses.
package verdict

import (
	"fmt"
	"strings"

	"github.com/supporttools/logcheck/pkg/types"
)

// Prefix starts every output line.
const Prefix = "LOG"

// Input is everything Evaluate looks at.
type Input struct {
	Result   types.ScanResult
	Warning  types.Threshold
	Critical types.Threshold
	AlwaysOK bool
}

// Percentage returns the basis percentage thresholds given with "%" are
// compared against: classified/matched when a classifier took part and
// something matched, otherwise matched/total. ok is false when neither
// ratio is defined.
func Percentage(res types.ScanResult) (pct float64, ok bool) {
	if res.ClassifierActive && res.MatchCount > 0 {
		return float64(res.ClassifiedCount) / float64(res.MatchCount) * 100, true
	}
	if res.TotalLines > 0 {
		return float64(res.MatchCount) / float64(res.TotalLines) * 100, true
	}
	return 0, false
}

// Met reports whether res reaches threshold t. Each threshold is judged on
// its own form, so a percentage warning and an absolute critical can be
// mixed.
func Met(res types.ScanResult, t types.Threshold) bool {
	if t.Percent {
		pct, ok := Percentage(res)
		return ok && pct >= t.Value
	}
	if res.ClassifierActive {
		return float64(res.ClassifiedCount) >= t.Value
	}
	return float64(res.MatchCount) >= t.Value
}

// Evaluate computes the verdict for a completed scan.
func Evaluate(in Input) types.Verdict {
	if in.AlwaysOK || in.Result.MatchCount == 0 {
		return types.VerdictOK
	}

	v := types.VerdictOK
	if Met(in.Result, in.Warning) {
		v = types.VerdictWarning
	}
	if in.Critical.Enabled() && Met(in.Result, in.Critical) {
		v = types.VerdictCritical
	}
	return v
}

// Summary describes the counts, e.g. "3 of 120 lines matched (limit=1/5)".
func Summary(res types.ScanResult, warn, crit types.Threshold) string {
	if res.MatchCount == 0 {
		return "No matches found"
	}

	limit := warn.String()
	if crit.Enabled() {
		limit += "/" + crit.String()
	}

	if res.ClassifierActive {
		return fmt.Sprintf("%d of %d matches parsed, %d lines scanned (limit=%s)",
			res.ClassifiedCount, res.MatchCount, res.TotalLines, limit)
	}
	return fmt.Sprintf("%d of %d lines matched (limit=%s)", res.MatchCount, res.TotalLines, limit)
}

// Metric returns the classifier override if one was set, else
// "lines=<matches>" plus " parsed=<classified>" with a classifier.
func Metric(res types.ScanResult) string {
	if res.Metric != "" {
		return res.Metric
	}
	if res.ClassifierActive {
		return fmt.Sprintf("lines=%d parsed=%d", res.MatchCount, res.ClassifiedCount)
	}
	return fmt.Sprintf("lines=%d", res.MatchCount)
}

// Line is one rendered check result.
type Line struct {
	Verdict  types.Verdict
	Summary  string
	Text     string
	Warnings []string
	Metric   string
}

// String renders "LOG <STATE> - <summary>[: <text>][ (classifier warning: ...)]|<metric>".
// Pipes in the human part become "!" since "|" starts the metric block.
func (l Line) String() string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString(" ")
	b.WriteString(l.Verdict.String())
	b.WriteString(" - ")
	b.WriteString(Sanitize(l.Summary))
	if l.Text != "" {
		b.WriteString(": ")
		b.WriteString(Sanitize(l.Text))
	}
	for _, w := range l.Warnings {
		b.WriteString(" (classifier warning: ")
		b.WriteString(Sanitize(w))
		b.WriteString(")")
	}
	if metric := SanitizeMetric(l.Metric); metric != "" {
		b.WriteString("|")
		b.WriteString(metric)
	}
	return b.String()
}

// Sanitize replaces pipes and folds line breaks so the text stays on one line.
func Sanitize(s string) string {
	return strings.NewReplacer("|", "!", "\r", " ", "\n", " ").Replace(s)
}

// SanitizeMetric keeps a metric block to one field on one line: line breaks
// fold to spaces and a "|" from a classifier becomes "!".
func SanitizeMetric(s string) string {
	return strings.TrimSpace(Sanitize(s))
}

// ForScan builds the line for a completed scan.
func ForScan(v types.Verdict, in Input) Line {
	return Line{
		Verdict:  v,
		Summary:  Summary(in.Result, in.Warning, in.Critical),
		Text:     in.Result.Output,
		Warnings: in.Result.Warnings,
		Metric:   Metric(in.Result),
	}
}
