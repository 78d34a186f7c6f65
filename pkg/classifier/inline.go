package classifier

import (
	"context"
	"fmt"
	"regexp"

	"github.com/supporttools/logcheck/pkg/matcher"
	"github.com/supporttools/logcheck/pkg/types"
)

// Inline is a regular expression classifier. A line scores 1 when the
// expression matches it. The named groups "output" and "metric", when they
// take part in the match, replace the retained output and the metric text.
type Inline struct {
	re          *regexp.Regexp
	outputGroup int
	metricGroup int
}

// NewInline compiles expr. Failures are usage faults.
func NewInline(expr string) (*Inline, error) {
	if err := matcher.ValidateSafety(expr); err != nil {
		return nil, types.UsageError("unsafe classifier expression: %v", err)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, types.UsageError("invalid classifier expression %q: %v", expr, err)
	}
	return &Inline{
		re:          re,
		outputGroup: re.SubexpIndex("output"),
		metricGroup: re.SubexpIndex("metric"),
	}, nil
}

// Classify implements Classifier.
func (c *Inline) Classify(_ context.Context, line string, st *State) (int, error) {
	m := c.re.FindStringSubmatchIndex(line)
	if m == nil {
		return 0, nil
	}

	if text, ok := group(line, m, c.outputGroup); ok {
		st.Output = text
		st.OutputSet = true
	}
	if text, ok := group(line, m, c.metricGroup); ok {
		st.Metric = text
		st.MetricSet = true
	}
	return 1, nil
}

// String returns the expression.
func (c *Inline) String() string {
	return fmt.Sprintf("inline(%s)", c.re.String())
}

func group(line string, m []int, idx int) (string, bool) {
	if idx < 0 || 2*idx+1 >= len(m) || m[2*idx] < 0 {
		return "", false
	}
	return line[m[2*idx]:m[2*idx+1]], true
}
