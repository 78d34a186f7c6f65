package selector

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var referenceUnits = map[string]time.Duration{
	"second": time.Second,
	"sec":    time.Second,
	"minute": time.Minute,
	"min":    time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// ParseReference resolves a reference timestamp expression relative to now.
// Accepted forms are "" or "now", "<N> <unit>[s] ago" (second, minute, hour,
// day, week) and a bare integer of epoch seconds.
func ParseReference(expr string, now time.Time) (time.Time, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))
	if expr == "" || expr == "now" {
		return now, nil
	}

	if epoch, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return time.Unix(epoch, 0), nil
	}

	fields := strings.Fields(expr)
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, fmt.Errorf("unsupported timestamp expression %q", expr)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("invalid quantity in timestamp expression %q", expr)
	}

	unit, ok := referenceUnits[strings.TrimSuffix(fields[1], "s")]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown unit %q in timestamp expression", fields[1])
	}

	return now.Add(-time.Duration(n) * unit), nil
}
