// Package selector resolves a configured log target (literal path,
// directory, or glob with strftime placeholders) to the single file a check
// scans.
package selector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/sirupsen/logrus"

	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/types"
)

// Options describes what to select.
type Options struct {
	// Base is a file path, a directory, or a path prefix the pattern is appended to.
	Base string

	// Pattern is an optional glob that may carry strftime placeholders.
	Pattern string

	// Strategy is most_recent, first_match or last_match.
	Strategy string

	// Reference is the timestamp expression used for placeholders.
	Reference string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Target is the resolved file for one run.
type Target struct {
	// Path is the absolute path of the target.
	Path string

	// Missing is set when the target does not exist.
	Missing bool

	// Dynamic is set when the name was produced from a pattern.
	Dynamic bool
}

type candidate struct {
	path    string
	modTime time.Time
}

// Select resolves opts to one target. A target that cannot be found is not
// an error: it comes back with Missing set so the caller can apply its
// missing-file policy. Errors are usage faults (bad pattern or reference).
func Select(opts Options) (Target, error) {
	log := logger.ForComponent("selector")

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	info, statErr := os.Stat(opts.Base)
	isDir := statErr == nil && info.IsDir()

	pattern := opts.Pattern
	strategy := opts.Strategy
	if pattern == "" {
		if !isDir {
			return literalTarget(opts.Base, false)
		}
		pattern = "*"
		if strategy == "" {
			strategy = types.SelectMostRecent
		}
	}
	strategy = normalizeStrategy(strategy)

	ref, err := ParseReference(opts.Reference, now())
	if err != nil {
		return Target{}, types.UsageError("invalid reference timestamp: %v", err)
	}

	expanded, err := strftime.Format(pattern, ref)
	if err != nil {
		return Target{}, types.UsageError("invalid timestamp pattern %q: %v", pattern, err)
	}

	var glob string
	if isDir {
		glob = filepath.Join(opts.Base, expanded)
	} else {
		glob = opts.Base + expanded
	}

	candidates, err := regularFiles(glob)
	if err != nil {
		return Target{}, types.UsageError("invalid file pattern %q: %v", glob, err)
	}

	log.WithFields(logrus.Fields{
		"glob":       glob,
		"strategy":   strategy,
		"candidates": len(candidates),
	}).Debug("expanded log file pattern")

	if len(candidates) == 0 {
		return literalTarget(glob, true)
	}

	chosen := choose(candidates, strategy)
	abs, err := filepath.Abs(chosen.path)
	if err != nil {
		abs = chosen.path
	}
	return Target{Path: abs, Dynamic: true}, nil
}

func literalTarget(path string, dynamic bool) (Target, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	t := Target{Path: abs, Dynamic: dynamic}
	if _, err := os.Stat(abs); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.ForComponent("selector").WithError(err).Debug("target stat failed")
		}
		t.Missing = true
	}
	return t, nil
}

// regularFiles expands glob and keeps regular files, sorted by name.
func regularFiles(glob string) ([]candidate, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, err
	}

	out := make([]candidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, candidate{path: m, modTime: info.ModTime()})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, nil
}

// choose applies the strategy to a name-sorted, non-empty candidate list.
func choose(candidates []candidate, strategy string) candidate {
	switch strategy {
	case types.SelectFirstMatch:
		return candidates[0]
	case types.SelectMostRecent:
		best := candidates[0]
		for _, c := range candidates[1:] {
			// later sorted position wins ties
			if !c.modTime.Before(best.modTime) {
				best = c
			}
		}
		return best
	default:
		return candidates[len(candidates)-1]
	}
}

func normalizeStrategy(strategy string) string {
	switch strategy {
	case types.SelectMostRecent, types.SelectFirstMatch, types.SelectLastMatch:
		return strategy
	default:
		if strategy != "" {
			logger.ForComponent("selector").Debugf("unsupported selection strategy %q, using %s", strategy, types.SelectLastMatch)
		}
		return types.SelectLastMatch
	}
}

// String describes the target for log lines.
func (t Target) String() string {
	if t.Missing {
		return fmt.Sprintf("%s (missing)", t.Path)
	}
	return t.Path
}
