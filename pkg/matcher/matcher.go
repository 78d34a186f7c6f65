// Package matcher decides which log lines count as matches: a line matches
// when it hits the match expression and none of the ignore expressions.
package matcher

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/types"
)

const (
	// maxRegexLength caps a single expression.
	maxRegexLength = 1000

	// maxPatternFileLines caps the number of expressions read from a file.
	maxPatternFileLines = 500
)

// nestedQuantifiers detects constructs like (a+)+ or (.*)* in an expression.
var nestedQuantifiers = []*regexp.Regexp{
	regexp.MustCompile(`\(\.\*\)[+*]`),
	regexp.MustCompile(`\(\.\+\)[+*]`),
	regexp.MustCompile(`\([^)]*[+*]\)[+*]`),
	regexp.MustCompile(`\([^)]*[+*]\)\{\d+,\d*\}`),
}

// Options selects the match and ignore sources. A file source always wins
// over the inline expression of the same family.
type Options struct {
	Match           string
	MatchFile       string
	Ignore          string
	IgnoreFile      string
	CaseInsensitive bool
}

// Matcher holds the compiled expressions for one run.
type Matcher struct {
	match  *regexp.Regexp
	ignore *regexp.Regexp
}

// New loads and compiles the configured expressions. A matcher without a
// match expression matches nothing, which is what a pure no-growth check
// wants. Bad or unsafe expressions are usage faults.
func New(opts Options) (*Matcher, error) {
	log := logger.ForComponent("matcher")

	matchExprs, err := source("match", opts.Match, opts.MatchFile)
	if err != nil {
		return nil, err
	}
	ignoreExprs, err := source("ignore", opts.Ignore, opts.IgnoreFile)
	if err != nil {
		return nil, err
	}

	m := &Matcher{}
	if m.match, err = compile(matchExprs, opts.CaseInsensitive); err != nil {
		return nil, types.UsageError("invalid match pattern: %v", err)
	}
	if m.ignore, err = compile(ignoreExprs, opts.CaseInsensitive); err != nil {
		return nil, types.UsageError("invalid ignore pattern: %v", err)
	}

	log.Debugf("compiled %d match and %d ignore expressions", len(matchExprs), len(ignoreExprs))
	return m, nil
}

// Matches reports whether line is a match that is not ignored.
func (m *Matcher) Matches(line string) bool {
	if m.match == nil || !m.match.MatchString(line) {
		return false
	}
	if m.ignore != nil && m.ignore.MatchString(line) {
		return false
	}
	return true
}

// String shows the combined match expression.
func (m *Matcher) String() string {
	if m.match == nil {
		return ""
	}
	return m.match.String()
}

func source(family, inline, file string) ([]string, error) {
	if file != "" {
		if inline != "" {
			logger.ForComponent("matcher").Debugf("both inline and file %s patterns given, using %s", family, file)
		}
		exprs, err := LoadPatternFile(file)
		if err != nil {
			return nil, types.UsageError("failed to load %s pattern file: %v", family, err)
		}
		return exprs, nil
	}
	if inline != "" {
		return []string{inline}, nil
	}
	return nil, nil
}

// LoadPatternFile reads one expression per line. Blank lines and lines
// starting with '#' are skipped.
func LoadPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var exprs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		exprs = append(exprs, line)
		if len(exprs) > maxPatternFileLines {
			return nil, fmt.Errorf("%s holds more than %d patterns", path, maxPatternFileLines)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(exprs) == 0 {
		return nil, fmt.Errorf("%s holds no patterns", path)
	}
	return exprs, nil
}

// compile OR-combines exprs into one expression.
func compile(exprs []string, caseInsensitive bool) (*regexp.Regexp, error) {
	if len(exprs) == 0 {
		return nil, nil
	}

	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if err := ValidateSafety(e); err != nil {
			return nil, fmt.Errorf("%q: %w", e, err)
		}
		if _, err := regexp.Compile(e); err != nil {
			return nil, err
		}
		parts = append(parts, "(?:"+e+")")
	}

	combined := strings.Join(parts, "|")
	if caseInsensitive {
		combined = "(?i)" + combined
	}
	return regexp.Compile(combined)
}

// ValidateSafety rejects expressions that are too long or that nest
// quantifiers, which would cost a backtracking engine dearly and usually
// point at a mistake.
func ValidateSafety(expr string) error {
	if len(expr) > maxRegexLength {
		return fmt.Errorf("pattern exceeds maximum length of %d characters", maxRegexLength)
	}
	for _, dangerous := range nestedQuantifiers {
		if dangerous.MatchString(expr) {
			return fmt.Errorf("pattern contains nested quantifiers")
		}
	}
	return nil
}
