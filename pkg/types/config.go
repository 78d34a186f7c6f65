package types

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Package-level defaults
const (
	DefaultLogLevel          = "warn"
	DefaultLogFormat         = "text"
	DefaultLogOutput         = "stderr"
	DefaultMetricsNamespace  = "logcheck"
	DefaultTimeout           = "30s"
	DefaultClassifierTimeout = "10s"
	DefaultMissingMessage    = "No log file found"
	DefaultWarning           = 1
	DefaultSeekSuffix        = ".seek"

	// NullSeekKey discards offsets: every run scans from the start.
	NullSeekKey = os.DevNull
)

// File selection strategies.
const (
	SelectMostRecent = "most_recent"
	SelectFirstMatch = "first_match"
	SelectLastMatch  = "last_match"
)

var (
	validLogLevels = map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	validLogFormats = map[string]bool{
		"json": true,
		"text": true,
	}

	validLogOutputs = map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}
)

// CheckConfig is the full configuration of one log check.
type CheckConfig struct {
	// Target selection
	LogTarget          string `json:"logTarget" yaml:"logTarget" toml:"logTarget"`
	LogFilePattern     string `json:"logFilePattern,omitempty" yaml:"logFilePattern,omitempty" toml:"logFilePattern,omitempty"`
	FileSelect         string `json:"fileSelect,omitempty" yaml:"fileSelect,omitempty" toml:"fileSelect,omitempty"`
	ReferenceTimestamp string `json:"referenceTimestamp,omitempty" yaml:"referenceTimestamp,omitempty" toml:"referenceTimestamp,omitempty"`

	// Seek state
	SeekKey    string `json:"seekKey,omitempty" yaml:"seekKey,omitempty" toml:"seekKey,omitempty"`
	ScratchDir string `json:"scratchDir,omitempty" yaml:"scratchDir,omitempty" toml:"scratchDir,omitempty"`

	// Matching
	MatchPattern      string `json:"matchPattern,omitempty" yaml:"matchPattern,omitempty" toml:"matchPattern,omitempty"`
	MatchPatternFile  string `json:"matchPatternFile,omitempty" yaml:"matchPatternFile,omitempty" toml:"matchPatternFile,omitempty"`
	IgnorePattern     string `json:"ignorePattern,omitempty" yaml:"ignorePattern,omitempty" toml:"ignorePattern,omitempty"`
	IgnorePatternFile string `json:"ignorePatternFile,omitempty" yaml:"ignorePatternFile,omitempty" toml:"ignorePatternFile,omitempty"`
	CaseInsensitive   bool   `json:"caseInsensitive,omitempty" yaml:"caseInsensitive,omitempty" toml:"caseInsensitive,omitempty"`

	// Thresholds
	Warning      Threshold `json:"warning,omitempty" yaml:"warning,omitempty" toml:"warning,omitempty"`
	Critical     Threshold `json:"critical,omitempty" yaml:"critical,omitempty" toml:"critical,omitempty"`
	NoGrowthWarn bool      `json:"noGrowthWarn,omitempty" yaml:"noGrowthWarn,omitempty" toml:"noGrowthWarn,omitempty"`
	NoGrowthCrit bool      `json:"noGrowthCrit,omitempty" yaml:"noGrowthCrit,omitempty" toml:"noGrowthCrit,omitempty"`

	// Classifier
	ClassifierCode          string        `json:"classifierCode,omitempty" yaml:"classifierCode,omitempty" toml:"classifierCode,omitempty"`
	ClassifierFile          string        `json:"classifierFile,omitempty" yaml:"classifierFile,omitempty" toml:"classifierFile,omitempty"`
	ClassifierTimeoutString string        `json:"classifierTimeout,omitempty" yaml:"classifierTimeout,omitempty" toml:"classifierTimeout,omitempty"`
	ClassifierTimeout       time.Duration `json:"-" yaml:"-" toml:"-"`

	// Output
	OutputAll      bool   `json:"outputAll,omitempty" yaml:"outputAll,omitempty" toml:"outputAll,omitempty"`
	ContextSpec    string `json:"context,omitempty" yaml:"context,omitempty" toml:"context,omitempty"`
	StopFirstMatch bool   `json:"stopFirstMatch,omitempty" yaml:"stopFirstMatch,omitempty" toml:"stopFirstMatch,omitempty"`
	AlwaysOK       bool   `json:"alwaysOK,omitempty" yaml:"alwaysOK,omitempty" toml:"alwaysOK,omitempty"`
	MissingOK      bool   `json:"missingOK,omitempty" yaml:"missingOK,omitempty" toml:"missingOK,omitempty"`
	MissingMessage string `json:"missingMessage,omitempty" yaml:"missingMessage,omitempty" toml:"missingMessage,omitempty"`

	// Global execution budget; "0" disables it.
	TimeoutString string        `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Timeout       time.Duration `json:"-" yaml:"-" toml:"-"`

	// Parsed context spec
	Context ContextSpec `json:"-" yaml:"-" toml:"-"`

	// Settings holds ambient logging and metrics configuration.
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty" toml:"settings,omitempty"`
}

// Settings contains logging and metrics configuration.
type Settings struct {
	LogLevel         string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" toml:"logLevel,omitempty"`
	LogFormat        string `json:"logFormat,omitempty" yaml:"logFormat,omitempty" toml:"logFormat,omitempty"`
	LogOutput        string `json:"logOutput,omitempty" yaml:"logOutput,omitempty" toml:"logOutput,omitempty"`
	LogFile          string `json:"logFile,omitempty" yaml:"logFile,omitempty" toml:"logFile,omitempty"`
	MetricsFile      string `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty" toml:"metricsFile,omitempty"`
	MetricsNamespace string `json:"metricsNamespace,omitempty" yaml:"metricsNamespace,omitempty" toml:"metricsNamespace,omitempty"`
}

// ContextSpec is the number of look-back and look-ahead lines reported
// around each match.
type ContextSpec struct {
	Before int
	After  int
}

// ParseContextSpec parses "N" (both sides), "-N" (before only) or "+N"
// (after only). An empty string means no context.
func ParseContextSpec(s string) (ContextSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ContextSpec{}, nil
	}

	sign := byte(0)
	if s[0] == '-' || s[0] == '+' {
		sign = s[0]
		s = s[1:]
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return ContextSpec{}, fmt.Errorf("invalid context %q: %w", s, err)
	}
	if n < 0 {
		return ContextSpec{}, fmt.Errorf("context must not be negative, got %d", n)
	}

	switch sign {
	case '-':
		return ContextSpec{Before: n}, nil
	case '+':
		return ContextSpec{After: n}, nil
	default:
		return ContextSpec{Before: n, After: n}, nil
	}
}

// ParseTimeout accepts a Go duration ("15s", "2m") or a bare number of seconds.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("timeout must not be negative, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative, got %v", d)
	}
	return d, nil
}

// ClassifierConfigured reports whether a classifier is requested.
func (c *CheckConfig) ClassifierConfigured() bool {
	return c.ClassifierCode != "" || c.ClassifierFile != ""
}

// HasMatchCriterion reports whether the check has something to look for.
func (c *CheckConfig) HasMatchCriterion() bool {
	return c.MatchPattern != "" || c.MatchPatternFile != "" || c.NoGrowthWarn || c.NoGrowthCrit
}

// DynamicFilename reports whether the target name is produced from a pattern.
func (c *CheckConfig) DynamicFilename() bool {
	return c.LogFilePattern != ""
}

// ApplyDefaults applies default values to the configuration.
func (c *CheckConfig) ApplyDefaults() error {
	if err := c.Settings.ApplyDefaults(); err != nil {
		return fmt.Errorf("failed to apply defaults to settings: %w", err)
	}

	if !c.Warning.Set {
		c.Warning = Threshold{Value: DefaultWarning, Set: true}
	}
	if c.MissingMessage == "" {
		c.MissingMessage = DefaultMissingMessage
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}

	if c.TimeoutString == "" {
		c.TimeoutString = DefaultTimeout
	}
	if c.ClassifierTimeoutString == "" {
		c.ClassifierTimeoutString = DefaultClassifierTimeout
	}

	var err error
	c.Timeout, err = ParseTimeout(c.TimeoutString)
	if err != nil {
		return err
	}
	c.ClassifierTimeout, err = ParseTimeout(c.ClassifierTimeoutString)
	if err != nil {
		return fmt.Errorf("invalid classifierTimeout: %w", err)
	}

	c.Context, err = ParseContextSpec(c.ContextSpec)
	if err != nil {
		return err
	}

	return nil
}

// ApplyDefaults applies default values to Settings.
func (s *Settings) ApplyDefaults() error {
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.LogFormat == "" {
		s.LogFormat = DefaultLogFormat
	}
	if s.LogOutput == "" {
		s.LogOutput = DefaultLogOutput
	}
	if s.MetricsNamespace == "" {
		s.MetricsNamespace = DefaultMetricsNamespace
	}
	return nil
}

// Validate validates the configuration. Failures are usage faults.
func (c *CheckConfig) Validate() error {
	if strings.TrimSpace(c.LogTarget) == "" {
		return UsageError("no log target given")
	}
	if !c.HasMatchCriterion() {
		return UsageError("no match pattern, pattern file or no-growth check given")
	}
	if c.DynamicFilename() && c.SeekKey == "" {
		return UsageError("a fixed seek key is required when the log filename uses a pattern")
	}
	if c.ClassifierTimeout <= 0 {
		return UsageError("classifierTimeout must be positive, got %v", c.ClassifierTimeout)
	}

	if err := c.Settings.Validate(); err != nil {
		return &CheckError{Kind: ErrUsage, Err: fmt.Errorf("settings validation failed: %w", err)}
	}

	return nil
}

// Validate validates the Settings configuration.
func (s *Settings) Validate() error {
	if !validLogLevels[s.LogLevel] {
		return fmt.Errorf("invalid logLevel %q, must be one of: debug, info, warn, error, fatal", s.LogLevel)
	}
	if !validLogFormats[s.LogFormat] {
		return fmt.Errorf("invalid logFormat %q, must be one of: json, text", s.LogFormat)
	}
	if !validLogOutputs[s.LogOutput] {
		return fmt.Errorf("invalid logOutput %q, must be one of: stdout, stderr, file", s.LogOutput)
	}
	if s.LogOutput == "file" && s.LogFile == "" {
		return fmt.Errorf("logFile is required when logOutput is 'file'")
	}
	return nil
}

// SubstituteEnvVars expands ${VAR} references in path-like fields.
func (c *CheckConfig) SubstituteEnvVars() {
	c.LogTarget = os.ExpandEnv(c.LogTarget)
	c.SeekKey = os.ExpandEnv(c.SeekKey)
	c.ScratchDir = os.ExpandEnv(c.ScratchDir)
	c.MatchPatternFile = os.ExpandEnv(c.MatchPatternFile)
	c.IgnorePatternFile = os.ExpandEnv(c.IgnorePatternFile)
	c.ClassifierFile = os.ExpandEnv(c.ClassifierFile)
	c.Settings.LogFile = os.ExpandEnv(c.Settings.LogFile)
	c.Settings.MetricsFile = os.ExpandEnv(c.Settings.MetricsFile)
}
