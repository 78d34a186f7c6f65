package main

import (
	"github.com/spf13/cobra"

	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/types"
	"github.com/supporttools/logcheck/pkg/util"
)

// checkOptions holds the raw flag values of a check.
type checkOptions struct {
	configFile string

	logTarget   string
	patternGlob string
	fileSelect  string
	seekKey     string
	scratchDir  string
	timestamp   string

	pattern         string
	patternFile     string
	ignore          string
	ignoreFile      string
	caseInsensitive bool

	warning      string
	critical     string
	noGrowthWarn bool
	noGrowthCrit bool

	classifier        string
	classifierFile    string
	classifierTimeout string

	outputAll      bool
	context        string
	stopFirstMatch bool
	alwaysOK       bool
	missingOK      bool
	missingMessage string
	timeout        string

	logLevel    string
	logFormat   string
	logFile     string
	metricsFile string
}

func addCheckFlags(cmd *cobra.Command, o *checkOptions) {
	f := cmd.Flags()
	f.SortFlags = false

	f.StringVar(&o.configFile, "config", "", "check configuration file (.yaml, .yml, .json or .toml); flags override it")

	f.StringVarP(&o.logTarget, "log", "l", "", "log file, directory, or path prefix for --pattern-glob")
	f.StringVar(&o.patternGlob, "pattern-glob", "", "glob appended to --log, may contain strftime placeholders such as %Y%m%d")
	f.StringVar(&o.fileSelect, "select", "", "file selection among glob matches: most_recent, first_match or last_match")
	f.StringVarP(&o.seekKey, "seek", "s", "", "seek file, directory for seek files, or /dev/null to always scan from the start")
	f.StringVar(&o.scratchDir, "scratch-dir", "", "directory for derived seek files (default: system temp dir)")
	f.StringVar(&o.timestamp, "timestamp", "", `reference time for placeholders: "now", epoch seconds, or "N units ago"`)

	f.StringVarP(&o.pattern, "pattern", "p", "", "regular expression selecting lines of interest")
	f.StringVarP(&o.patternFile, "pattern-file", "P", "", "file with one match expression per line (wins over --pattern)")
	f.StringVarP(&o.ignore, "ignore", "n", "", "regular expression excluding otherwise matching lines")
	f.StringVarP(&o.ignoreFile, "ignore-file", "f", "", "file with one ignore expression per line (wins over --ignore)")
	f.BoolVarP(&o.caseInsensitive, "case-insensitive", "i", false, "match and ignore case-insensitively")

	f.StringVarP(&o.warning, "warning", "w", "", `warning threshold, a count ("3") or a percentage ("40%") (default 1)`)
	f.StringVarP(&o.critical, "critical", "c", "", "critical threshold, a count or a percentage (default disabled)")
	f.BoolVar(&o.noGrowthWarn, "no-growth-warn", false, "WARNING when the log has not grown since the last run")
	f.BoolVar(&o.noGrowthCrit, "no-growth-crit", false, "CRITICAL when the log has not grown since the last run")

	f.StringVarP(&o.classifier, "classifier", "e", "", "inline classifier expression; named groups 'output' and 'metric' override the report")
	f.StringVarP(&o.classifierFile, "classifier-file", "E", "", "absolute path of an external classifier program (wins over --classifier)")
	f.StringVar(&o.classifierTimeout, "classifier-timeout", "", "timeout for one external classifier call (default 10s)")

	f.BoolVarP(&o.outputAll, "all", "a", false, "report every matching line instead of the last one")
	f.StringVarP(&o.context, "context", "C", "", `context lines around each match: "N", "-N" (before) or "+N" (after)`)
	f.BoolVarP(&o.stopFirstMatch, "stop-first-match", "1", false, "stop reading at the first match")
	f.BoolVar(&o.alwaysOK, "always-ok", false, "always report OK but keep counts and text")
	f.BoolVar(&o.missingOK, "missing-ok", false, "report OK when the log file does not exist")
	f.StringVarP(&o.missingMessage, "missing-message", "m", "", "message used with --missing-ok")
	f.StringVarP(&o.timeout, "timeout", "t", "", "execution budget in seconds or as a duration, 0 disables (default 30s)")

	f.StringVar(&o.logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error (default warn)")
	f.StringVar(&o.logFormat, "log-format", "", "diagnostic log format: text or json")
	f.StringVar(&o.logFile, "log-file", "", "write diagnostics to this file instead of stderr")
	f.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after each check")
}

func loadBaseConfig(path string) (*types.CheckConfig, error) {
	if path == "" {
		return &types.CheckConfig{}, nil
	}
	cfg, err := util.ReadConfig(path)
	if err != nil {
		return nil, types.UsageError("%v", err)
	}
	return cfg, nil
}

// applyFlagOverrides copies every flag set on the command line into cfg.
func applyFlagOverrides(cmd *cobra.Command, o *checkOptions, cfg *types.CheckConfig) error {
	changed := cmd.Flags().Changed
	log := logger.ForComponent("cli")

	setString := func(flag string, dst *string, value string) {
		if changed(flag) {
			if *dst != "" {
				log.Debugf("flag --%s overrides config value %q", flag, *dst)
			}
			*dst = value
		}
	}
	setBool := func(flag string, dst *bool, value bool) {
		if changed(flag) {
			*dst = value
		}
	}

	setString("log", &cfg.LogTarget, o.logTarget)
	setString("pattern-glob", &cfg.LogFilePattern, o.patternGlob)
	setString("select", &cfg.FileSelect, o.fileSelect)
	setString("seek", &cfg.SeekKey, o.seekKey)
	setString("scratch-dir", &cfg.ScratchDir, o.scratchDir)
	setString("timestamp", &cfg.ReferenceTimestamp, o.timestamp)

	setString("pattern", &cfg.MatchPattern, o.pattern)
	setString("pattern-file", &cfg.MatchPatternFile, o.patternFile)
	setString("ignore", &cfg.IgnorePattern, o.ignore)
	setString("ignore-file", &cfg.IgnorePatternFile, o.ignoreFile)
	setBool("case-insensitive", &cfg.CaseInsensitive, o.caseInsensitive)

	if changed("warning") {
		t, err := types.ParseThreshold(o.warning)
		if err != nil {
			return types.UsageError("invalid --warning: %v", err)
		}
		cfg.Warning = t
	}
	if changed("critical") {
		t, err := types.ParseThreshold(o.critical)
		if err != nil {
			return types.UsageError("invalid --critical: %v", err)
		}
		cfg.Critical = t
	}
	setBool("no-growth-warn", &cfg.NoGrowthWarn, o.noGrowthWarn)
	setBool("no-growth-crit", &cfg.NoGrowthCrit, o.noGrowthCrit)

	setString("classifier", &cfg.ClassifierCode, o.classifier)
	setString("classifier-file", &cfg.ClassifierFile, o.classifierFile)
	setString("classifier-timeout", &cfg.ClassifierTimeoutString, o.classifierTimeout)

	setBool("all", &cfg.OutputAll, o.outputAll)
	setString("context", &cfg.ContextSpec, o.context)
	setBool("stop-first-match", &cfg.StopFirstMatch, o.stopFirstMatch)
	setBool("always-ok", &cfg.AlwaysOK, o.alwaysOK)
	setBool("missing-ok", &cfg.MissingOK, o.missingOK)
	setString("missing-message", &cfg.MissingMessage, o.missingMessage)
	setString("timeout", &cfg.TimeoutString, o.timeout)

	setString("log-level", &cfg.Settings.LogLevel, o.logLevel)
	setString("log-format", &cfg.Settings.LogFormat, o.logFormat)
	if changed("log-file") {
		cfg.Settings.LogFile = o.logFile
		cfg.Settings.LogOutput = "file"
	}
	setString("metrics-file", &cfg.Settings.MetricsFile, o.metricsFile)

	return nil
}
