package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/supporttools/logcheck/pkg/check"
	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/metrics"
	"github.com/supporttools/logcheck/pkg/types"
	"github.com/supporttools/logcheck/pkg/verdict"
)

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	exitCode := int(types.VerdictUnknown)
	root := newRootCmd(stdout, stderr, &exitCode)
	root.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stdout, verdict.Line{Verdict: types.VerdictUnknown, Summary: err.Error()}.String())
		logger.Close()
		return int(types.VerdictUnknown)
	}
	logger.Close()
	return exitCode
}

func newRootCmd(stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	opts := &checkOptions{}

	rootCmd := &cobra.Command{
		Use:   "logcheck",
		Short: "Incremental log pattern check for monitoring hosts",
		Long: "logcheck reads the lines appended to a log file since its previous run,\n" +
			"counts the ones matching a pattern and prints one monitoring plugin line.\n" +
			"Exit codes: 0 OK, 1 WARNING, 2 CRITICAL, 3 UNKNOWN.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = runCheck(cmd, opts, stdout)
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	addCheckFlags(rootCmd, opts)

	checkOpts := &checkOptions{}
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check (same as running logcheck without a subcommand)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = runCheck(cmd, checkOpts, stdout)
			return nil
		},
	}
	addCheckFlags(checkCmd, checkOpts)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(newWatchCmd(stdout, exitCode))
	rootCmd.AddCommand(newConfigCmd(stdout, exitCode))
	rootCmd.AddCommand(newVersionCmd(stdout, exitCode))

	return rootCmd
}

// runCheck performs one check and prints its line. Every failure is folded
// into an UNKNOWN or CRITICAL line so the monitoring host always gets one.
func runCheck(cmd *cobra.Command, opts *checkOptions, stdout io.Writer) int {
	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return printFault(stdout, err)
	}

	var runnerOpts []check.Option
	var m *metrics.Metrics
	registry := metrics.NewRegistry(false)
	if cfg.Settings.MetricsFile != "" {
		m = metrics.NewMetrics(cfg.Settings.MetricsNamespace, nil)
		if err := m.Register(registry); err != nil {
			return printFault(stdout, err)
		}
		m.SetBuildInfo(Version, GitCommit)
		runnerOpts = append(runnerOpts, check.WithMetrics(m))
	}

	out := check.NewRunner(runnerOpts...).Run(cmd.Context(), cfg)
	fmt.Fprintln(stdout, out.String())

	if m != nil {
		if err := metrics.WriteTextfile(cfg.Settings.MetricsFile, registry); err != nil {
			logger.WithError(err).Warn("metrics not written")
		}
	}
	return out.ExitCode()
}

// buildConfig layers flags over the optional config file, applies defaults
// and sets up logging.
func buildConfig(cmd *cobra.Command, opts *checkOptions) (*types.CheckConfig, error) {
	cfg, err := loadBaseConfig(opts.configFile)
	if err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cmd, opts, cfg); err != nil {
		return nil, err
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, types.UsageError("%v", err)
	}

	if err := cfg.Settings.Validate(); err != nil {
		return nil, types.UsageError("%v", err)
	}
	if err := logger.Initialize(cfg.Settings.LogLevel, cfg.Settings.LogFormat, cfg.Settings.LogOutput, cfg.Settings.LogFile); err != nil {
		return nil, types.UsageError("%v", err)
	}
	return cfg, nil
}

func printFault(stdout io.Writer, err error) int {
	v := types.VerdictUnknown
	var ce *types.CheckError
	if errors.As(err, &ce) {
		v = ce.Verdict()
	}
	fmt.Fprintln(stdout, verdict.Line{Verdict: v, Summary: err.Error()}.String())
	return v.ExitCode()
}
