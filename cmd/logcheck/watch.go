package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/supporttools/logcheck/pkg/check"
	"github.com/supporttools/logcheck/pkg/health"
	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/metrics"
	"github.com/supporttools/logcheck/pkg/types"
	"github.com/supporttools/logcheck/pkg/watch"
)

type watchOptions struct {
	checkOptions
	listen   string
	debounce time.Duration
	interval time.Duration
}

// newWatchCmd creates the watch subcommand.
//
//	logcheck watch -l /var/log/app.log -p ERROR --listen :9807
func newWatchCmd(stdout io.Writer, exitCode *int) *cobra.Command {
	opts := &watchOptions{
		debounce: 500 * time.Millisecond,
		interval: time.Minute,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the check whenever the log changes, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, &opts.checkOptions)
			if err != nil {
				*exitCode = printFault(stdout, err)
				return nil
			}
			if err := cfg.Validate(); err != nil {
				*exitCode = printFault(stdout, err)
				return nil
			}

			if err := runWatch(cmd, cfg, opts, stdout); err != nil {
				return err
			}
			*exitCode = int(types.VerdictOK)
			return nil
		},
	}

	addCheckFlags(watchCmd, &opts.checkOptions)
	watchCmd.Flags().StringVar(&opts.listen, "listen", "", "serve /healthz, /ready, /status and /metrics on this address, e.g. :9807")
	watchCmd.Flags().DurationVar(&opts.debounce, "debounce", opts.debounce, "quiet period after a change before checking")
	watchCmd.Flags().DurationVar(&opts.interval, "interval", opts.interval, "check at least this often, 0 disables")

	return watchCmd
}

func runWatch(cmd *cobra.Command, cfg *types.CheckConfig, opts *watchOptions, stdout io.Writer) error {
	ctx := cmd.Context()
	log := logger.ForComponent("cli")

	registry := metrics.NewRegistry(true)
	m := metrics.NewMetrics(cfg.Settings.MetricsNamespace, nil)
	if err := m.Register(registry); err != nil {
		return err
	}
	m.SetBuildInfo(Version, GitCommit)

	var server *health.Server
	if opts.listen != "" {
		var err error
		server, err = health.NewServer(&health.Config{
			ListenAddress:  opts.listen,
			MetricsHandler: metrics.Handler(registry),
			Version:        Version,
		})
		if err != nil {
			return err
		}
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := server.Stop(); err != nil {
				log.WithError(err).Warn("health server did not stop cleanly")
			}
		}()
	}

	loop := watch.NewLoop(cfg, check.NewRunner(check.WithMetrics(m)), watch.Options{
		Debounce: opts.debounce,
		Interval: opts.interval,
		Out:      stdout,
		OnOutcome: func(out check.Outcome) {
			if server != nil {
				server.UpdateOutcome(out)
			}
			if cfg.Settings.MetricsFile != "" {
				if err := metrics.WriteTextfile(cfg.Settings.MetricsFile, registry); err != nil {
					log.WithError(err).Warn("metrics not written")
				}
			}
		},
	})

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
