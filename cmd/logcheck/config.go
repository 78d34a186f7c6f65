package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/supporttools/logcheck/pkg/types"
	"github.com/supporttools/logcheck/pkg/util"
)

// newConfigCmd prints the effective configuration after flags and defaults,
// in the requested format. It validates without touching any log file.
func newConfigCmd(stdout io.Writer, exitCode *int) *cobra.Command {
	opts := &checkOptions{}
	format := string(util.FormatYAML)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective check configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				*exitCode = printFault(stdout, err)
				return nil
			}

			data, err := util.MarshalConfig(cfg, util.Format(format))
			if err != nil {
				return err
			}
			if _, err := stdout.Write(data); err != nil {
				return err
			}
			*exitCode = int(types.VerdictOK)
			return nil
		},
	}

	addCheckFlags(configCmd, opts)
	configCmd.Flags().StringVar(&format, "format", format, "output format: yaml, json or toml")
	return configCmd
}
