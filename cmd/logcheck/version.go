package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(stdout io.Writer, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(stdout, "logcheck %s\n", Version)
			fmt.Fprintf(stdout, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(stdout, "  Built: %s\n", BuildTime)
			fmt.Fprintf(stdout, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(stdout, "  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			*exitCode = 0
			return nil
		},
	}
}
