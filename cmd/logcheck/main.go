// Command logcheck scans a growing log file for new lines matching a pattern
// and reports a monitoring plugin verdict (OK, WARNING, CRITICAL, UNKNOWN).
package main

import (
	"os"
)

// Build information, set via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
