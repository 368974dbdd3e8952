// Package flags provides the flags shared by several batcher commands.
//
// Command-specific flags are defined locally in the command file.
package flags

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// MustDuration returns the duration value, ignoring the error.
// Safe to use with registered flags where GetDuration cannot fail.
func MustDuration(d time.Duration, _ error) time.Duration { return d }

// Config adds the --config/-c, --network and --log-level flags used to load the configuration.
//
// Usage:
//
//	flags.Config(cmd)
//	// later in RunE:
//	path, _ := cmd.Flags().GetString("config")
func Config(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "stacks-batcher.yaml", "Config file path, env vars are used when it does not exist")
	cmd.Flags().String("network", "", "Network name, overrides the configured network")
	cmd.Flags().String("log-level", "", "Log level, overrides the configured level")
}

// Output adds the --out/-o flag for the report file path. The report is written as YAML when
// the path ends in .yaml or .yml and as JSON otherwise.
// Also supports the --report alias.
//
// Usage:
//
//	flags.Output(cmd, "")
//	// later in RunE:
//	outPath, _ := cmd.Flags().GetString("out")
func Output(cmd *cobra.Command, defaultValue string) {
	cmd.Flags().StringP("out", "o", defaultValue, "Report file path (.json, .yaml or .yml)")

	existingNormalize := cmd.Flags().GetNormalizeFunc()
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "report" {
			return pflag.NormalizedName("out")
		}
		if existingNormalize != nil {
			return existingNormalize(f, name)
		}

		return pflag.NormalizedName(name)
	})
}

// Batch adds the flags that tune a batch run: --confirm, --stop-on-failure, --min-delay,
// --run-id, --checkpoint and --metrics-addr. Flags that are not set leave the configured
// values untouched.
func Batch(cmd *cobra.Command) {
	cmd.Flags().Bool("confirm", false, "Wait for every submitted transaction to be confirmed")
	cmd.Flags().Bool("stop-on-failure", false, "Skip the remaining requests after the first failure")
	cmd.Flags().Duration("min-delay", 0, "Minimum pause between two submissions (default 2s)")
	cmd.Flags().String("run-id", "", "Run identifier, reuse it with --checkpoint to resume a run")
	cmd.Flags().String("checkpoint", "", "SQLite checkpoint file used to resume interrupted runs")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while the batch runs")
}
