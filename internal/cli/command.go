// Package cli provides the stacks-batcher commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/stacks-batcher/internal/cli/text"
	"github.com/smartcontractkit/stacks-batcher/pkg/logger"
)

var (
	rootShort = "Submit ordered batches of marketplace transactions to Stacks"

	rootLong = text.LongDesc(`
		Submits ordered batches of NFT marketplace contract calls from one Stacks account.

		Every request is validated, assigned the next account nonce, signed and broadcast in
		input order. Network errors are retried, nonce conflicts resync the nonce once, and
		rejected requests are recorded without stopping the batch. Each run prints a report
		and can persist it with --out.

		Configuration is read from the --config file and environment variables such as
		PRIVATE_KEY, SENDER_ADDRESS, CONTRACT_ADDRESS and NETWORK.
	`)
)

// Config holds the configuration of the root command.
type Config struct {
	// Logger is the logger used by every command. Optional: when nil a logger is built from the
	// configured log level.
	Logger logger.Logger

	// Deps holds optional dependencies that can be overridden.
	// If fields are nil, production defaults are used.
	Deps Deps
}

// deps returns the Deps with defaults applied.
func (c *Config) deps() *Deps {
	c.Deps.applyDefaults()

	return &c.Deps
}

// NewCommand creates the root command with all subcommands.
func NewCommand(cfg Config) *cobra.Command {
	cfg.deps()

	cmd := &cobra.Command{
		Use:           "stacks-batcher",
		Short:         rootShort,
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newBulkListCmd(cfg))
	cmd.AddCommand(newTransferCmd(cfg))
	cmd.AddCommand(newRunCmd(cfg))
	cmd.AddCommand(newInteractCmd(cfg))
	cmd.AddCommand(newCallCmd(cfg))
	cmd.AddCommand(newStatusCmd(cfg))
	cmd.AddCommand(newReportCmd(cfg))
	cmd.AddCommand(newKindsCmd(cfg))

	return cmd
}
