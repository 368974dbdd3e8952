package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/stacks-batcher/batch"
	"github.com/smartcontractkit/stacks-batcher/catalog"
	"github.com/smartcontractkit/stacks-batcher/input"
	"github.com/smartcontractkit/stacks-batcher/internal/cli/flags"
	"github.com/smartcontractkit/stacks-batcher/internal/cli/text"
	"github.com/smartcontractkit/stacks-batcher/report"
)

var (
	bulkListShort = "List every NFT of a CSV file on the marketplace"

	bulkListLong = text.LongDesc(`
		Creates one marketplace listing per row of a CSV file with the columns
		nft_contract,token_id,price. Prices are in µSTX and must be positive; a row with an
		invalid price fails on its own and the other rows are still listed.
	`)

	bulkListExample = text.Examples(`
		# List the NFTs of listings.csv and keep a JSON report
		stacks-batcher bulk-list listings.csv --out report.json

		# Wait for every listing to confirm and stop at the first failure
		stacks-batcher bulk-list listings.csv --confirm --stop-on-failure
	`)

	transferShort = "Transfer the NFTs of a CSV file"

	transferLong = text.LongDesc(`
		Transfers one NFT per row of a CSV file with the columns nft_contract,token_id,recipient.
		The transfer is made on the SIP-009 contract named by nft_contract.
	`)

	transferExample = text.Examples(`
		stacks-batcher transfer transfers.csv --network testnet
	`)

	runShort = "Run the operations of a plan file"

	runLong = text.LongDesc(`
		Runs the operations listed in a JSON or YAML plan file, in order. Each operation names
		its kind, an optional label and its arguments; run "stacks-batcher kinds" for the
		supported kinds and their arguments.

		Plan files are authored, so a malformed operation fails the whole run before anything
		is submitted.
	`)

	runExample = text.Examples(`
		stacks-batcher run plan.yaml --out report.yaml

		# Resume an interrupted run
		stacks-batcher run plan.yaml --checkpoint batcher.db --run-id 2VxL9yC0fN7s3QXh1b5mJdT0aYk
	`)

	interactShort = "Run the scripted marketplace interaction"

	interactLong = text.LongDesc(`
		Exercises every marketplace contract with a scripted sequence of 52 calls: mints,
		listings, featured listings, offers, auctions, collection verification, whitelists,
		bundles and fee changes. All calls target the contracts of the configured deployer.
	`)

	interactExample = text.Examples(`
		stacks-batcher interact --network testnet --min-delay 1s
	`)
)

// requestSource produces the requests of a batch command.
type requestSource func(rt *runtime, args []string) ([]catalog.Request, error)

func newBulkListCmd(cfg Config) *cobra.Command {
	return newBatchCmd(cfg, &cobra.Command{
		Use:     "bulk-list <file.csv>",
		Short:   bulkListShort,
		Long:    bulkListLong,
		Example: bulkListExample,
		Args:    cobra.ExactArgs(1),
	}, func(_ *runtime, args []string) ([]catalog.Request, error) {
		return input.ReadCSVFile(args[0], input.Listings)
	})
}

func newTransferCmd(cfg Config) *cobra.Command {
	return newBatchCmd(cfg, &cobra.Command{
		Use:     "transfer <file.csv>",
		Short:   transferShort,
		Long:    transferLong,
		Example: transferExample,
		Args:    cobra.ExactArgs(1),
	}, func(_ *runtime, args []string) ([]catalog.Request, error) {
		return input.ReadCSVFile(args[0], input.Transfers)
	})
}

func newRunCmd(cfg Config) *cobra.Command {
	return newBatchCmd(cfg, &cobra.Command{
		Use:     "run <plan.json|plan.yaml>",
		Short:   runShort,
		Long:    runLong,
		Example: runExample,
		Args:    cobra.ExactArgs(1),
	}, func(_ *runtime, args []string) ([]catalog.Request, error) {
		return input.ReadPlan(args[0])
	})
}

func newInteractCmd(cfg Config) *cobra.Command {
	return newBatchCmd(cfg, &cobra.Command{
		Use:     "interact",
		Short:   interactShort,
		Long:    interactLong,
		Example: interactExample,
		Args:    cobra.NoArgs,
	}, func(rt *runtime, _ []string) ([]catalog.Request, error) {
		return input.InteractionPlan(rt.cfg.Tx.ContractAddress), nil
	})
}

// newBatchCmd adds the shared batch flags to cmd and runs the requests of source.
func newBatchCmd(cfg Config, cmd *cobra.Command, source requestSource) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, cfg, args, source)
	}

	flags.Config(cmd)
	flags.Output(cmd, "")
	flags.Batch(cmd)

	return cmd
}

// applyBatchFlags overrides the configured batch settings with the flags that were set.
func applyBatchFlags(cmd *cobra.Command, rt *runtime) {
	f := cmd.Flags()
	if f.Changed("confirm") {
		rt.cfg.Confirm.Enabled = flags.MustBool(f.GetBool("confirm"))
	}
	if f.Changed("stop-on-failure") {
		rt.cfg.Batch.StopOnFirstFailure = flags.MustBool(f.GetBool("stop-on-failure"))
	}
	if f.Changed("min-delay") {
		rt.cfg.Batch.MinDelay = flags.MustDuration(f.GetDuration("min-delay"))
	}
	if f.Changed("checkpoint") {
		rt.cfg.Batch.CheckpointPath = flags.MustString(f.GetString("checkpoint"))
	}
}

// runBatch executes a batch command.
func runBatch(cmd *cobra.Command, cfg Config, args []string, source requestSource) error {
	ctx := cmd.Context()

	// --- Load

	rt, err := setup(cmd, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	applyBatchFlags(cmd, rt)
	if err = rt.validateAccount(); err != nil {
		return err
	}

	reqs, err := source(rt, args)
	if err != nil {
		return fmt.Errorf("failed to read requests: %w", err)
	}
	if len(reqs) == 0 {
		return errors.New("no requests to run")
	}

	// --- Wire

	reg := prometheus.NewRegistry()
	orch, err := rt.orchestrator(reg)
	if err != nil {
		return err
	}

	if addr := flags.MustString(cmd.Flags().GetString("metrics-addr")); addr != "" {
		stop := serveMetrics(addr, reg, rt)
		defer stop()
	}

	// --- Run

	res, err := orch.Run(ctx, reqs, batch.Options{
		RunID:              flags.MustString(cmd.Flags().GetString("run-id")),
		MinDelay:           rt.cfg.Batch.MinDelay,
		Confirm:            rt.cfg.Confirm.Enabled,
		StopOnFirstFailure: rt.cfg.Batch.StopOnFirstFailure,
	})
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	// --- Report

	rep := report.Summarize(res)
	rep.Network = rt.network.Name

	if err = report.WriteText(cmd.OutOrStdout(), rep); err != nil {
		return fmt.Errorf("failed to print report: %w", err)
	}
	if out := flags.MustString(cmd.Flags().GetString("out")); out != "" {
		if err = report.WriteFile(out, rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		rt.lggr.Infow("Report written", "path", out, "reportID", rep.ID)
	}

	return nil
}

// serveMetrics serves reg on addr until the returned function is called.
func serveMetrics(addr string, reg *prometheus.Registry, rt *runtime) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.lggr.Warnw("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
	rt.lggr.Infow("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
