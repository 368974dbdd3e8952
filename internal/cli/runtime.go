package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/smartcontractkit/stacks-batcher/batch"
	"github.com/smartcontractkit/stacks-batcher/broadcast"
	"github.com/smartcontractkit/stacks-batcher/catalog"
	"github.com/smartcontractkit/stacks-batcher/config"
	"github.com/smartcontractkit/stacks-batcher/config/network"
	"github.com/smartcontractkit/stacks-batcher/confirm"
	"github.com/smartcontractkit/stacks-batcher/internal/cli/flags"
	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/metrics"
	"github.com/smartcontractkit/stacks-batcher/pkg/logger"
	"github.com/smartcontractkit/stacks-batcher/txbuilder"
)

// runtime holds the configuration and clients shared by the steps of one command.
type runtime struct {
	cfg     *config.Config
	network network.Network
	lggr    logger.Logger
	ledger  ledger.Client
	deps    *Deps
	closers []io.Closer
}

// setup loads the configuration, applying the --network and --log-level overrides, and
// connects to the ledger of the selected network.
func setup(cmd *cobra.Command, c Config) (*runtime, error) {
	deps := c.deps()

	cfg, err := deps.ConfigLoader(flags.MustString(cmd.Flags().GetString("config")))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if v := flags.MustString(cmd.Flags().GetString("network")); v != "" {
		cfg.Network = v
	}
	if v := flags.MustString(cmd.Flags().GetString("log-level")); v != "" {
		cfg.LogLevel = v
	}

	lggr := c.Logger
	if lggr == nil {
		lvl, lerr := logger.ParseLevel(cfg.LogLevel)
		if lerr != nil {
			return nil, fmt.Errorf("invalid log level: %w", lerr)
		}
		lcfg := logger.Config{Level: lvl}
		if lggr, err = lcfg.New(); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	networks, err := deps.NetworkLoader(cfg.NetworksFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load networks: %w", err)
	}
	n, err := networks.NetworkByName(cfg.Network)
	if err != nil {
		return nil, err
	}

	client, err := deps.LedgerFactory(n, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger client: %w", err)
	}

	return &runtime{
		cfg:     cfg,
		network: n,
		lggr:    lggr.With("network", n.Name),
		ledger:  client,
		deps:    deps,
	}, nil
}

// close releases every resource opened by the runtime.
func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.lggr.Warnw("Failed to release resource", "error", err)
		}
	}
	_ = r.lggr.Sync()
}

// validateAccount checks the fields needed to sign and submit.
func (r *runtime) validateAccount() error {
	if err := r.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var errs []error
	if !r.network.MatchesAddress(r.cfg.Account.Address) {
		errs = append(errs, fmt.Errorf("account %s is not a %s address", r.cfg.Account.Address, r.network.Type))
	}
	if !r.network.MatchesAddress(r.cfg.Tx.ContractAddress) {
		errs = append(errs, fmt.Errorf("contract address %s is not a %s address", r.cfg.Tx.ContractAddress, r.network.Type))
	}

	return errors.Join(errs...)
}

func (r *runtime) builder() (*txbuilder.Builder, error) {
	return txbuilder.New(catalog.Default(), txbuilder.Config{
		ContractAddress:   r.cfg.Tx.ContractAddress,
		Sender:            r.cfg.Account.Address,
		Fee:               r.cfg.Tx.Fee,
		PostConditionMode: txbuilder.PostConditionMode(strings.ToLower(r.cfg.Tx.PostConditionMode)),
	})
}

func (r *runtime) tracker() (*confirm.Tracker, error) {
	return confirm.New(r.ledger, r.cfg.PollPolicy(), r.lggr)
}

// orchestrator wires the batch pipeline for the configured account. Metrics are registered on
// reg when it is not nil.
func (r *runtime) orchestrator(reg prometheus.Registerer) (*batch.Orchestrator, error) {
	b, err := r.builder()
	if err != nil {
		return nil, err
	}

	s, err := r.deps.SignerFactory(r.cfg)
	if err != nil {
		return nil, err
	}
	bc, err := broadcast.New(r.ledger, s, r.cfg.RetryPolicy(), r.lggr)
	if err != nil {
		return nil, err
	}

	deps := batch.Deps{
		Builder:   b,
		Submitter: bc,
		Ledger:    r.ledger,
		Account:   r.cfg.Account.Address,
		Logger:    r.lggr,
	}

	if r.cfg.Confirm.Enabled {
		t, terr := r.tracker()
		if terr != nil {
			return nil, terr
		}
		deps.Poller = t
	}

	locker, closer, err := r.deps.LockerFactory(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create account lock: %w", err)
	}
	r.closers = append(r.closers, closer)
	deps.Locker = locker

	if path := r.cfg.Batch.CheckpointPath; path != "" {
		store, sc, serr := r.deps.CheckpointOpener(path)
		if serr != nil {
			return nil, fmt.Errorf("failed to open checkpoints: %w", serr)
		}
		r.closers = append(r.closers, sc)
		deps.Checkpoints = store
	}

	if reg != nil {
		collector, merr := metrics.NewCollector(reg)
		if merr != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", merr)
		}
		deps.Observer = collector
	}

	return batch.New(deps)
}
