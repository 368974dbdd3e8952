package cli

import (
	"fmt"
	"io"

	goredislib "github.com/redis/go-redis/v9"

	"github.com/smartcontractkit/stacks-batcher/checkpoint"
	"github.com/smartcontractkit/stacks-batcher/checkpoint/sqlite"
	"github.com/smartcontractkit/stacks-batcher/config"
	"github.com/smartcontractkit/stacks-batcher/config/network"
	"github.com/smartcontractkit/stacks-batcher/ledger"
	"github.com/smartcontractkit/stacks-batcher/ledger/hiro"
	"github.com/smartcontractkit/stacks-batcher/lock"
	"github.com/smartcontractkit/stacks-batcher/signer"
)

// ConfigLoaderFunc loads the configuration file at path.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// NetworkLoaderFunc loads the network manifest at path.
type NetworkLoaderFunc func(path string) (*network.Config, error)

// LedgerFactoryFunc creates the ledger client for a network.
type LedgerFactoryFunc func(n network.Network, cfg *config.Config) (ledger.Client, error)

// SignerFactoryFunc creates the signer of the configured account.
type SignerFactoryFunc func(cfg *config.Config) (signer.Signer, error)

// LockerFactoryFunc creates the account locker. The closer releases its connections.
type LockerFactoryFunc func(cfg *config.Config) (lock.Locker, io.Closer, error)

// CheckpointOpenerFunc opens the checkpoint store at path.
type CheckpointOpenerFunc func(path string) (checkpoint.Store, io.Closer, error)

// defaultLedgerFactory connects to the network's Hiro API, or to the configured URL override.
func defaultLedgerFactory(n network.Network, cfg *config.Config) (ledger.Client, error) {
	url := n.APIURL
	if cfg.Hiro.URL != "" {
		url = cfg.Hiro.URL
	}

	client, err := hiro.NewClient(url, hiro.Options{
		APIKey:  cfg.Hiro.APIKey,
		Timeout: cfg.Hiro.Timeout,
		Debug:   cfg.LogLevel == "debug",
	})
	if err != nil {
		return nil, err
	}

	return client, nil
}

// defaultSignerFactory signs with the configured private key.
func defaultSignerFactory(cfg *config.Config) (signer.Signer, error) {
	s, err := signer.NewKeySigner(cfg.Account.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid account private key: %w", err)
	}

	return s, nil
}

// defaultLockerFactory locks through Redis when an address is configured and in process otherwise.
func defaultLockerFactory(cfg *config.Config) (lock.Locker, io.Closer, error) {
	if cfg.Lock.RedisAddr == "" {
		return lock.NewMemory(), nopCloser{}, nil
	}

	client := goredislib.NewClient(&goredislib.Options{Addr: cfg.Lock.RedisAddr})
	l, err := lock.NewRedis(client, cfg.Lock.Expiry)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return l, client, nil
}

// defaultCheckpointOpener opens a SQLite checkpoint store.
func defaultCheckpointOpener(path string) (checkpoint.Store, io.Closer, error) {
	s, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}

	return s, s, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader loads the configuration.
	// Default: config.Load
	ConfigLoader ConfigLoaderFunc

	// NetworkLoader loads the network manifest.
	// Default: network.Load
	NetworkLoader NetworkLoaderFunc

	// LedgerFactory creates the ledger client.
	// Default: hiro.NewClient
	LedgerFactory LedgerFactoryFunc

	// SignerFactory creates the account signer.
	// Default: signer.NewKeySigner
	SignerFactory SignerFactoryFunc

	// LockerFactory creates the account locker.
	// Default: lock.NewRedis when a Redis address is configured, lock.NewMemory otherwise
	LockerFactory LockerFactoryFunc

	// CheckpointOpener opens the checkpoint store.
	// Default: sqlite.Open
	CheckpointOpener CheckpointOpenerFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.NetworkLoader == nil {
		d.NetworkLoader = network.Load
	}
	if d.LedgerFactory == nil {
		d.LedgerFactory = defaultLedgerFactory
	}
	if d.SignerFactory == nil {
		d.SignerFactory = defaultSignerFactory
	}
	if d.LockerFactory == nil {
		d.LockerFactory = defaultLockerFactory
	}
	if d.CheckpointOpener == nil {
		d.CheckpointOpener = defaultCheckpointOpener
	}
}
