// Package config loads the batcher configuration from a file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/smartcontractkit/stacks-batcher/schedule"
	"github.com/smartcontractkit/stacks-batcher/txbuilder"
)

// AccountConfig is the signing account.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type AccountConfig struct {
	Address    string `mapstructure:"address" yaml:"address"`         // The standard principal that signs every transaction
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"` // Secret: hex secp256k1 private key of the account
}

// HiroConfig configures the Hiro API client.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type HiroConfig struct {
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"` // Secret: Hiro API key sent as x-api-key
	URL     string        `mapstructure:"url" yaml:"url"`         // Overrides the API URL of the selected network
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // Per request timeout
}

// TxConfig configures the transactions built for each request.
type TxConfig struct {
	ContractAddress   string `mapstructure:"contract_address" yaml:"contract_address"`       // The deployer of the marketplace contracts
	Fee               uint64 `mapstructure:"fee" yaml:"fee"`                                 // Fee in µSTX per transaction
	PostConditionMode string `mapstructure:"post_condition_mode" yaml:"post_condition_mode"` // allow or deny
}

// BatchConfig tunes batch runs.
type BatchConfig struct {
	MinDelay           time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	StopOnFirstFailure bool          `mapstructure:"stop_on_first_failure" yaml:"stop_on_first_failure"`
	CheckpointPath     string        `mapstructure:"checkpoint_path" yaml:"checkpoint_path"` // SQLite file used to resume runs
}

// ConfirmConfig configures confirmation polling.
type ConfirmConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxAttempts uint          `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// RetryConfig configures submission retries on network errors.
type RetryConfig struct {
	MaxAttempts uint          `mapstructure:"max_attempts" yaml:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	Multiplier  float64       `mapstructure:"multiplier" yaml:"multiplier"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// LockConfig configures the account lock.
type LockConfig struct {
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"` // Empty uses an in-process lock
	Expiry    time.Duration `mapstructure:"expiry" yaml:"expiry"`
}

// Config wraps the entire batcher configuration.
type Config struct {
	Network      string        `mapstructure:"network" yaml:"network"`             // Network name, mainnet or testnet unless the manifest adds more
	NetworksFile string        `mapstructure:"networks_file" yaml:"networks_file"` // Optional YAML network manifest
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	Account      AccountConfig `mapstructure:"account" yaml:"account"`
	Hiro         HiroConfig    `mapstructure:"hiro" yaml:"hiro"`
	Tx           TxConfig      `mapstructure:"tx" yaml:"tx"`
	Batch        BatchConfig   `mapstructure:"batch" yaml:"batch"`
	Confirm      ConfirmConfig `mapstructure:"confirm" yaml:"confirm"`
	Retry        RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Lock         LockConfig    `mapstructure:"lock" yaml:"lock"`
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Network == "" {
		errs = append(errs, errors.New("network is required"))
	}
	if c.Account.Address == "" {
		errs = append(errs, errors.New("account address is required"))
	}
	if c.Account.PrivateKey == "" {
		errs = append(errs, errors.New("account private key is required"))
	}
	if c.Tx.ContractAddress == "" {
		errs = append(errs, errors.New("contract address is required"))
	}
	if c.Batch.MinDelay < 0 {
		errs = append(errs, errors.New("min delay must not be negative"))
	}
	if m := txbuilder.PostConditionMode(c.Tx.PostConditionMode); m != "" && !m.Valid() {
		errs = append(errs, fmt.Errorf("invalid post-condition mode %q", m))
	}

	return errors.Join(errs...)
}

// RetryPolicy returns the submission retry policy. Unset fields use schedule.DefaultRetry.
func (c *Config) RetryPolicy() schedule.Policy {
	p := schedule.DefaultRetry()
	if c.Retry.MaxAttempts > 0 {
		p.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.Interval > 0 {
		p.Interval = c.Retry.Interval
	}
	if c.Retry.Multiplier > 0 {
		p.Multiplier = c.Retry.Multiplier
	}
	if c.Retry.MaxDelay > 0 {
		p.MaxDelay = c.Retry.MaxDelay
	}

	return p
}

// PollPolicy returns the confirmation polling policy. Unset fields use schedule.DefaultPoll.
func (c *Config) PollPolicy() schedule.Policy {
	p := schedule.DefaultPoll()
	if c.Confirm.MaxAttempts > 0 {
		p.MaxAttempts = c.Confirm.MaxAttempts
	}
	if c.Confirm.Interval > 0 {
		p.Interval = c.Confirm.Interval
	}

	return p
}

// defaults are applied before the file and the environment are read.
var defaults = map[string]any{
	"network":      "testnet",
	"log_level":    "info",
	"hiro.timeout": 30 * time.Second,
	"lock.expiry":  30 * time.Minute,
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := newViper()
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", filePath, err)
			}
		}
	}

	return unmarshal(v)
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := newViper()
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

var (
	// envBindings maps config keys to the environment variables that can provide them. The first
	// name is the preferred one; the others are the names used by the deployment scripts and are
	// kept for compatibility. The first variable that is set wins.
	envBindings = map[string][]string{
		"network":                     {"STACKS_BATCHER_NETWORK", "NETWORK"},
		"networks_file":               {"STACKS_BATCHER_NETWORKS_FILE"},
		"log_level":                   {"STACKS_BATCHER_LOG_LEVEL", "LOG_LEVEL"},
		"account.address":             {"STACKS_BATCHER_ACCOUNT_ADDRESS", "SENDER_ADDRESS"},
		"account.private_key":         {"STACKS_BATCHER_ACCOUNT_PRIVATE_KEY", "PRIVATE_KEY"},
		"hiro.api_key":                {"STACKS_BATCHER_HIRO_API_KEY", "HIRO_API_KEY"},
		"hiro.url":                    {"STACKS_BATCHER_HIRO_URL", "STACKS_API_URL"},
		"hiro.timeout":                {"STACKS_BATCHER_HIRO_TIMEOUT"},
		"tx.contract_address":         {"STACKS_BATCHER_CONTRACT_ADDRESS", "CONTRACT_ADDRESS"},
		"tx.fee":                      {"STACKS_BATCHER_TX_FEE", "TX_FEE"},
		"tx.post_condition_mode":      {"STACKS_BATCHER_POST_CONDITION_MODE"},
		"batch.min_delay":             {"STACKS_BATCHER_MIN_DELAY"},
		"batch.stop_on_first_failure": {"STACKS_BATCHER_STOP_ON_FIRST_FAILURE"},
		"batch.checkpoint_path":       {"STACKS_BATCHER_CHECKPOINT_PATH"},
		"confirm.enabled":             {"STACKS_BATCHER_CONFIRM"},
		"confirm.interval":            {"STACKS_BATCHER_CONFIRM_INTERVAL"},
		"confirm.max_attempts":        {"STACKS_BATCHER_CONFIRM_MAX_ATTEMPTS"},
		"retry.max_attempts":          {"STACKS_BATCHER_RETRY_MAX_ATTEMPTS"},
		"retry.interval":              {"STACKS_BATCHER_RETRY_INTERVAL"},
		"retry.multiplier":            {"STACKS_BATCHER_RETRY_MULTIPLIER"},
		"retry.max_delay":             {"STACKS_BATCHER_RETRY_MAX_DELAY"},
		"lock.redis_addr":             {"STACKS_BATCHER_REDIS_ADDR", "REDIS_URL"},
		"lock.expiry":                 {"STACKS_BATCHER_LOCK_EXPIRY"},
	}
)

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
