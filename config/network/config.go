// Package network loads the Stacks network manifest.
package network

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/smartcontractkit/stacks-batcher/ledger/hiro"
)

// Manifest is the YAML representation of network configuration.
type Manifest struct {
	Networks []Network `yaml:"networks"`
}

// Config is a collection of networks keyed by name.
type Config struct {
	networks map[string]Network
}

// NewConfig creates a config from a slice of networks. Later networks overwrite earlier ones
// with the same name.
func NewConfig(networks []Network) *Config {
	nmap := make(map[string]Network, len(networks))
	for _, n := range networks {
		nmap[n.Name] = n
	}

	return &Config{networks: nmap}
}

// Defaults returns the public mainnet and testnet networks served by Hiro.
func Defaults() *Config {
	return NewConfig([]Network{
		{
			Name:          string(NetworkTypeMainnet),
			Type:          NetworkTypeMainnet,
			APIURL:        hiro.MainnetURL,
			BlockExplorer: BlockExplorer{URL: "https://explorer.hiro.so", Chain: "mainnet"},
		},
		{
			Name:          string(NetworkTypeTestnet),
			Type:          NetworkTypeTestnet,
			APIURL:        hiro.TestnetURL,
			BlockExplorer: BlockExplorer{URL: "https://explorer.hiro.so", Chain: "testnet"},
		},
	})
}

// Validate ensures that all networks are valid.
func (c *Config) Validate() error {
	for _, n := range c.Networks() {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("network %q: %w", n.Name, err)
		}
	}

	return nil
}

// Networks returns all networks sorted by name.
func (c *Config) Networks() []Network {
	networks := slices.Collect(maps.Values(c.networks))
	slices.SortFunc(networks, func(a, b Network) int { return cmp.Compare(a.Name, b.Name) })

	return networks
}

// NetworkByName retrieves a network by name.
func (c *Config) NetworkByName(name string) (Network, error) {
	n, ok := c.networks[name]
	if !ok {
		return Network{}, fmt.Errorf("network %q not found in configuration", name)
	}

	return n, nil
}

// Merge merges another config into the current config, overwriting networks with the same name.
func (c *Config) Merge(other *Config) {
	maps.Copy(c.networks, other.networks)
}

// MarshalYAML implements the yaml.Marshaler interface.
func (c *Config) MarshalYAML() (any, error) {
	return Manifest{Networks: c.Networks()}, nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	node := Manifest{}
	if err := value.Decode(&node); err != nil {
		return err
	}

	*c = *NewConfig(node.Networks)

	return nil
}

// Load returns the default networks merged with the manifest at path. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network manifest %s: %w", path, err)
	}

	loaded := &Config{}
	if err = yaml.Unmarshal(b, loaded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal network manifest %s: %w", path, err)
	}
	if err = loaded.Validate(); err != nil {
		return nil, err
	}
	cfg.Merge(loaded)

	return cfg, nil
}
