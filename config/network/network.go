package network

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// NetworkType is either mainnet or testnet.
type NetworkType string

const (
	NetworkTypeMainnet NetworkType = "mainnet"
	NetworkTypeTestnet NetworkType = "testnet"
)

// addressPrefixes are the leading characters of standard addresses on each network type.
var addressPrefixes = map[NetworkType][]string{
	NetworkTypeMainnet: {"SP", "SM"},
	NetworkTypeTestnet: {"ST", "SN"},
}

// Network is the configuration of one Stacks network.
type Network struct {
	Name          string        `yaml:"name"`
	Type          NetworkType   `yaml:"type"`
	APIURL        string        `yaml:"api_url"`
	BlockExplorer BlockExplorer `yaml:"block_explorer"`
}

// BlockExplorer links transactions to an explorer.
type BlockExplorer struct {
	URL   string `yaml:"url"`
	Chain string `yaml:"chain"` // value of the explorer's chain query parameter
}

// Validate ensures that all required fields are set.
func (n *Network) Validate() error {
	if n.Name == "" {
		return errors.New("name is required")
	}

	if n.Type != NetworkTypeMainnet && n.Type != NetworkTypeTestnet {
		return fmt.Errorf("type must be %s or %s, got %q", NetworkTypeMainnet, NetworkTypeTestnet, n.Type)
	}

	if n.APIURL == "" {
		return errors.New("api url is required")
	}
	if _, err := url.ParseRequestURI(n.APIURL); err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}

	return nil
}

// MatchesAddress reports whether a standard or contract principal belongs to the network type.
func (n *Network) MatchesAddress(address string) bool {
	for _, p := range addressPrefixes[n.Type] {
		if strings.HasPrefix(address, p) {
			return true
		}
	}

	return false
}

// TxURL returns the explorer link of a transaction, or an empty string when no explorer is set.
func (n *Network) TxURL(txid string) string {
	if n.BlockExplorer.URL == "" {
		return ""
	}

	u := strings.TrimSuffix(n.BlockExplorer.URL, "/") + "/txid/" + txid
	if n.BlockExplorer.Chain != "" {
		u += "?chain=" + n.BlockExplorer.Chain
	}

	return u
}
