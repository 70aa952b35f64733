// Copyright (c) 2025 Lux Partners Limited
// SPDX-License-Identifier: MIT

package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration, loadable from YAML and overridable
// by flags in the CLI.
type Config struct {
	NetworkID    uint64 `yaml:"network_id"`
	RPCEndpoint  string `yaml:"rpc"`
	FiatCurrency string `yaml:"fiat"`
	HTTPPort     int    `yaml:"port"`

	// DataDir is where the KV checkpoint store lives. Empty keeps
	// everything in memory.
	DataDir string `yaml:"data_dir,omitempty"`

	// DatabaseURL enables the SQL trade archive (postgres:// DSN or a
	// sqlite file path). Empty disables archiving.
	DatabaseURL string `yaml:"database_url,omitempty"`

	// PriceAPIURL is the fiat price endpoint (pricemulti style).
	PriceAPIURL string `yaml:"price_api,omitempty"`

	// PollInterval is how often the chain head is checked for new fills.
	PollInterval string `yaml:"poll_interval,omitempty"`

	// MaxTrades caps ledger retention. 0 means unlimited.
	MaxTrades int `yaml:"max_trades,omitempty"`

	// Tokens extends the built-in token metadata seed.
	Tokens map[string]TokenInfo `yaml:"tokens,omitempty"`
}

// DefaultConfig returns the config defaults.
func DefaultConfig() Config {
	return Config{
		NetworkID:    1,
		FiatCurrency: DefaultFiatCode,
		HTTPPort:     8080,
		PriceAPIURL:  "https://min-api.cryptocompare.com/data/pricemulti",
		PollInterval: "10s",
	}
}

// LoadConfig reads a YAML config file, expanding environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if _, err := cfg.ParsedPollInterval(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParsedPollInterval parses the poll interval, falling back to 10s.
func (c Config) ParsedPollInterval() (time.Duration, error) {
	if c.PollInterval == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid poll_interval %q: %w", c.PollInterval, err)
	}
	return d, nil
}
