// Package daemon manages the Agora daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration. Values load in three layers:
// defaults, then ~/.agora/config.toml, then AGORA_* environment
// variables.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Market    MarketConfig    `toml:"market"`
	Storage   StorageConfig   `toml:"storage"`
	Broker    BrokerConfig    `toml:"broker"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	ID string `toml:"id"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MarketConfig controls auction behavior.
type MarketConfig struct {
	// BidWindowSeconds is the default bidding window when a task creator
	// does not pick one.
	BidWindowSeconds int `toml:"bid_window_seconds"`

	// ReplaceBids makes a repeat bid replace the agent's earlier bid
	// instead of superseding it in place.
	ReplaceBids bool `toml:"replace_bids"`

	// CacheTTLSeconds bounds staleness of the read-side query cache.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
}

// StorageConfig controls the persistence layer.
type StorageConfig struct {
	Dir     string `toml:"dir"`
	Persist bool   `toml:"persist"`
}

// BrokerConfig controls peer announcements over NATS.
type BrokerConfig struct {
	URL string `toml:"url"` // empty disables peer messaging
}

// TelemetryConfig controls observability.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := agoraHome()
	return Config{
		Node: NodeConfig{
			ID: "agora-local",
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 7422,
		},
		Market: MarketConfig{
			BidWindowSeconds: 3600,
			CacheTTLSeconds:  2,
		},
		Storage: StorageConfig{
			Dir:     homeDir,
			Persist: true,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from ~/.agora/config.toml, falling back to
// defaults, then applies AGORA_* environment overrides
// (AGORA_API_PORT, AGORA_BROKER_URL, ...).
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(agoraHome(), "config.toml")

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process("agora", &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.agora/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(agoraHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// agoraHome returns the Agora data directory.
func agoraHome() string {
	if env := os.Getenv("AGORA_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".agora")
}

// AgoraHome is exported for use by other packages.
func AgoraHome() string {
	return agoraHome()
}
