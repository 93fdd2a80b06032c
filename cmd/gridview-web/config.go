package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GatewayConfig names the gateway's collaborator endpoints. When
// Discover is set and both URLs are empty, they are filled in from
// the first gateway found via mDNS.
type GatewayConfig struct {
	// APIBaseURL is the REST API root, e.g. "http://gw:8090/api/v1".
	APIBaseURL string `yaml:"api_base_url"`

	// StreamURL is the push stream endpoint.
	StreamURL string `yaml:"stream_url"`

	// Discover enables mDNS gateway discovery.
	Discover bool `yaml:"discover"`
}

// Config holds the dashboard server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// Gateway names the upstream collaborators.
	Gateway GatewayConfig `yaml:"gateway"`

	// Record lists entity ids whose state history is persisted.
	Record []string `yaml:"record"`

	// DBPath is the SQLite database path. ":memory:" is accepted.
	DBPath string `yaml:"db"`

	// EventLog is the CBOR sync-event capture path. Empty disables
	// file capture.
	EventLog string `yaml:"event_log"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:   8080,
		DBPath: "./gridview-web.db",
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty
// path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Port <= 0 {
		cfg.Port = DefaultConfig().Port
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultConfig().DBPath
	}
	return cfg, nil
}
