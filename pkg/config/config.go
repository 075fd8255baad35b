// Package config loads ledgerd's configuration from a YAML file, with
// environment variable substitution, in the style the rest of the pack uses
// for its service configuration: a typed struct, a Duration wrapper for
// human-readable durations in YAML, and ${VAR}/${VAR:-default} expansion
// applied to the raw file before parsing.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// LedgerConfig is the on-disk shape of ledgerd's configuration.
type LedgerConfig struct {
	Environment string        `yaml:"environment"`
	Storage     StorageConfig `yaml:"storage"`
	Genesis     GenesisConfig `yaml:"genesis"`
	Logging     LoggingConfig `yaml:"logging"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects the backend ledgerd opens (pkg/backend/cometbftdb).
type StorageConfig struct {
	Dir  string `yaml:"dir"`
	Name string `yaml:"name"`
}

// GenesisConfig controls the demo EventRequest ledgerd submits on startup.
type GenesisConfig struct {
	GovernanceID      string   `yaml:"governance_id"`
	SchemaID          string   `yaml:"schema_id"`
	Namespace         string   `yaml:"namespace"`
	GovernanceVersion uint64   `yaml:"governance_version"`
	RequestTimeout    Duration `yaml:"request_timeout"`
}

// LoggingConfig holds the log level setting. Load and Default fill it in;
// cmd/ledgerd's logger does not read it and logs at every level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls whether ledgerd registers against the default
// Prometheus registry.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Duration wraps time.Duration so it can be written as "5s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Load reads path, substitutes ${VAR} environment references, and parses
// the result into a LedgerConfig with defaults applied for any zero-valued
// field.
func Load(path string) (*LedgerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg LedgerConfig
	if err := yaml.Unmarshal([]byte(substituteEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a LedgerConfig with every field at its default, for
// callers that run without a config file.
func Default() *LedgerConfig {
	cfg := &LedgerConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *LedgerConfig) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data"
	}
	if c.Storage.Name == "" {
		c.Storage.Name = "ledger"
	}
	if c.Genesis.GovernanceID == "" {
		c.Genesis.GovernanceID = "governance-0"
	}
	if c.Genesis.SchemaID == "" {
		c.Genesis.SchemaID = "demo-schema"
	}
	if c.Genesis.Namespace == "" {
		c.Genesis.Namespace = "demo"
	}
	if c.Genesis.RequestTimeout == 0 {
		c.Genesis.RequestTimeout = Duration(5 * time.Second)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
