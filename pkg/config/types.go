package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent apm configuration stored as config.toml
// in the .apm/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Analysis    AnalysisConfig    `toml:"analysis"`
	Client      ClientConfig      `toml:"client"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and configures the storage backend shared by the
// API server and the CLI.
type StorageConfig struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen      string   `toml:"listen,omitempty"`
	CORSOrigins []string `toml:"cors_origins,omitempty"`
}

// AnalysisConfig holds settings for the external analysis service.
type AnalysisConfig struct {
	// Target is the base URL of the analysis service.
	Target string `toml:"target,omitempty"`

	// Timeout bounds non-streaming analysis calls, as a Go duration string.
	Timeout string `toml:"timeout,omitempty"`

	// UserLimit caps the users sent per analysis.
	UserLimit int `toml:"user_limit,omitempty"`

	// Listen is the address the bundled mock analysis service binds to.
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. apm generate, apm brief). Values are full URLs.
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`

	// ThinkingInterval is how often the progress view advances an agent's
	// thinking step, as a Go duration string.
	ThinkingInterval string `toml:"thinking_interval,omitempty"`
}

// EventStreamConfig configures where brief events are published.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			if !isStorageDriver(v) {
				return fmt.Errorf("invalid value for storage.driver: %q (available: %s)", v, strings.Join(StorageDrivers, ", "))
			}
			c.Storage.Driver = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"api.cors_origins": {
		get: func(c *Config) string { return strings.Join(c.API.CORSOrigins, ",") },
		set: func(c *Config, v string) error { c.API.CORSOrigins = splitList(v); return nil },
	},
	"analysis.target": {
		get: func(c *Config) string { return c.Analysis.Target },
		set: func(c *Config, v string) error { c.Analysis.Target = v; return nil },
	},
	"analysis.timeout": {
		get: func(c *Config) string { return c.Analysis.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for analysis.timeout: %w", err)
			}
			c.Analysis.Timeout = v
			return nil
		},
	},
	"analysis.user_limit": {
		get: func(c *Config) string {
			if c.Analysis.UserLimit == 0 {
				return ""
			}
			return strconv.Itoa(c.Analysis.UserLimit)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for analysis.user_limit: %w", err)
			}
			if n <= 0 {
				return fmt.Errorf("invalid value for analysis.user_limit: %d must be positive", n)
			}
			c.Analysis.UserLimit = n
			return nil
		},
	},
	"analysis.listen": {
		get: func(c *Config) string { return c.Analysis.Listen },
		set: func(c *Config, v string) error { c.Analysis.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"client.thinking_interval": {
		get: func(c *Config) string { return c.Client.ThinkingInterval },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for client.thinking_interval: %w", err)
			}
			c.Client.ThinkingInterval = v
			return nil
		},
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			if v != EventStreamNop && v != EventStreamKafka {
				return fmt.Errorf("invalid value for eventstream.provider: %q (available: %s, %s)", v, EventStreamNop, EventStreamKafka)
			}
			c.EventStream.Provider = v
			return nil
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error { c.EventStream.Brokers = splitList(v); return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}

// splitList parses a comma separated list, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isStorageDriver(v string) bool {
	return slices.Contains(StorageDrivers, v)
}
