package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WorldKind mirrors models.WorldKind without importing it, so config stays
// leaf-level and can be loaded before the rest of the module initializes.
type WorldKind string

const (
	// WorldKindClient is a world that plans work but does not execute it.
	WorldKindClient WorldKind = "client"
	// WorldKindExecutor is a world that runs plan steps.
	WorldKindExecutor WorldKind = "executor"
)

// StoreConfig configures the persistence gateway.
type StoreConfig struct {
	// DSN is the SQLite data source name (a file path, or ":memory:").
	DSN string `yaml:"dsn"`
}

// LogConfig configures the coordination event logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Color controls ANSI color output: "auto" (TTY-detected), "always", "never".
	Color string `yaml:"color"`
}

// yamlDuration parses either a YAML scalar duration string ("0.2s") or a
// bare number of seconds, since plain time.Duration unmarshals from YAML as
// an integer count of nanoseconds, which is not how the spec's examples
// ("0.2 s") are written.
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}
		*d = yamlDuration(parsed)
	case int:
		*d = yamlDuration(time.Duration(v) * time.Second)
	case float64:
		*d = yamlDuration(time.Duration(v * float64(time.Second)))
	default:
		return fmt.Errorf("unsupported duration value %v", raw)
	}
	return nil
}

// CoordinatorConfig is the top-level configuration for a world process.
// It is loaded once at startup and passed by value to the components that
// need it; nothing in the coordination core mutates it.
type CoordinatorConfig struct {
	// AutoValidityCheck controls whether a world runs both validity checks
	// (§4.6) before announcing itself ready. Defaults to true for executor
	// worlds and false for client worlds when absent from the file.
	AutoValidityCheck *bool `yaml:"auto_validity_check"`

	// ValidityCheckTimeout bounds how long a heartbeat is trusted before a
	// world is considered stale (§5). Default: 0.2s, matching the spec's
	// test default. Wire representation is a yamlDuration so that files can
	// write "0.2s" rather than a raw nanosecond count.
	ValidityCheckTimeout yamlDuration `yaml:"validity_check_timeout"`

	// Store configures the persistence gateway.
	Store StoreConfig `yaml:"store"`

	// LocalLockPath is the path to the OS-level advisory lock file guarding
	// concurrent processes from opening the same local store (§5, ambient).
	LocalLockPath string `yaml:"local_lock_path"`

	// Log configures the coordination event logger.
	Log LogConfig `yaml:"log"`
}

// DefaultValidityCheckTimeout matches the spec's test suite default (§6).
const DefaultValidityCheckTimeout = 200 * time.Millisecond

// Duration returns the validity check timeout as a time.Duration.
func (c CoordinatorConfig) Duration() time.Duration {
	return time.Duration(c.ValidityCheckTimeout)
}

// Default returns a CoordinatorConfig with every field set to its documented
// default for the given world kind.
func Default(kind WorldKind) CoordinatorConfig {
	autoCheck := kind == WorldKindExecutor
	return CoordinatorConfig{
		AutoValidityCheck:    &autoCheck,
		ValidityCheckTimeout: yamlDuration(DefaultValidityCheckTimeout),
		Store:                StoreConfig{DSN: "./conductor.db"},
		LocalLockPath:        "./conductor.db.lock",
		Log:                  LogConfig{Level: "info", Color: "auto"},
	}
}

// ResolvedAutoValidityCheck returns AutoValidityCheck if set, otherwise the
// kind's documented default (true for executors, false for clients).
func (c CoordinatorConfig) ResolvedAutoValidityCheck(kind WorldKind) bool {
	if c.AutoValidityCheck != nil {
		return *c.AutoValidityCheck
	}
	return kind == WorldKindExecutor
}

// Load reads a CoordinatorConfig from a YAML file at path, filling in
// defaults for the given world kind for any field the file leaves zero.
func Load(path string, kind WorldKind) (CoordinatorConfig, error) {
	cfg := Default(kind)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.ValidityCheckTimeout <= 0 {
		cfg.ValidityCheckTimeout = yamlDuration(DefaultValidityCheckTimeout)
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = "./conductor.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Color == "" {
		cfg.Log.Color = "auto"
	}

	return cfg, nil
}
