package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all disasmfacts configuration.
type Config struct {
	// Decode pipeline
	Decode DecodeConfig `yaml:"decode"`

	// Analysis backend
	Backend BackendConfig `yaml:"backend"`

	// Fact export targets
	Export ExportConfig `yaml:"export"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DecodeConfig configures a decode run.
type DecodeConfig struct {
	Options          []string `yaml:"options"`           // emitted as option(Name) facts
	ScanWorkers      int      `yaml:"scan_workers"`      // <= 1 scans sequentially
	SkipInstructions bool     `yaml:"skip_instructions"` // do not run the instruction decoder
	SkipUnwind       bool     `yaml:"skip_unwind"`       // do not run the exception decoder
	Hints            string   `yaml:"hints"`             // tab-separated user facts, empty for none
}

// BackendConfig configures the Mangle analysis backend.
type BackendConfig struct {
	FactLimit    int    `yaml:"fact_limit"`
	QueryTimeout string `yaml:"query_timeout"`
}

// ExportConfig configures where facts are written after a decode.
type ExportConfig struct {
	FactsDir   string `yaml:"facts_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Decode: DecodeConfig{
			ScanWorkers: 4,
		},

		Backend: BackendConfig{
			FactLimit:    1000000,
			QueryTimeout: "30s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("DISASMFACTS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.DebugMode = true
	}
	if workers := os.Getenv("DISASMFACTS_WORKERS"); workers != "" {
		// Malformed values are ignored; Validate reports the configured value.
		if n, err := strconv.Atoi(workers); err == nil {
			c.Decode.ScanWorkers = n
		}
	}
	if dir := os.Getenv("DISASMFACTS_FACTS_DIR"); dir != "" {
		c.Export.FactsDir = dir
	}
	if path := os.Getenv("DISASMFACTS_SQLITE"); path != "" {
		c.Export.SQLitePath = path
	}
}

// GetQueryTimeout returns the backend query timeout as a duration.
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Decode.ScanWorkers < 0 {
		return fmt.Errorf("invalid scan_workers: %d (must be >= 0)", c.Decode.ScanWorkers)
	}
	if c.Backend.FactLimit < 0 {
		return fmt.Errorf("invalid fact_limit: %d (must be >= 0)", c.Backend.FactLimit)
	}
	if c.Backend.QueryTimeout != "" {
		if _, err := time.ParseDuration(c.Backend.QueryTimeout); err != nil {
			return fmt.Errorf("invalid query_timeout %q: %w", c.Backend.QueryTimeout, err)
		}
	}

	if c.Logging.Level != "" {
		validLevel := false
		for _, l := range ValidLogLevels {
			if c.Logging.Level == l {
				validLevel = true
				break
			}
		}
		if !validLevel {
			return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (valid: console, json)", c.Logging.Format)
	}

	seen := make(map[string]bool, len(c.Decode.Options))
	for _, opt := range c.Decode.Options {
		if opt == "" {
			return fmt.Errorf("empty decode option")
		}
		if seen[opt] {
			return fmt.Errorf("duplicate decode option: %s", opt)
		}
		seen[opt] = true
	}

	return nil
}
