package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("DISASMFACTS_LOG_LEVEL enables debug mode", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DISASMFACTS_LOG_LEVEL", "debug")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.True(t, cfg.Logging.DebugMode)
	})

	t.Run("DISASMFACTS_WORKERS sets scan workers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DISASMFACTS_WORKERS", "8")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 8, cfg.Decode.ScanWorkers)
	})

	t.Run("malformed DISASMFACTS_WORKERS is ignored", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DISASMFACTS_WORKERS", "many")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, 4, cfg.Decode.ScanWorkers)
	})

	t.Run("export paths", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DISASMFACTS_FACTS_DIR", "/tmp/facts")
		t.Setenv("DISASMFACTS_SQLITE", "/tmp/facts.db")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/facts", cfg.Export.FactsDir)
		assert.Equal(t, "/tmp/facts.db", cfg.Export.SQLitePath)
	})

	t.Run("empty env leaves config untouched", func(t *testing.T) {
		clearEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig(), cfg)
	})
}
