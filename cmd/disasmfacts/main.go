// Command disasmfacts extracts disassembly facts from a serialized program
// module and loads them into the analysis backend for its instruction set.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"disasmfacts/internal/config"
	"disasmfacts/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "disasmfacts",
		Short: "Extract Datalog facts from binary program modules",
		Long: `disasmfacts reads a program module manifest, decodes its bytes,
symbols, sections, instructions and call frame records into relations,
and loads them into a Mangle analysis backend chosen by the module's ISA.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zc := zap.NewProductionConfig()
			if verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = zc.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if verbose {
				cfg.Logging.DebugMode = true
				cfg.Logging.Level = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config %s: %w", configPath, err)
			}
			return logging.Initialize(cfg.Logging.Options())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.CloseAll()
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "disasmfacts.yaml", "Config file")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	root.AddCommand(newDecodeCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newBackendsCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
