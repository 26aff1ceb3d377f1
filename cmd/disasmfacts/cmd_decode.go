package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"disasmfacts/internal/decoder"
	"disasmfacts/internal/export"
	"disasmfacts/internal/program"
)

type decodeFlags struct {
	factsDir string
	sqlite   string
	options  []string
	workers  int
	hints    string
}

func newDecodeCmd() *cobra.Command {
	var f decodeFlags
	cmd := &cobra.Command{
		Use:   "decode [manifest.yaml]",
		Short: "Decode a module and load its facts into the backend",
		Long: `Decodes every section of the module, loads the resulting facts into
the backend for its ISA and prints a per-relation summary.

Example:
  disasmfacts decode hello.yaml --facts-dir out/ --option no-cfi-directives
  disasmfacts decode hello.yaml --hints hints.tsv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := runDecode(ctx, args[0], f)
			if err != nil {
				return err
			}
			defer res.Backend.Close()

			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(res))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.factsDir, "facts-dir", "", "Write <relation>.facts files to this directory")
	cmd.Flags().StringVar(&f.sqlite, "sqlite", "", "Write every relation to this SQLite database")
	cmd.Flags().StringArrayVar(&f.options, "option", nil, "Record an option fact (repeatable)")
	cmd.Flags().IntVar(&f.workers, "workers", -1, "Parallel interval scan workers (default from config)")
	cmd.Flags().StringVar(&f.hints, "hints", "", "Add the tab-separated facts in this file before loading the backend")
	return cmd
}

// runDecode loads a manifest, decodes it and writes the configured exports.
// Flags override the config file.
func runDecode(ctx context.Context, path string, f decodeFlags) (*decoder.Result, error) {
	mod, err := program.LoadManifest(path)
	if err != nil {
		return nil, err
	}

	dc := decoder.ConfigFrom(cfg)
	if f.workers >= 0 {
		dc.ScanWorkers = f.workers
	}
	if f.hints != "" {
		dc.HintsPath = f.hints
	}
	options := append(append([]string{}, cfg.Decode.Options...), f.options...)

	logger.Info("Decoding module", zap.String("manifest", path), zap.String("module", mod.Name), zap.Stringer("isa", mod.ISA))
	res, err := decoder.New(dc).Decode(ctx, mod, options)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	logger.Info("Module decoded",
		zap.String("backend", res.Backend.Name()),
		zap.Int("facts", res.Facts.Total()),
		zap.Duration("duration", res.Duration))

	factsDir := firstNonEmpty(f.factsDir, cfg.Export.FactsDir)
	if factsDir != "" {
		if err := export.WriteFactsDir(factsDir, res.Facts); err != nil {
			res.Backend.Close()
			return nil, err
		}
		logger.Debug("Wrote facts directory", zap.String("dir", factsDir))
	}
	sqlitePath := firstNonEmpty(f.sqlite, cfg.Export.SQLitePath)
	if sqlitePath != "" {
		if err := export.WriteSQLite(ctx, sqlitePath, res.Facts); err != nil {
			res.Backend.Close()
			return nil, err
		}
		logger.Debug("Wrote sqlite database", zap.String("path", sqlitePath))
	}
	return res, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
