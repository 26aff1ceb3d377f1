package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newQueryCmd() *cobra.Command {
	var f decodeFlags
	cmd := &cobra.Command{
		Use:   "query [manifest.yaml] [atom]",
		Short: "Decode a module and evaluate a query against its backend",
		Long: `Decodes the module, then evaluates one atom against the loaded backend,
derived relations included. Prints one line per binding.

Example:
  disasmfacts query hello.yaml 'direct_call(EA, Target)'
  disasmfacts query hello.yaml 'data_pointer_to_symbol(EA, Name)'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := runDecode(ctx, args[0], f)
			if err != nil {
				return err
			}
			defer res.Backend.Close()

			logger.Info("Querying backend", zap.String("query", args[1]))
			result, err := res.Backend.Query(ctx, args[1])
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(result.Bindings) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			rows := make([]string, len(result.Bindings))
			for i, binding := range result.Bindings {
				rows[i] = formatBinding(binding)
			}
			sort.Strings(rows)
			for _, row := range rows {
				fmt.Fprintln(out, row)
			}
			fmt.Fprintf(out, "%d result(s) in %s\n", len(rows), result.Duration)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&f.options, "option", nil, "Record an option fact (repeatable)")
	cmd.Flags().IntVar(&f.workers, "workers", -1, "Parallel interval scan workers (default from config)")
	cmd.Flags().StringVar(&f.hints, "hints", "", "Add the tab-separated facts in this file before loading the backend")
	return cmd
}

// formatBinding renders variable bindings sorted by variable name. Integers
// print in hex, since they are almost always addresses.
func formatBinding(binding map[string]interface{}) string {
	names := make([]string, 0, len(binding))
	for name := range binding {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		switch v := binding[name].(type) {
		case int64:
			parts[i] = fmt.Sprintf("%s=%#x", name, uint64(v))
		case string:
			parts[i] = fmt.Sprintf("%s=%q", name, v)
		default:
			parts[i] = fmt.Sprintf("%s=%v", name, v)
		}
	}
	return strings.Join(parts, " ")
}
