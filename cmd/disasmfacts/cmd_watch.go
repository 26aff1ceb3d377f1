package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"disasmfacts/internal/logging"
)

func newWatchCmd() *cobra.Command {
	var f decodeFlags
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch [manifest.yaml]",
		Short: "Re-decode a module whenever its manifest changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			decodeOnce := func() {
				dctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				res, err := runDecode(dctx, args[0], f)
				if err != nil {
					logger.Error("Decode failed", zap.Error(err))
					fmt.Fprintf(out, "decode failed: %v\n", err)
					return
				}
				fmt.Fprintln(out, renderSummary(res))
				_ = res.Backend.Close()
			}

			decodeOnce()
			w, err := newManifestWatcher(args[0], debounce)
			if err != nil {
				return err
			}
			return w.Run(ctx, decodeOnce)
		},
	}
	cmd.Flags().StringVar(&f.factsDir, "facts-dir", "", "Write <relation>.facts files to this directory")
	cmd.Flags().StringVar(&f.sqlite, "sqlite", "", "Write every relation to this SQLite database")
	cmd.Flags().StringArrayVar(&f.options, "option", nil, "Record an option fact (repeatable)")
	cmd.Flags().IntVar(&f.workers, "workers", -1, "Parallel interval scan workers (default from config)")
	cmd.Flags().StringVar(&f.hints, "hints", "", "Add the tab-separated facts in this file before loading the backend")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "Quiet period before re-decoding")
	return cmd
}

// manifestWatcher reports changes to one file. It watches the parent
// directory so that editors replacing the file by rename are still seen.
type manifestWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

func newManifestWatcher(path string, debounce time.Duration) (*manifestWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &manifestWatcher{path: abs, debounce: debounce, watcher: w}, nil
}

// Run calls onChange once per burst of writes to the file, after the
// debounce period has passed without further events. It returns when ctx is
// done and always closes the underlying watcher.
func (mw *manifestWatcher) Run(ctx context.Context, onChange func()) error {
	defer mw.watcher.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	logging.Boot("watching %s", mw.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-mw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != mw.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			logging.BootDebug("manifest event: %s", event.Op)
			timer.Reset(mw.debounce)
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return nil
			}
			logging.BootWarn("watch error: %v", err)
		case <-timer.C:
			onChange()
		}
	}
}
