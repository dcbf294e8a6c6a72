package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesm/agenthistory/internal/cache"
	"github.com/wesm/agenthistory/internal/watch"
)

const defaultWatchDebounce = 500 * time.Millisecond

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the cache warm by rebuilding on changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debounce <= 0 {
				return fmt.Errorf("--debounce must be positive, got %s", debounce)
			}
			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM,
			)
			defer stop()
			return a.watch(ctx, cmd, debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", defaultWatchDebounce,
		"Quiet period before a change triggers a rebuild")
	return cmd
}

func (a *app) watch(
	ctx context.Context, cmd *cobra.Command, debounce time.Duration,
) error {
	out := cmd.OutOrStdout()
	idx, _, err := a.loadIndex()
	if err != nil {
		return err
	}
	printBuildSummary(out, idx)

	root, err := cache.CanonicalRoot(a.cfg.ClaudeDir)
	if err != nil {
		return err
	}
	onChange := func(paths []string) {
		idx, err := a.rebuild()
		if err != nil {
			a.log.Error("rebuild failed", zap.Error(err))
			return
		}
		printBuildSummary(out, idx)
	}
	w, err := watch.New(root, debounce, a.log, onChange)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	watched, unwatched, err := w.WatchTree()
	if err != nil {
		return err
	}
	if unwatched > 0 {
		a.log.Warn("some directories could not be watched",
			zap.Int("unwatched", unwatched))
	}
	w.Start()
	defer w.Stop()

	fmt.Fprintf(out, "Watching %s (%d directories)\n", tildePath(root), watched)
	<-ctx.Done()
	return nil
}
