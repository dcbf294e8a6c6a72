package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/agenthistory/internal/cache"
	"github.com/wesm/agenthistory/internal/index"
)

func newRebuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index and rewrite the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := a.rebuild()
			if err != nil {
				return err
			}
			printBuildSummary(cmd.OutOrStdout(), idx)
			return nil
		},
	}
}

// rebuild builds the configured root, ignoring any cached
// index, and saves the result unless caching is disabled.
func (a *app) rebuild() (*index.Index, error) {
	if a.cfg.NoCache {
		root, err := cache.CanonicalRoot(a.cfg.ClaudeDir)
		if err != nil {
			return nil, err
		}
		return a.builder.Build(root)
	}
	return a.store.Rebuild(a.cfg.ClaudeDir, a.builder)
}

func printBuildSummary(w io.Writer, idx *index.Index) {
	fmt.Fprintf(w, "Indexed %s entries from %s files (%s failed)\n",
		humanize.Comma(int64(len(idx.Entries))),
		humanize.Comma(int64(idx.Stats.FilesSucceeded+idx.Stats.FilesFailed)),
		humanize.Comma(int64(idx.Stats.FilesFailed)),
	)
}
