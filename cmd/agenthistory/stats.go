package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wesm/agenthistory/internal/index"
	"github.com/wesm/agenthistory/internal/timeutil"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the indexed history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, fromCache, err := a.loadIndex()
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), a.cfg.ClaudeDir, idx, fromCache, time.Now())
			return nil
		},
	}
}

func printStats(
	w io.Writer, root string, idx *index.Index, fromCache bool, now time.Time,
) {
	var prompts, agent int
	for _, e := range idx.Entries {
		switch e.Kind {
		case index.UserPrompt:
			prompts++
		case index.AgentMessage:
			agent++
		}
	}

	source := "rebuilt"
	if fromCache {
		source = "cache"
	}

	fmt.Fprintf(w, "Root:      %s\n", tildePath(root))
	fmt.Fprintf(w, "Entries:   %s (%s user prompts, %s agent messages)\n",
		humanize.Comma(int64(len(idx.Entries))),
		humanize.Comma(int64(prompts)),
		humanize.Comma(int64(agent)),
	)

	hist := idx.Snapshot.HistoryFile
	if hist.Present {
		fmt.Fprintf(w, "Root log:  %s\n", humanize.Bytes(uint64(hist.Size)))
	} else {
		fmt.Fprintf(w, "Root log:  missing\n")
	}
	fmt.Fprintf(w, "Projects:  %s (%s files indexed, %s failed)\n",
		humanize.Comma(int64(len(idx.Snapshot.Projects))),
		humanize.Comma(int64(idx.Stats.FilesSucceeded)),
		humanize.Comma(int64(idx.Stats.FilesFailed)),
	)

	if n := len(idx.Entries); n > 0 {
		newest := idx.Entries[0].Timestamp
		oldest := idx.Entries[n-1].Timestamp
		fmt.Fprintf(w, "Newest:    %s (%s)\n",
			timeutil.Short(newest, time.Local), humanize.RelTime(newest, now, "ago", "from now"))
		fmt.Fprintf(w, "Oldest:    %s (%s)\n",
			timeutil.Short(oldest, time.Local), humanize.RelTime(oldest, now, "ago", "from now"))
	}
	fmt.Fprintf(w, "Source:    %s\n", source)
}
