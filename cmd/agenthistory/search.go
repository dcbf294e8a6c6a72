package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/wesm/agenthistory/internal/index"
	"github.com/wesm/agenthistory/internal/timeutil"
)

const maxDisplayWidth = 120

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit   int
		asJSON  bool
		project string
	)
	cmd := &cobra.Command{
		Use:   "search [terms...]",
		Short: "List entries matching every term, newest first",
		Long: `List entries whose text or project path contains every term,
case-insensitively. Quote a phrase to match it as one term.
With no terms every entry is listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := index.ParseQuery(strings.Join(args, " "))
			if err != nil {
				return err
			}
			idx, _, err := a.loadIndex()
			if err != nil {
				return err
			}
			entries := idx.Entries
			if project != "" {
				entries = filterProject(entries, project)
			}
			matches := index.Filter(entries, q, limit)
			if asJSON {
				return writeJSONL(cmd.OutOrStdout(), matches)
			}
			writeTable(cmd.OutOrStdout(), matches)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum results (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per line")
	cmd.Flags().StringVar(&project, "project", "", "Only entries whose project path contains this substring")
	return cmd
}

func filterProject(entries []index.SearchEntry, sub string) []index.SearchEntry {
	var out []index.SearchEntry
	for _, e := range entries {
		if e.HasProject() && strings.Contains(e.ProjectPath, sub) {
			out = append(out, e)
		}
	}
	return out
}

type jsonEntry struct {
	Kind      string `json:"kind"`
	Display   string `json:"display"`
	Timestamp string `json:"timestamp"`
	Project   string `json:"project,omitempty"`
	SessionID string `json:"session_id"`
}

func writeJSONL(w io.Writer, entries []index.SearchEntry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(jsonEntry{
			Kind:      e.Kind.String(),
			Display:   e.DisplayText,
			Timestamp: timeutil.Format(e.Timestamp),
			Project:   e.ProjectPath,
			SessionID: e.SessionID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, entries []index.SearchEntry) {
	for _, e := range entries {
		line := oneLine(e.DisplayText)
		if e.HasProject() {
			fmt.Fprintf(w, "%s  %s  [%s]\n",
				timeutil.Short(e.Timestamp, time.Local), line, tildePath(e.ProjectPath))
		} else {
			fmt.Fprintf(w, "%s  %s\n",
				timeutil.Short(e.Timestamp, time.Local), line)
		}
	}
}

// oneLine collapses whitespace runs and truncates to
// maxDisplayWidth runes.
func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > maxDisplayWidth {
		return string(r[:maxDisplayWidth-1]) + "…"
	}
	return s
}
