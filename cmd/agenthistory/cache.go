package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/agenthistory/internal/cache"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or remove the cached index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache directory for the root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := cache.CanonicalRoot(a.cfg.ClaudeDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.store.Dir(root))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the cached index for the root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Clear(a.cfg.ClaudeDir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	})
	return cmd
}
