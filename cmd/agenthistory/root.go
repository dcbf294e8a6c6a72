package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesm/agenthistory/internal/cache"
	"github.com/wesm/agenthistory/internal/config"
	"github.com/wesm/agenthistory/internal/index"
	"github.com/wesm/agenthistory/internal/logging"
)

// app is the state shared by subcommands once flags and config
// are resolved.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	builder *index.Builder
	store   *cache.Store
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "agenthistory",
		Short: "Index and search Claude conversation history",
		Long: `agenthistory builds a newest-first index of the prompts recorded under a
Claude data directory (history.jsonl and projects/*/agent-*.jsonl) and
caches it so repeated lookups are fast.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = logging.Sync(a.log)
			}
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newCacheCmd(a))
	root.AddCommand(newRebuildCmd(a))
	root.AddCommand(newSearchCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newWatchCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	a.builder = index.NewBuilder(index.Options{
		Limits: cfg.ParserLimits(),
		Logger: log,
	})
	a.store = cache.NewStore(cfg.CacheDir, log)
	return nil
}

// loadIndex returns the index for the configured root, from the
// cache when it is fresh unless caching is disabled.
func (a *app) loadIndex() (idx *index.Index, fromCache bool, err error) {
	if a.cfg.NoCache {
		root, err := cache.CanonicalRoot(a.cfg.ClaudeDir)
		if err != nil {
			return nil, false, err
		}
		idx, err := a.builder.Build(root)
		return idx, false, err
	}
	return a.store.LoadOrBuild(a.cfg.ClaudeDir, a.builder)
}

// tildePath shortens a path under the home directory to ~/...
func tildePath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if rest, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return filepath.Join("~", rest)
	}
	return path
}
