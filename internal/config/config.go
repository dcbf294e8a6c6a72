package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/wesm/agenthistory/internal/parser"
)

const (
	envPrefix         = "AGENTHISTORY_"
	maxConfigFileSize = 1 << 20 // 1 MiB
)

// Limits mirrors parser.Limits with config keys.
type Limits struct {
	MaxProjects        int   `koanf:"max_projects"`
	MaxFilesPerProject int   `koanf:"max_files_per_project"`
	MaxFileSize        int64 `koanf:"max_file_size"`
}

// Config holds all application configuration.
type Config struct {
	ClaudeDir string `koanf:"claude_dir"`
	CacheDir  string `koanf:"cache_dir"`
	NoCache   bool   `koanf:"no_cache"`
	LogLevel  string `koanf:"log_level"`
	Limits    Limits `koanf:"limits"`

	// ConfigFile is the YAML file that was consulted. It may
	// not exist.
	ConfigFile string `koanf:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	cacheBase, err := os.UserCacheDir()
	if err != nil {
		cacheBase = filepath.Join(home, ".cache")
	}
	return Config{
		ClaudeDir: filepath.Join(home, ".claude"),
		CacheDir:  filepath.Join(cacheBase, "agenthistory"),
		LogLevel:  "warn",
		Limits: Limits{
			MaxProjects:        parser.DefaultMaxProjects,
			MaxFilesPerProject: parser.DefaultMaxFilesPerProject,
			MaxFileSize:        parser.DefaultMaxFileSize,
		},
		ConfigFile: filepath.Join(
			home, ".config", "agenthistory", "config.yaml",
		),
	}, nil
}

// Load builds a Config by layering:
// defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower
// layers. fs may be nil.
func Load(fs *pflag.FlagSet) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}

	if v := os.Getenv(envPrefix + "CONFIG"); v != "" {
		cfg.ConfigFile = v
	}
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			cfg.ConfigFile = f.Value.String()
		}
	}

	k := koanf.New(".")
	if err := loadFile(k, cfg.ConfigFile); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}

	// CLAUDE_DIR is honored for compatibility but loses to the
	// prefixed variable.
	if v := os.Getenv("CLAUDE_DIR"); v != "" {
		if err := k.Set("claude_dir", v); err != nil {
			return cfg, fmt.Errorf("applying CLAUDE_DIR: %w", err)
		}
	}
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	applyFlags(&cfg, fs)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envKey maps AGENTHISTORY_CLAUDE_DIR to claude_dir and
// AGENTHISTORY_LIMITS_MAX_FILE_SIZE to limits.max_file_size.
// Empty values are skipped.
func envKey(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	if value == "" || key == "config" {
		return "", nil
	}
	if rest, ok := strings.CutPrefix(key, "limits_"); ok {
		return "limits." + rest, value
	}
	return key, value
}

// loadFile reads path into k. The file is opened once and
// validated through the handle. A missing file is not an
// error.
func loadFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf(
			"%s is too large (%d bytes, max %d)",
			path, info.Size(), maxConfigFileSize,
		)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// RegisterFlags registers the global flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (default ~/.config/agenthistory/config.yaml)")
	fs.String("claude-dir", "", "Conversation log root (default ~/.claude)")
	fs.String("cache-dir", "", "Cache directory")
	fs.Bool("no-cache", false, "Always rebuild; never read or write the cache")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "claude-dir":
			cfg.ClaudeDir = f.Value.String()
		case "cache-dir":
			cfg.CacheDir = f.Value.String()
		case "no-cache":
			cfg.NoCache = f.Value.String() == "true"
		case "log-level":
			cfg.LogLevel = f.Value.String()
		}
	})
}

// Validate checks values that would otherwise fail later.
func (c Config) Validate() error {
	if c.ClaudeDir == "" {
		return errors.New("claude_dir must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	l := c.Limits
	if l.MaxProjects < 0 || l.MaxFilesPerProject < 0 || l.MaxFileSize < 0 {
		return errors.New("limits must not be negative")
	}
	return nil
}

// ParserLimits converts the configured caps. Zero fields fall
// back to the parser defaults.
func (c Config) ParserLimits() parser.Limits {
	return parser.Limits{
		MaxProjects:        c.Limits.MaxProjects,
		MaxFilesPerProject: c.Limits.MaxFilesPerProject,
		MaxFileSize:        c.Limits.MaxFileSize,
	}.WithDefaults()
}
