package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds engine-level settings loaded from weft.yaml and the environment.
type Config struct {
	// LogLevel controls the file logger verbosity: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// MaxTurns bounds a single orchestrator run; 0 means unbounded.
	MaxTurns int `mapstructure:"max_turns"`
	// DatabaseURL configures the Postgres thread store; empty selects the
	// in-memory store.
	DatabaseURL string `mapstructure:"database_url"`
	// MemoryPath is the chromem persistence directory; empty keeps vector
	// memory in RAM only.
	MemoryPath string `mapstructure:"memory_path"`
	// MCPStartupTimeout bounds each tool-server initialize handshake.
	MCPStartupTimeout time.Duration `mapstructure:"mcp_startup_timeout"`
	// RecallMessageWindow is how many recent thread messages feed automatic
	// memory recall queries.
	RecallMessageWindow int `mapstructure:"recall_message_window"`
	// ToolCacheTTL is how long server tool results stay cached; 0 disables
	// the cache.
	ToolCacheTTL time.Duration `mapstructure:"tool_cache_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:            "info",
		MaxTurns:            0,
		MCPStartupTimeout:   30 * time.Second,
		RecallMessageWindow: 6,
		ToolCacheTTL:        5 * time.Minute,
	}
}

// Load reads weft.yaml from the working directory or ~/.weft, applying
// WEFT_-prefixed environment overrides. A missing config file is not an
// error; defaults apply.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("weft")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.weft")

	v.SetEnvPrefix("WEFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("max_turns", defaults.MaxTurns)
	v.SetDefault("mcp_startup_timeout", defaults.MCPStartupTimeout)
	v.SetDefault("recall_message_window", defaults.RecallMessageWindow)
	v.SetDefault("tool_cache_ttl", defaults.ToolCacheTTL)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.MaxTurns < 0 {
		return Config{}, fmt.Errorf("max_turns must not be negative, got %d", cfg.MaxTurns)
	}
	if cfg.RecallMessageWindow <= 0 {
		cfg.RecallMessageWindow = defaults.RecallMessageWindow
	}
	return cfg, nil
}

