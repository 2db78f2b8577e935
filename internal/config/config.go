// Package config loads the shell configuration from a config file,
// environment variables and defaults, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the complete shell configuration.
type Config struct {
	// Prompt is the interactive prompt.
	Prompt string `mapstructure:"prompt"`
	// HistoryFile stores the readline history. Empty disables history.
	HistoryFile string `mapstructure:"history_file"`
	// CacheEntries bounds the resolver's artifact cache. Zero keeps the
	// cache unbounded for the session.
	CacheEntries int `mapstructure:"cache_entries"`
	// DrawerFile, when set, receives a Graphviz DOT rendering of the
	// session's pipelines.
	DrawerFile string `mapstructure:"drawer_file"`
	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `mapstructure:"log_level"`
	// LogFile receives JSON logs. Empty logs to stderr.
	LogFile string `mapstructure:"log_file"`
	// Isolated selects the isolated worker unit variant. When false,
	// stages run co-located with the shell.
	Isolated bool `mapstructure:"isolated"`
}

// Load reads the configuration. The config file is optional; defaults apply
// when it is absent.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("prompt", "wapm$ ")
	v.SetDefault("history_file", defaultHistoryFile())
	v.SetDefault("cache_entries", 0)
	v.SetDefault("drawer_file", "")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("log_file", "")
	v.SetDefault("isolated", true)

	v.SetEnvPrefix("WAPMSH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "wapmsh"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "unable to read config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal config")
	}

	return cfg, nil
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".wapmsh_history")
}
