package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the tool reads, for
// example AUTOFACTOOL_MODULE_FLAG.
const EnvPrefix = "AUTOFACTOOL"

// Settings is the tool configuration after merging defaults, the config
// file, the environment and command line flags, in increasing priority.
type Settings struct {
	LogLevel        string         `mapstructure:"log_level"`
	EagerSingletons bool           `mapstructure:"eager_singletons"`
	Module          ModuleSettings `mapstructure:"module"`
}

// ModuleSettings configures SomeModule.
type ModuleSettings struct {
	Flag     bool   `mapstructure:"flag"`
	Greeting string `mapstructure:"greeting"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		LogLevel: "info",
		Module: ModuleSettings{
			Greeting: "hello",
		},
	}
}

// LoadSettings reads configuration from the optional YAML file at path and
// from AUTOFACTOOL_* environment variables.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("eager_singletons", defaults.EagerSingletons)
	v.SetDefault("module.flag", defaults.Module.Flag)
	v.SetDefault("module.greeting", defaults.Module.Greeting)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decoding config: %w", err)
	}

	if _, err := parseLogLevel(s.LogLevel); err != nil {
		return Settings{}, err
	}

	return s, nil
}

var errLogLevel = errors.New("invalid log level")

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w %q (want debug, info, warn or error)", errLogLevel, level)
	}
}
