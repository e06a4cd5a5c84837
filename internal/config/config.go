// Package config loads server configuration from a config file (if
// present) and environment variables, following
// smartramana-developer-mesh/internal/config/config.go's viper pattern:
// defaults set in code, environment variables override under a service
// prefix, and an optional config file overrides the defaults in between.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every knob cmd/caretd needs at startup.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `mapstructure:"addr"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `mapstructure:"log_level"`

	// RedisAddr, if non-empty, enables cross-process relay over Redis
	// pub/sub. Empty disables relay and runs single-process only.
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight connections to drain.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads configuration from CARET_CONFIG_FILE (or ./config.yaml, if
// present) and environment variables prefixed CARET_, applying defaults
// for anything unset by either.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CARET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := v.GetString("config_file")
	if configFile == "" {
		configFile = "config.yaml"
	}
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		// With an explicit SetConfigFile, a missing file surfaces as an
		// fs.PathError rather than viper.ConfigFileNotFoundError.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("shutdown_timeout", 5*time.Second)
}
