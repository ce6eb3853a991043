package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all b0t configuration.
// Priority: B0T_* env vars > config file > defaults.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Vault     VaultConfig     `mapstructure:"vault"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=libsql postgres"`
	// DSN is a file: URI for libsql or a connection string for postgres.
	DSN string `mapstructure:"dsn" validate:"required"`
}

// VaultConfig keys the credential cipher. MasterKey (hex or base64, 32
// bytes) wins over Passphrase; with neither, credentials are disabled.
type VaultConfig struct {
	MasterKey  string `mapstructure:"master_key"`
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt" validate:"required_with=Passphrase"`
}

// Enabled reports whether a key source is configured.
func (v VaultConfig) Enabled() bool {
	return v.MasterKey != "" || v.Passphrase != ""
}

type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxResponseBody int64         `mapstructure:"max_response_body" validate:"gte=0"`
}

// RateLimitConfig throttles module calls per category.module.
// PerSecond 0 disables throttling.
type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" validate:"gte=0"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter" validate:"oneof=stdout none"`
}

func b0tDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".b0t"
	}
	return filepath.Join(home, ".b0t")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.dsn", "file:"+filepath.Join(b0tDir(), "b0t.db"))
	v.SetDefault("vault.master_key", "")
	v.SetDefault("vault.passphrase", "")
	v.SetDefault("vault.salt", "")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_response_body", 10<<20)
	v.SetDefault("rate_limit.per_second", 0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
}

// loadConfig reads path (or config.yaml from . and ~/.b0t when path is
// empty), applies env overrides and validates the result. A missing
// default config file is not an error.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("B0T")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(b0tDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their config key names.
func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		return name
	})
	return v
}

func validateConfig(cfg *Config) error {
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", configKey(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// configKey turns "Config.store.driver" into "store.driver".
func configKey(namespace string) string {
	return strings.TrimPrefix(namespace, "Config.")
}
