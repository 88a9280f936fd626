package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort              int           `mapstructure:"APP_PORT"`
	DatabasePath         string        `mapstructure:"DATABASE_PATH"`
	StorageDriver        string        `mapstructure:"STORAGE_DRIVER"`
	RedisAddr            string        `mapstructure:"REDIS_ADDR"`
	UpstreamURL          string        `mapstructure:"UPSTREAM_URL"`
	UpstreamToken        string        `mapstructure:"UPSTREAM_TOKEN"`
	UpstreamWait         time.Duration `mapstructure:"UPSTREAM_WAIT"`
	DuplicateThreshold   int           `mapstructure:"DUPLICATE_THRESHOLD"`
	CompletionGrace      time.Duration `mapstructure:"COMPLETION_GRACE"`
	DefaultProvider      string        `mapstructure:"DEFAULT_PROVIDER"`
	DefaultReplyStrategy string        `mapstructure:"DEFAULT_REPLY_STRATEGY"`
	DefaultSystemPrompt  string        `mapstructure:"DEFAULT_SYSTEM_PROMPT"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	LogFile              string        `mapstructure:"LOG_FILE"`

	// ConfigFile is the .env file that was read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// Storage drivers.
const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetDefault("APP_PORT", 8000)
	v.SetDefault("DATABASE_PATH", "/data/relay.db")
	v.SetDefault("STORAGE_DRIVER", StorageSQLite)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("UPSTREAM_URL", "http://localhost:5000")
	v.SetDefault("UPSTREAM_TOKEN", "")
	v.SetDefault("UPSTREAM_WAIT", "0s")
	v.SetDefault("DUPLICATE_THRESHOLD", 20)
	v.SetDefault("COMPLETION_GRACE", "1s")
	v.SetDefault("DEFAULT_PROVIDER", "openrouter")
	v.SetDefault("DEFAULT_REPLY_STRATEGY", "discussion")
	v.SetDefault("DEFAULT_SYSTEM_PROMPT", "")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LOG_FILE", "")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageSQLite, StorageRedis:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DuplicateThreshold < 0 {
		return fmt.Errorf("DUPLICATE_THRESHOLD must not be negative, got %d", c.DuplicateThreshold)
	}
	if c.CompletionGrace < 0 {
		return fmt.Errorf("COMPLETION_GRACE must not be negative, got %s", c.CompletionGrace)
	}
	return nil
}
