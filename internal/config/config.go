// Package config loads server configuration from a yaml file and the
// environment. Environment variables use the EVENTAGENT_ prefix with
// underscores for nesting, e.g. EVENTAGENT_REDIS_ADDR.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration surface of the server.
type Config struct {
	Listen         string        `mapstructure:"listen" yaml:"listen"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Router  RouterConfig  `mapstructure:"router" yaml:"router"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Gate    GateConfig    `mapstructure:"gate" yaml:"gate"`
}

// RedisConfig selects and configures the redis backend. When Enabled is
// false the server runs on the in-memory stores.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// RouterConfig carries the routing thresholds.
type RouterConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	Margin              float64 `mapstructure:"margin" yaml:"margin"`
	RecencyBonus        float64 `mapstructure:"recency_bonus" yaml:"recency_bonus"`
	MaxAlternatives     int     `mapstructure:"max_alternatives" yaml:"max_alternatives"`
}

// SessionConfig carries session retention and frustration settings.
type SessionConfig struct {
	TTL                  time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxEntries           int           `mapstructure:"max_entries" yaml:"max_entries"`
	WriteRetries         int           `mapstructure:"write_retries" yaml:"write_retries"`
	FrustrationWindow    time.Duration `mapstructure:"frustration_window" yaml:"frustration_window"`
	FrustrationThreshold int           `mapstructure:"frustration_threshold" yaml:"frustration_threshold"`
}

// GateConfig carries the confirmation gate settings.
type GateConfig struct {
	MonetaryCeiling float64       `mapstructure:"monetary_ceiling" yaml:"monetary_ceiling"`
	ConfirmationTTL time.Duration `mapstructure:"confirmation_ttl" yaml:"confirmation_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", 30*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("router.confidence_threshold", 0.55)
	v.SetDefault("router.margin", 0.1)
	v.SetDefault("router.recency_bonus", 0.05)
	v.SetDefault("router.max_alternatives", 3)

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.max_entries", 10)
	v.SetDefault("session.write_retries", 2)
	v.SetDefault("session.frustration_window", 10*time.Minute)
	v.SetDefault("session.frustration_threshold", 2)

	v.SetDefault("gate.monetary_ceiling", 10_000_000)
	v.SetDefault("gate.confirmation_ttl", time.Hour)
}

// Load reads configuration from the optional yaml file at path, then the
// environment, then the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EVENTAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
