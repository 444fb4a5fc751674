// Package config loads the service configuration from file, environment
// and defaults through viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SLEEPDIARY_HTTP_ADDR.
const EnvPrefix = "SLEEPDIARY"

// Config is the full service configuration.
type Config struct {
	Log      Log     `mapstructure:"log"`
	HTTP     HTTP    `mapstructure:"http"`
	Store    Store   `mapstructure:"store"`
	Redis    Redis   `mapstructure:"redis"`
	Session  Session `mapstructure:"session"`
	Cache    Cache   `mapstructure:"cache"`
	Locale   Locale  `mapstructure:"locale"`
	Timezone string  `mapstructure:"timezone"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Store selects the question store. Driver is memory or sqlite.
// Definitions are questionnaire files seeded into the store at startup.
type Store struct {
	Driver      string   `mapstructure:"driver"`
	Dir         string   `mapstructure:"dir"`
	Definitions []string `mapstructure:"definitions"`
}

// Redis configures wizard session persistence and the commit lock. An
// empty Addr keeps sessions in memory.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Session configures wizard snapshots. EncryptionKeys are base64 AES-256
// keys; the first seals new snapshots, the rest only open old ones.
type Session struct {
	EncryptionKeys []string `mapstructure:"encryption_keys"`
}

type Cache struct {
	Size int `mapstructure:"size"`
}

type Locale struct {
	Default string `mapstructure:"default"`
}

// DefaultLocale parses Locale.Default.
func (c Config) DefaultLocale() domain.Locale {
	return domain.ParseLocale(c.Locale.Default)
}

// Location loads the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DatabasePath is the SQLite file inside Store.Dir.
func (c Config) DatabasePath(file string) string {
	return filepath.Join(c.Store.Dir, file)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dir", ".sleepdiary")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "sleepdiary:session:")
	v.SetDefault("redis.ttl", 24*time.Hour)
	v.SetDefault("cache.size", 512)
	v.SetDefault("locale.default", string(domain.DefaultLocale))
	v.SetDefault("timezone", "Europe/Copenhagen")
}

// New returns a viper instance with defaults, env binding and the config
// search path set. file, when not empty, replaces the search path.
func New(file string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return v
	}
	v.SetConfigName("sleepdiary")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.sleepdiary")
	return v
}

// Load reads the configuration from v. A missing config file is not an
// error when none was named explicitly.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerations and the timezone.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: store.driver %q: want memory or sqlite", c.Store.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q: want text or json", c.Log.Format)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("config: cache.size must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	return nil
}
