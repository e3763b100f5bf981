package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "TOOLSHED"

type RateConfig struct {
	HomePerMinute int `mapstructure:"home_per_minute"`
	APIPerMinute  int `mapstructure:"api_per_minute"`
	GlobalPerHour int `mapstructure:"global_per_hour"`
	GlobalPerDay  int `mapstructure:"global_per_day"`
	// IdleTTL is how long an address may stay quiet before its request log is dropped.
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

type Config struct {
	Port           int        `mapstructure:"port"`
	SecretKey      string     `mapstructure:"secret_key"`
	DBPath         string     `mapstructure:"db_path"`
	CatalogPath    string     `mapstructure:"catalog_path"`
	StaticDir      string     `mapstructure:"static_dir"`
	TrustedProxies []string   `mapstructure:"trusted_proxies"`
	MetricsAddr    string     `mapstructure:"metrics_addr"`
	LogLevel       string     `mapstructure:"log_level"`
	LogFormat      string     `mapstructure:"log_format"`
	RateLimit      RateConfig `mapstructure:"rate_limit"`
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewViper returns a viper instance with every default set and the
// TOOLSHED_* environment bound. Callers may bind flags on top of it.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the hosting platform injects a bare PORT
	_ = v.BindEnv("port", EnvPrefix+"_PORT", "PORT")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 5000)
	v.SetDefault("secret_key", "dev-secret-change-me")
	v.SetDefault("db_path", "/data/reviews.db")
	v.SetDefault("catalog_path", DefaultCatalogPath())
	v.SetDefault("static_dir", "static")
	v.SetDefault("trusted_proxies", []string{"127.0.0.1", "::1"})
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("rate_limit.home_per_minute", 5)
	v.SetDefault("rate_limit.api_per_minute", 10)
	v.SetDefault("rate_limit.global_per_hour", 100)
	v.SetDefault("rate_limit.global_per_day", 2000)
	v.SetDefault("rate_limit.idle_ttl", 24*time.Hour)
}

// LoadConfig reads the optional config file (when path is non-empty) and
// decodes everything into a Config.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return Config{}, fmt.Errorf("secret_key must not be empty")
	}
	return cfg, nil
}

// DefaultCatalogPath is tools.json next to the running binary.
func DefaultCatalogPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "tools.json"
	}
	return filepath.Join(filepath.Dir(exe), "tools.json")
}
