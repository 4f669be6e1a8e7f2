package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the CLI configuration loaded from .env, an optional config
// file and environment variables.
type Config struct {
	AppName   string `mapstructure:"app_name"`
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
	UserAgent string `mapstructure:"user_agent"`

	CatalogURL     string `mapstructure:"catalog_url"`
	CatalogAPIPath string `mapstructure:"catalog_api_path"`
	MaxPages       int    `mapstructure:"max_pages"`

	OAuthURL          string `mapstructure:"oauth_url"`
	OAuthClientID     string `mapstructure:"oauth_client_id"`
	OAuthClientSecret string `mapstructure:"oauth_client_secret"`

	// RedisURL enables the shared Redis token store when set.
	RedisURL string `mapstructure:"redis_url"`

	RequestTimeoutSeconds int64         `mapstructure:"request_timeout"`
	RequestTimeout        time.Duration `mapstructure:"-"`
}

// Options control where Load looks for configuration.
type Options struct {
	// EnvFile is loaded with godotenv before reading the environment. A missing
	// file is ignored; a file that does not parse is an error.
	EnvFile string

	// ConfigFile is an optional YAML/TOML/JSON file read by viper.
	ConfigFile string
}

// Load reads configuration from environment variables and config files.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()

	v.SetDefault("app_name", "enterprise-catalog-client")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("user_agent", "enterprise-catalog-client/0.1.0")
	v.SetDefault("catalog_url", "")
	v.SetDefault("catalog_api_path", "/api/v1")
	v.SetDefault("max_pages", 10000)
	v.SetDefault("oauth_url", "")
	v.SetDefault("oauth_client_id", "")
	v.SetDefault("oauth_client_secret", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("request_timeout", 30) // seconds

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.CatalogURL == "" {
		return fmt.Errorf("catalog_url is required")
	}
	if c.OAuthURL == "" {
		return fmt.Errorf("oauth_url is required")
	}
	if c.OAuthClientID == "" || c.OAuthClientSecret == "" {
		return fmt.Errorf("oauth_client_id and oauth_client_secret are required")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid request_timeout (must be positive seconds)")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("invalid max_pages (must be positive)")
	}
	return nil
}

// APIBaseURL joins the catalog URL and API path, e.g. https://catalog/api/v1.
func (c *Config) APIBaseURL() string {
	base := strings.TrimRight(c.CatalogURL, "/")
	path := strings.Trim(c.CatalogAPIPath, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}
