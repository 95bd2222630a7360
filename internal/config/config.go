// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ProcessorConfig struct {
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	WebhookSecret      string        `yaml:"webhook_secret"`
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
	DefaultOrigin      string        `yaml:"default_origin"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type BillingConfig struct {
	TxTimeout time.Duration           `yaml:"tx_timeout"`
	Catalog   map[string]CatalogEntry `yaml:"catalog"` // overrides the built-in table when set
}

type CatalogEntry struct {
	TokenCredit int64  `yaml:"token_credit"`
	Tier        string `yaml:"tier"`
}

type WebhookConfig struct {
	RateLimit       int           `yaml:"rate_limit"` // deliveries per window per sender
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Processor ProcessorConfig `yaml:"processor"`
	Auth      AuthConfig      `yaml:"auth"`
	Billing   BillingConfig   `yaml:"billing"`
	Webhook   WebhookConfig   `yaml:"webhook"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, applies environment overrides for secrets
// and fills in defaults. Values only; no behavior lives here.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Env overrides keep secrets out of the file.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PROCESSOR_API_KEY"); v != "" {
		cfg.Processor.APIKey = v
	}
	if v := os.Getenv("WEBHOOK_SIGNING_SECRET"); v != "" {
		cfg.Processor.WebhookSecret = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Processor.BaseURL == "" {
		cfg.Processor.BaseURL = "https://api.payproc.example.com"
	}
	if cfg.Processor.SignatureTolerance <= 0 {
		cfg.Processor.SignatureTolerance = 5 * time.Minute
	}
	if cfg.Processor.DefaultOrigin == "" {
		cfg.Processor.DefaultOrigin = "http://localhost:3000"
	}
	if cfg.Billing.TxTimeout <= 0 {
		cfg.Billing.TxTimeout = 10 * time.Second
	}
	if cfg.Webhook.RateLimit <= 0 {
		cfg.Webhook.RateLimit = 120
	}
	if cfg.Webhook.RateLimitWindow <= 0 {
		cfg.Webhook.RateLimitWindow = time.Minute
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Processor.APIKey == "" {
		return nil, errors.New("processor.api_key is required")
	}
	if cfg.Processor.WebhookSecret == "" {
		return nil, errors.New("processor.webhook_secret is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}
