// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	AdminIDs []int64 `yaml:"admin_ids"`

	// OperatorChatID receives alerts: invalid webhook signatures, pending
	// card-to-card reviews, sweep failures.
	OperatorChatID int64 `yaml:"operator_chat_id"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type WebConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`

	// PublicBaseURL is the externally reachable prefix providers redirect to.
	PublicBaseURL string `yaml:"public_base_url"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	SettingsTTL time.Duration `yaml:"settings_ttl"`
}

type BillingConfig struct {
	// Currency all providers are quoted in.
	Currency string `yaml:"currency"`

	// StalePendingTTL is how long a pending transaction may wait for its
	// webhook before the sweep fails it.
	StalePendingTTL time.Duration `yaml:"stale_pending_ttl"`

	Workers int `yaml:"workers"` // dispatcher pool size
}

type SchedulerConfig struct {
	ExpiryInterval  time.Duration `yaml:"expiry_interval"`
	AutopayInterval time.Duration `yaml:"autopay_interval"`
	// AutopayWindow is how far ahead of end_date the autopay sweep reaches.
	AutopayWindow time.Duration `yaml:"autopay_window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Web       WebConfig       `yaml:"web"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Billing   BillingConfig   `yaml:"billing"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	if cfg.Web.JWTSecret == "" {
		return nil, errors.New("web.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.SettingsTTL <= 0 {
		cfg.Redis.SettingsTTL = time.Minute
	}
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "RUB"
	}
	if cfg.Billing.StalePendingTTL <= 0 {
		cfg.Billing.StalePendingTTL = 24 * time.Hour
	}
	if cfg.Billing.Workers <= 0 {
		cfg.Billing.Workers = 8
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = 5 * time.Minute
	}
	if cfg.Scheduler.AutopayInterval <= 0 {
		cfg.Scheduler.AutopayInterval = time.Hour
	}
	if cfg.Scheduler.AutopayWindow <= 0 {
		cfg.Scheduler.AutopayWindow = 24 * time.Hour
	}
	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = time.Hour
	}
}
