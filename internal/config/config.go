// Package config handles runtime configuration: defaults, an optional YAML
// file pointed at by LIFEOS_CONFIG, and environment overrides, applied in
// that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting of the server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	Currency  CurrencyConfig  `yaml:"currency"`
	Assistant AssistantConfig `yaml:"assistant"`
	Mail      MailConfig      `yaml:"mail"`
	Billing   BillingConfig   `yaml:"billing"`
	Engine    EngineConfig    `yaml:"engine"`
}

type ServerConfig struct {
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	AuditLogPath      string   `yaml:"audit_log_path"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePrefix string `yaml:"file_prefix"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type CurrencyConfig struct {
	RatesURL        string        `yaml:"rates_url"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type AssistantConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type MailConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	From         string `yaml:"from"`
	WebhookToken string `yaml:"webhook_token"`
}

type BillingConfig struct {
	PaystackSecret     string `yaml:"paystack_secret"`
	PaystackBaseURL    string `yaml:"paystack_base_url"`
	FlutterwaveSecret  string `yaml:"flutterwave_secret"`
	FlutterwaveHash    string `yaml:"flutterwave_hash"`
	FlutterwaveBaseURL string `yaml:"flutterwave_base_url"`
}

type EngineConfig struct {
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	SessionPruneInterval time.Duration `yaml:"session_prune_interval"`
}

// Default returns the development defaults. Production deployments override
// at least the JWT secret and database URL.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			RequestsPerMinute: 300,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Auth: AuthConfig{
			SessionTTL: 24 * time.Hour,
		},
		Currency: CurrencyConfig{
			RefreshInterval: time.Hour,
		},
		Billing: BillingConfig{
			PaystackBaseURL:    "https://api.paystack.co",
			FlutterwaveBaseURL: "https://api.flutterwave.com/v3",
		},
		Engine: EngineConfig{
			SweepInterval:        time.Minute,
			SessionPruneInterval: time.Hour,
		},
	}
}

// Load builds the Config from defaults, the optional YAML file named by
// LIFEOS_CONFIG, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("LIFEOS_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Host, "LIFEOS_SERVER_HOST")
	setInt(&c.Server.Port, "LIFEOS_SERVER_PORT")
	setInt(&c.Server.RequestsPerMinute, "LIFEOS_RATE_LIMIT")
	setString(&c.Server.AuditLogPath, "LIFEOS_AUDIT_LOG")
	if v := os.Getenv("LIFEOS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitAndTrim(v)
	}

	setString(&c.Database.Driver, "LIFEOS_DB_DRIVER")
	setString(&c.Database.URL, "LIFEOS_DATABASE_URL")
	setInt(&c.Database.MaxOpenConns, "LIFEOS_DB_MAX_OPEN_CONNS")
	setInt(&c.Database.MaxIdleConns, "LIFEOS_DB_MAX_IDLE_CONNS")
	setDuration(&c.Database.ConnMaxLifetime, "LIFEOS_DB_CONN_MAX_LIFETIME")

	setString(&c.Logging.Level, "LIFEOS_LOG_LEVEL")
	setString(&c.Logging.Format, "LIFEOS_LOG_FORMAT")
	setString(&c.Logging.Output, "LIFEOS_LOG_OUTPUT")
	setString(&c.Logging.FilePrefix, "LIFEOS_LOG_FILE_PREFIX")

	setString(&c.Auth.JWTSecret, "LIFEOS_JWT_SECRET")
	setDuration(&c.Auth.SessionTTL, "LIFEOS_SESSION_TTL")

	setString(&c.Currency.RatesURL, "LIFEOS_RATES_URL")
	setDuration(&c.Currency.RefreshInterval, "LIFEOS_RATES_REFRESH_INTERVAL")

	setString(&c.Assistant.BaseURL, "LIFEOS_AI_BASE_URL")
	setString(&c.Assistant.APIKey, "LIFEOS_AI_API_KEY")
	setString(&c.Assistant.Model, "LIFEOS_AI_MODEL")

	setString(&c.Mail.BaseURL, "LIFEOS_MAIL_BASE_URL")
	setString(&c.Mail.APIKey, "LIFEOS_MAIL_API_KEY")
	setString(&c.Mail.From, "LIFEOS_MAIL_FROM")
	setString(&c.Mail.WebhookToken, "LIFEOS_MAIL_WEBHOOK_TOKEN")

	setString(&c.Billing.PaystackSecret, "LIFEOS_PAYSTACK_SECRET")
	setString(&c.Billing.PaystackBaseURL, "LIFEOS_PAYSTACK_BASE_URL")
	setString(&c.Billing.FlutterwaveSecret, "LIFEOS_FLUTTERWAVE_SECRET")
	setString(&c.Billing.FlutterwaveHash, "LIFEOS_FLUTTERWAVE_HASH")
	setString(&c.Billing.FlutterwaveBaseURL, "LIFEOS_FLUTTERWAVE_BASE_URL")

	setDuration(&c.Engine.SweepInterval, "LIFEOS_ENGINE_SWEEP_INTERVAL")
	setDuration(&c.Engine.SessionPruneInterval, "LIFEOS_SESSION_PRUNE_INTERVAL")
}

// Validate checks the settings a misconfigured deployment most often gets
// wrong.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests per minute must be positive, got %d", c.Server.RequestsPerMinute)
	}
	if c.Database.URL != "" && c.Database.Driver == "" {
		return fmt.Errorf("database driver required when database url is set")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.Auth.SessionTTL)
	}
	if c.Currency.RefreshInterval <= 0 {
		return fmt.Errorf("currency refresh interval must be positive, got %s", c.Currency.RefreshInterval)
	}
	if c.Engine.SweepInterval <= 0 {
		return fmt.Errorf("engine sweep interval must be positive, got %s", c.Engine.SweepInterval)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
