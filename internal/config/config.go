// Package config defines the top-level configuration for the betfeed service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BETFEED_* environment
// variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Storage  StorageConfig  `toml:"storage"`
	Auth     AuthConfig     `toml:"auth"`
	Feed     FeedConfig     `toml:"feed"`
	Detector DetectorConfig `toml:"detector"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// StorageConfig holds S3-compatible object storage parameters for the
// avatars bucket and signed-URL issuance.
type StorageConfig struct {
	Endpoint         string `toml:"endpoint"`
	Region           string `toml:"region"`
	Bucket           string `toml:"bucket"`
	AccessKey        string `toml:"access_key"`
	SecretKey        string `toml:"secret_key"`
	UseSSL           bool   `toml:"use_ssl"`
	ForcePathStyle   bool   `toml:"force_path_style"`
	URLValidityHours int    `toml:"url_validity_hours"`
}

// URLValidity returns the signed-URL lifetime as a duration.
func (s StorageConfig) URLValidity() time.Duration {
	hours := s.URLValidityHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// AuthConfig holds token verification parameters. Tokens are issued by the
// external identity provider; this service only verifies them.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// FeedConfig holds feed assembly parameters.
type FeedConfig struct {
	PageSize int `toml:"page_size"`
}

// DetectorConfig holds change-detector scheduling parameters.
type DetectorConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
	OverlapSeconds  int `toml:"overlap_seconds"`
	AlertAfterFails int `toml:"alert_after_fails"`
}

// Interval returns the detector tick period.
func (d DetectorConfig) Interval() time.Duration {
	secs := d.IntervalSeconds
	if secs <= 0 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

// Overlap returns the safety overlap window re-scanned on every tick.
func (d DetectorConfig) Overlap() time.Duration {
	secs := d.OverlapSeconds
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs) * time.Second
}

// ServerConfig holds the HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	PlacementPerMin int      `toml:"placement_per_min"`
}

// NotifyConfig holds operator alerting parameters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with sensible defaults for local
// development. Loaded files and environment overrides are merged on top.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "betfeed",
			User:         "betfeed",
			SSLMode:      "disable",
			PoolMaxConns: 8,
			PoolMinConns: 1,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Storage: StorageConfig{
			Region:           "us-east-1",
			Bucket:           "avatars",
			UseSSL:           true,
			URLValidityHours: 24,
		},
		Feed: FeedConfig{
			PageSize: 20,
		},
		Detector: DetectorConfig{
			IntervalSeconds: 60,
			OverlapSeconds:  5,
			AlertAfterFails: 3,
		},
		Server: ServerConfig{
			Port:            8080,
			PlacementPerMin: 30,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// Validate checks that the configuration is internally consistent and that
// all required fields for the selected mode are present.
func (c *Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	switch mode {
	case "full", "api", "detector":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Database == "" || c.Database.User == "") {
		return fmt.Errorf("config: database requires either dsn or host/database/user")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis addr is required")
	}

	if mode != "detector" {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("config: auth jwt_secret is required for API modes")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("config: server port %d out of range", c.Server.Port)
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: storage bucket is required for API modes")
		}
	}

	if c.Feed.PageSize <= 0 || c.Feed.PageSize > 100 {
		return fmt.Errorf("config: feed page_size %d out of range (1-100)", c.Feed.PageSize)
	}

	if c.Detector.IntervalSeconds <= 0 {
		return fmt.Errorf("config: detector interval_seconds must be positive")
	}
	if c.Detector.Overlap() >= c.Detector.Interval() {
		return fmt.Errorf("config: detector overlap must be shorter than the interval")
	}

	return nil
}
