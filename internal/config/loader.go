package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BETFEED_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BETFEED_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "BETFEED_DATABASE_DSN")
	setStr(&cfg.Database.Host, "BETFEED_DATABASE_HOST")
	setInt(&cfg.Database.Port, "BETFEED_DATABASE_PORT")
	setStr(&cfg.Database.Database, "BETFEED_DATABASE_NAME")
	setStr(&cfg.Database.User, "BETFEED_DATABASE_USER")
	setStr(&cfg.Database.Password, "BETFEED_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "BETFEED_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "BETFEED_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "BETFEED_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "BETFEED_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BETFEED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BETFEED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BETFEED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BETFEED_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BETFEED_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BETFEED_REDIS_TLS_ENABLED")

	// ── Storage ──
	setStr(&cfg.Storage.Endpoint, "BETFEED_STORAGE_ENDPOINT")
	setStr(&cfg.Storage.Region, "BETFEED_STORAGE_REGION")
	setStr(&cfg.Storage.Bucket, "BETFEED_STORAGE_BUCKET")
	setStr(&cfg.Storage.AccessKey, "BETFEED_STORAGE_ACCESS_KEY")
	setStr(&cfg.Storage.SecretKey, "BETFEED_STORAGE_SECRET_KEY")
	setBool(&cfg.Storage.UseSSL, "BETFEED_STORAGE_USE_SSL")
	setBool(&cfg.Storage.ForcePathStyle, "BETFEED_STORAGE_FORCE_PATH_STYLE")
	setInt(&cfg.Storage.URLValidityHours, "BETFEED_STORAGE_URL_VALIDITY_HOURS")

	// ── Auth ──
	setStr(&cfg.Auth.JWTSecret, "BETFEED_AUTH_JWT_SECRET")

	// ── Feed ──
	setInt(&cfg.Feed.PageSize, "BETFEED_FEED_PAGE_SIZE")

	// ── Detector ──
	setInt(&cfg.Detector.IntervalSeconds, "BETFEED_DETECTOR_INTERVAL_SECONDS")
	setInt(&cfg.Detector.OverlapSeconds, "BETFEED_DETECTOR_OVERLAP_SECONDS")
	setInt(&cfg.Detector.AlertAfterFails, "BETFEED_DETECTOR_ALERT_AFTER_FAILS")

	// ── Server ──
	setInt(&cfg.Server.Port, "BETFEED_SERVER_PORT")
	setInt(&cfg.Server.PlacementPerMin, "BETFEED_SERVER_PLACEMENT_PER_MIN")
	if v := os.Getenv("BETFEED_SERVER_CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		cfg.Server.CORSOrigins = origins
	}

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BETFEED_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BETFEED_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BETFEED_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top level ──
	setStr(&cfg.Mode, "BETFEED_MODE")
	setStr(&cfg.LogLevel, "BETFEED_LOG_LEVEL")
}

// setStr overwrites dst when the environment variable is set and non-empty.
func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt overwrites dst when the environment variable parses as an integer.
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setBool overwrites dst when the environment variable parses as a boolean.
func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
