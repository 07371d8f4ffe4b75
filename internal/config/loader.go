package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RAGE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RAGE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setDuration(&cfg.Ledger.OpenWindow, "RAGE_LEDGER_OPEN_WINDOW")
	setDuration(&cfg.Ledger.VoteWindow, "RAGE_LEDGER_VOTE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "RAGE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RAGE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RAGE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RAGE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RAGE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RAGE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RAGE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RAGE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RAGE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RAGE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "RAGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RAGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RAGE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RAGE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RAGE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RAGE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "RAGE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RAGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RAGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "RAGE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RAGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RAGE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RAGE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RAGE_S3_FORCE_PATH_STYLE")

	// ── Indexer ──
	setBool(&cfg.Indexer.Enabled, "RAGE_INDEXER_ENABLED")
	setDuration(&cfg.Indexer.Interval, "RAGE_INDEXER_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RAGE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RAGE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "RAGE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "RAGE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "RAGE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "RAGE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RAGE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RAGE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RAGE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RAGE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "RAGE_MODE")
	setStr(&cfg.LogLevel, "RAGE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
