package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string
	AllowedOrigins []string
	GatewayToken   string

	DatabaseURL string

	RedisURL      string
	StatsCacheTTL time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string

	TelegramBotToken string
	TelegramGroupID  int64

	ProfileSyncURL      string
	ProfileSyncToken    string
	ProfileSyncInterval time.Duration

	StatsRefreshInterval time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "5200"),
		Env:            getEnv("APP_ENV", "development"),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		GatewayToken:   getEnv("GATEWAY_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL:      getEnv("REDIS_URL", ""),
		StatsCacheTTL: getEnvAsDuration("STATS_CACHE_TTL", 5*time.Minute),

		R2AccountID:       getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
		R2Bucket:          getEnv("R2_BUCKET_NAME", ""),
		CDNBaseURL:        getEnv("CDN_BASE_URL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramGroupID:  getEnvAsInt64("TELEGRAM_GROUP_ID", 0),

		ProfileSyncURL:      getEnv("PROFILE_SYNC_URL", ""),
		ProfileSyncToken:    getEnv("PROFILE_SYNC_TOKEN", ""),
		ProfileSyncInterval: getEnvAsDuration("PROFILE_SYNC_INTERVAL", time.Minute),

		StatsRefreshInterval: getEnvAsDuration("STATS_REFRESH_INTERVAL", 15*time.Minute),
	}
	return cfg
}

func (c *Config) Production() bool { return c.Env == "production" }

// RequireDatabase is the minimum every command needs.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}
	return nil
}

// Validate checks what the HTTP server needs on top of the database.
func (c *Config) Validate() error {
	var errs []error
	if err := c.RequireDatabase(); err != nil {
		errs = append(errs, err)
	}
	if c.GatewayToken == "" {
		errs = append(errs, errors.New("GATEWAY_TOKEN is not set, service cannot authenticate the gateway"))
	}
	if c.TelegramBotToken != "" && c.TelegramGroupID == 0 {
		errs = append(errs, errors.New("TELEGRAM_GROUP_ID is required when TELEGRAM_BOT_TOKEN is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	strVal := getEnv(key, "")
	if val, err := strconv.ParseInt(strVal, 10, 64); err == nil {
		return val
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strVal := getEnv(key, "")
	if val, err := time.ParseDuration(strVal); err == nil {
		return val
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	val := getEnv(key, "")
	if val == "" {
		return defaultValue
	}
	parts := strings.Split(val, ",")
	out := parts[:0]
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
