package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionSecret string
	SessionMaxAge int

	// SMS (Plivo)
	PlivoAuthID    string
	PlivoAuthToken string
	PlivoNumber    string
	SMSTimeout     time.Duration

	// Storage (S3)
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string

	// Statement
	StatementLinkTTL time.Duration
	StatementTimeout time.Duration

	// Notification worker
	NotifyInterval      time.Duration
	NotifyStaleAfter    time.Duration
	NotifyMaxConcurrent int

	// Cleanup
	CleanupInterval           time.Duration
	NotificationRetentionDays int

	// Rate Limit
	RateLimitGeneral   int
	RateLimitStatement int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// SMSConfigured はPlivoの認証情報と送信元番号がすべて設定されているかを返す。
func (c *Config) SMSConfigured() bool {
	return c.PlivoAuthID != "" && c.PlivoAuthToken != "" && c.PlivoNumber != ""
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込むが、既存の環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは任意
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.PlivoAuthID = getEnvString("PLIVO_AUTH_ID", "")
	cfg.PlivoAuthToken = getEnvString("PLIVO_AUTH_TOKEN", "")
	cfg.PlivoNumber = getEnvString("PLIVO_NUM", "")
	cfg.SMSTimeout = getEnvDuration("SMS_TIMEOUT", 10*time.Second)
	cfg.AWSRegion = getEnvString("AWS_REGION", "ap-south-1")
	cfg.AWSAccessKeyID = getEnvString("AWS_ACCESS_ID", "")
	cfg.AWSSecretAccessKey = getEnvString("AWS_SECRET_ACCESS_KEY", "")
	cfg.S3Bucket = getEnvString("S3_BUCKET", "")
	cfg.StatementLinkTTL = getEnvDuration("STATEMENT_LINK_TTL", time.Hour)
	cfg.StatementTimeout = getEnvDuration("STATEMENT_TIMEOUT", 30*time.Second)
	cfg.NotifyInterval = getEnvDuration("NOTIFY_INTERVAL", time.Minute)
	cfg.NotifyStaleAfter = getEnvDuration("NOTIFY_STALE_AFTER", 2*time.Minute)
	cfg.NotifyMaxConcurrent = getEnvInt("NOTIFY_MAX_CONCURRENT", 5)
	cfg.CleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 24*time.Hour)
	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitStatement = getEnvInt("RATE_LIMIT_STATEMENT", 5)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
