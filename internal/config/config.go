// Package config provides configuration loading and validation.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// CORS
	AllowedOrigins []string

	// Rate Limiting
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Retrieval
	PrimaryTimeout     time.Duration
	YtDlpPath          string
	YtDlpTimeout       time.Duration
	CookiesFromBrowser string
	StaticProxy        string

	// Proxy Pool
	ProxySources        []string
	ProxyUpdateInterval time.Duration
	ProxyEvictAfter     int
	ProxyQuarantineTTL  time.Duration

	// Media
	FFmpegPath    string
	FFmpegTimeout time.Duration

	// Translation
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// R2 Storage
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	// Cleanup
	CleanupInterval time.Duration
	MaxFileAge      time.Duration
	R2MaxFileAge    time.Duration

	// Paths
	TempDir      string
	DownloadsDir string
	DataDir      string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		// Server
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// CORS
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),

		// Rate Limiting
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 10),

		// Retrieval
		PrimaryTimeout:     time.Duration(getEnvInt("PRIMARY_TIMEOUT_SECONDS", 120)) * time.Second,
		YtDlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
		YtDlpTimeout:       time.Duration(getEnvInt("YTDLP_TIMEOUT_SECONDS", 600)) * time.Second,
		CookiesFromBrowser: getEnv("COOKIES_FROM_BROWSER", ""),
		StaticProxy:        getEnv("PROXY_URL", ""),

		// Proxy Pool
		ProxySources:        splitNonEmpty(getEnv("PROXY_SOURCES", "")),
		ProxyUpdateInterval: time.Duration(getEnvInt("PROXY_UPDATE_INTERVAL", 60)) * time.Minute,
		ProxyEvictAfter:     getEnvInt("PROXY_EVICT_AFTER", 5),
		ProxyQuarantineTTL:  time.Duration(getEnvInt("PROXY_QUARANTINE_MINUTES", 30)) * time.Minute,

		// Media
		FFmpegPath:    getEnv("FFMPEG_PATH", "ffmpeg"),
		FFmpegTimeout: time.Duration(getEnvInt("FFMPEG_TIMEOUT_SECONDS", 900)) * time.Second,

		// Translation
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		// R2 Storage
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// Cleanup
		CleanupInterval: time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute,
		MaxFileAge:      time.Duration(getEnvInt("MAX_FILE_AGE_MINUTES", 120)) * time.Minute,
		R2MaxFileAge:    time.Duration(getEnvInt("R2_MAX_FILE_AGE_MINUTES", 60)) * time.Minute,

		// Paths
		TempDir:      getEnv("TEMP_DIR", "./tmp"),
		DownloadsDir: getEnv("DOWNLOADS_DIR", "./downloads"),
		DataDir:      getEnv("DATA_DIR", "./data"),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// R2Configured reports whether all required R2 credentials are set.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitNonEmpty(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
