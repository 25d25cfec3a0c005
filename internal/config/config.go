package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		GoogleBooks
		Tasks
		CoverSync
		Covers
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		TokenSecret     string        // HMAC key for bearer tokens, generated per process if empty
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	GoogleBooks struct {
		BaseURL     string
		APIKey      string
		Timeout     time.Duration
		MinInterval time.Duration // Minimum spacing between outbound calls, 0 disables throttling
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Covers struct {
		CacheDir string // Empty disables the local cover cache
	}
	CoverSync struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
)

// loadDotEnv reads an optional .env file into the process environment.
// Variables already set in the environment win.
func loadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		log.Printf("No .env file loaded, using process environment")
	}
}

func NewConfig() *Config {
	loadDotEnv()
	return newConfigFromEnv()
}

func newConfigFromEnv() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Auth defaults
	v.SetDefault("auth_session_secret", "")       // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")  // 24 hours
	v.SetDefault("auth_token_secret", "")         // Auto-generated if empty
	v.SetDefault("auth_token_expiry", "720h")     // 30 days
	v.SetDefault("auth_bcrypt_cost", 12)          // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("auth_max_login_attempts", 5)    // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m") // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")  // Lockout duration

	// Google Books defaults
	v.SetDefault("google_books_url", DefaultGoogleBooksURL)
	v.SetDefault("google_books_api_key", "")
	v.SetDefault("google_books_timeout", "10s")
	v.SetDefault("google_books_min_interval", "0s")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Cover sync defaults
	v.SetDefault("cover_sync_enabled", false)
	v.SetDefault("cover_sync_schedule", "0 3 * * *")

	// Cover cache defaults
	v.SetDefault("covers_cache_dir", "")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenSecret:      v.GetString("AUTH_TOKEN_SECRET"),
			TokenExpiry:      v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		GoogleBooks: GoogleBooks{
			BaseURL:     v.GetString("GOOGLE_BOOKS_URL"),
			APIKey:      v.GetString("GOOGLE_BOOKS_API_KEY"),
			Timeout:     v.GetDuration("GOOGLE_BOOKS_TIMEOUT"),
			MinInterval: v.GetDuration("GOOGLE_BOOKS_MIN_INTERVAL"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		CoverSync: CoverSync{
			Enabled:  v.GetBool("COVER_SYNC_ENABLED"),
			Schedule: v.GetString("COVER_SYNC_SCHEDULE"),
		},
		Covers: Covers{
			CacheDir: v.GetString("COVERS_CACHE_DIR"),
		},
	}
}
