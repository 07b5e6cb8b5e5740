package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer        string // Issuer label on session tokens and authenticator apps
	SessionSecret string // Required in prod: HMAC secret for session tokens

	DatabaseFile  string // Optional: path to SQLite database file (default: ./tenantguard.db)
	PepperFile    string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	MasterKeyFile string // Optional: path to master encryption key file for TOTP secrets

	TokenTTL      time.Duration // Upper bound on session token lifetime (default: 12h)
	SecureCookies bool          // Secure flag on session cookies (default: true outside dev)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               getEnvOrDefault("TG_ISSUER", "tenantguard"),
		SessionSecret:        os.Getenv("TG_SESSION_SECRET"),
		DatabaseFile:         getEnvOrDefault("TG_DATABASE_FILE", "tenantguard.db"),
		PepperFile:           getEnvOrDefault("TG_PEPPER_FILE", "pepper"),
		MasterKeyFile:        os.Getenv("TG_MASTER_KEY_FILE"),
		TokenTTL:             getEnvDurationOrDefault("TG_TOKEN_TTL", 12*time.Hour),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	cfg.SecureCookies = cfg.Env != "dev"
	if v := os.Getenv("TG_SECURE_COOKIES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SecureCookies = b
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
