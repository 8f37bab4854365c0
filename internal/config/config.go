package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Bootstrap credentials for the system user, required on first run.
	SystemEmail    string
	SystemPassword string

	TOTPIssuer string

	WebAuthnRPID     string
	WebAuthnRPOrigin string
	WebAuthnRPName   string

	SentryDSN string
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables. A .env file is
// loaded first when present so local runs do not need exported vars.
func Load() (Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		Port:             getEnv("PORT", "8080"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		SystemEmail:      os.Getenv("SYSTEM_EMAIL"),
		SystemPassword:   os.Getenv("SYSTEM_PASSWORD"),
		TOTPIssuer:       getEnv("TOTP_ISSUER_NAME", "AuthGate"),
		WebAuthnRPID:     getEnv("WEBAUTHN_RP_ID", "localhost"),
		WebAuthnRPOrigin: getEnv("WEBAUTHN_RP_ORIGIN", "http://localhost:8080"),
		WebAuthnRPName:   getEnv("WEBAUTHN_RP_NAME", "AuthGate"),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(name, defaultVal string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return defaultVal
}
