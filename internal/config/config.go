package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	DatabaseType    string
	DatabasePath    string
	DatabaseURL     string
	SessionDuration time.Duration
	StaticFilesPath string
	TemplatesPath   string
	MigrationsPath  string

	// OAuth
	GoogleClientID       string
	GoogleClientSecret   string
	AppleClientID        string
	AppleClientSecret    string
	OAuthRedirectBaseURL string

	// Email (Amazon SES)
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string

	// ForcedRoles maps a lowercased email to a role that overrides the
	// default first-sign-in rule. Used for one-time role migrations; clear
	// FORCED_ROLES once the migration is complete.
	ForcedRoles map[string]string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		DatabaseType:    getEnv("DB_TYPE", "sqlite"),
		DatabasePath:    getEnv("DB_PATH", "./taskboard.db"),
		DatabaseURL:     getEnv("DB_URL", ""),
		SessionDuration: 24 * time.Hour,
		StaticFilesPath: getEnv("STATIC_PATH", "./static"),
		TemplatesPath:   getEnv("TEMPLATES_PATH", "./internal/templates"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),

		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		AppleClientID:        getEnv("APPLE_CLIENT_ID", ""),
		AppleClientSecret:    getEnv("APPLE_CLIENT_SECRET", ""),
		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", ""),

		AWSRegion:    getEnv("AWS_REGION", "eu-west-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "TaskBoard"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),

		ForcedRoles: ParseForcedRoles(getEnv("FORCED_ROLES", "")),
	}
}

// ParseForcedRoles parses a comma-separated list of email:role pairs,
// e.g. "someone@example.com:learner". Malformed entries are skipped.
func ParseForcedRoles(raw string) map[string]string {
	forced := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, role, ok := strings.Cut(entry, ":")
		email = strings.ToLower(strings.TrimSpace(email))
		role = strings.TrimSpace(role)
		if !ok || email == "" || (role != "guardian" && role != "learner") {
			log.Printf("Ignoring malformed FORCED_ROLES entry: %q", entry)
			continue
		}
		forced[email] = role
	}
	return forced
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
