package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port        int
	Database    DatabaseConfig
	JWTSecret   string
	Environment string
	CORSOrigins []string
	FrontendURL string
	Google      GoogleConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string // postgres
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// GoogleConfig holds the Google OAuth and Calendar integration settings.
// The endpoint URLs default to Google's production endpoints and exist as
// fields so tests can point the clients at local fake servers.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	CalendarID   string

	AuthURL         string
	TokenURL        string
	TokenInfoURL    string
	RevokeURL       string
	CalendarBaseURL string
}

// Configured reports whether the client credentials and redirect URI are all
// present. Operations that need them fail with AUTH_CONFIGURATION_MISSING
// when this is false.
func (g GoogleConfig) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

// Load loads configuration from environment variables
func Load() *Config {
	env := getEnv("ENVIRONMENT", "production")
	jwtSecret := loadJWTSecret(env)

	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Database: DatabaseConfig{
			Type:         getEnv("DATABASE_TYPE", "postgres"),
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		JWTSecret:   jwtSecret,
		Environment: env,
		CORSOrigins: loadCORSOrigins(env),
		FrontendURL: getEnv("FRONTEND_URL", getAppURL()),
		Google:      loadGoogleConfig(),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	return cfg
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "tutorbridge")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "tutorbridge")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}

		// Check for insecure default secrets
		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.JWTSecret == insecure {
				return fmt.Errorf("JWT_SECRET is set to an insecure default value. Please set a strong random secret")
			}
		}
	}

	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("at least one CORS origin must be configured")
	}

	if c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if !c.Google.Configured() {
		log.Println("WARNING: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET or GOOGLE_REDIRECT_URI not set.")
		log.Println("WARNING: Meeting provisioning will fail until the Google integration is configured.")
	}

	return nil
}

func loadGoogleConfig() GoogleConfig {
	scopes := []string{"https://www.googleapis.com/auth/calendar.events"}
	if raw := os.Getenv("GOOGLE_OAUTH_SCOPES"); raw != "" {
		scopes = splitAndTrim(raw, ",")
	}

	return GoogleConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URI"),
		Scopes:       scopes,
		CalendarID:   getEnv("GOOGLE_CALENDAR_ID", "primary"),

		AuthURL:         getEnv("GOOGLE_AUTH_URL", "https://accounts.google.com/o/oauth2/auth"),
		TokenURL:        getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		TokenInfoURL:    getEnv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
		RevokeURL:       getEnv("GOOGLE_REVOKE_URL", "https://oauth2.googleapis.com/revoke"),
		CalendarBaseURL: getEnv("GOOGLE_CALENDAR_BASE_URL", "https://www.googleapis.com/calendar/v3"),
	}
}

func loadJWTSecret(env string) string {
	secret := os.Getenv("JWT_SECRET")

	// If JWT_SECRET is not set, generate a random one for development
	if secret == "" {
		if env == "production" {
			log.Fatal("FATAL: JWT_SECRET environment variable is required in production")
		}

		// Generate random secret for development
		log.Println("WARNING: JWT_SECRET not set. Generating random secret for development.")
		log.Println("WARNING: This secret will change on restart. Set JWT_SECRET in production!")
		return generateRandomSecret()
	}

	// Validate secret length
	if len(secret) < 16 {
		log.Fatal("FATAL: JWT_SECRET must be at least 16 characters long")
	}

	return secret
}

func loadCORSOrigins(env string) []string {
	if appURL := getAppURL(); appURL != "" {
		return []string{appURL}
	}

	// Default origins based on environment
	if env == "development" {
		return []string{"http://localhost:3000", "http://localhost:8080"}
	}

	// In production, require explicit CORS configuration
	log.Println("WARNING: APP_URL not set. Using default localhost origins.")
	log.Println("WARNING: Set APP_URL environment variable for production deployments.")
	return []string{"http://localhost:3000", "http://localhost:8080"}
}

func splitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate random secret:", err)
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

func getAppURL() string {
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		return ""
	}
	return strings.TrimRight(appURL, "/")
}
