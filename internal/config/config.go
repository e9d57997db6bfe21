package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field
// corresponds to an environment variable. Required variables are
// enforced by must() at startup; optional integrations (SMTP, S3,
// RabbitMQ, Redis) degrade gracefully when unset.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	AppURL         string // public base URL used in e-mailed capability links
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign owner-session JWTs
	AccessTTLMin   int    // session access token time-to-live in minutes
	RefreshTTLDays int    // session refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// Document capability token lifetimes. Review links are short so
	// stale negotiations die quietly; edit/sign links give the
	// counterparty a month to act.
	ReviewTokenTTL time.Duration
	EditTokenTTL   time.Duration
	SignTokenTTL   time.Duration
	ViewTokenTTL   time.Duration

	SMTPAddr string // host:port of the outbound mail relay (optional)
	SMTPFrom string // From address on workflow notifications

	S3Bucket    string        // bucket for rendered document artifacts (optional)
	SignedURLTTL time.Duration // lifetime of presigned artifact URLs
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present, so local
// development does not need exported variables. Missing required
// values exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // absent .env is fine; real env always wins

	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		AppURL:         must("APP_URL"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		ReviewTokenTTL: days("REVIEW_TOKEN_TTL_DAYS", 7),
		EditTokenTTL:   days("EDIT_TOKEN_TTL_DAYS", 30),
		SignTokenTTL:   days("SIGN_TOKEN_TTL_DAYS", 30),
		ViewTokenTTL:   days("VIEW_TOKEN_TTL_DAYS", 30),

		SMTPAddr: os.Getenv("SMTP_ADDR"),
		SMTPFrom: envStr("SMTP_FROM", "noreply@localhost"),

		S3Bucket:     os.Getenv("S3_BUCKET"),
		SignedURLTTL: envDur("SIGNED_URL_TTL", 15*time.Minute),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an
// integer. If conversion fails, the application exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// days reads an optional integer day count with a default.
func days(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * 24 * time.Hour
}
