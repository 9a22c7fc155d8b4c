package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port           string
	Env            string
	AppBaseURL     string
	LogLevel       string
	AllowedOrigins []string

	MongoURI       string
	MongoDB        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	PostgresDSN    string
	RateLimitStore string

	JWTSecret    string
	JWTExpiresIn time.Duration

	EmailProvider   string
	EmailFrom       string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPass        string
	ResendAPIKey    string
	ResendAPIURL    string
	EmailRatePerSec float64
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		Env:            getenv("APP_ENV", "development"),
		AppBaseURL:     strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:3000"), "/"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		MongoURI:       getenv("MONGO_URI", ""),
		MongoDB:        getenv("MONGO_DB", "cropcare"),
		RedisAddr:      getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		RedisDB:        getenvInt("REDIS_DB", 0),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "minio:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "cropcare-avatars"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
		PostgresDSN:    getenv("POSTGRES_DSN", ""),
		RateLimitStore: strings.ToLower(getenv("RATE_LIMIT_STORE", "redis")),

		JWTSecret: getenv("JWT_SECRET", ""),

		EmailProvider:   strings.ToLower(getenv("EMAIL_PROVIDER", "log")),
		EmailFrom:       getenv("EMAIL_FROM", "Crop Care <no-reply@cropcare.local>"),
		SMTPHost:        getenv("SMTP_HOST", ""),
		SMTPPort:        getenvInt("SMTP_PORT", 587),
		SMTPUser:        getenv("SMTP_USER", ""),
		SMTPPass:        getenv("SMTP_PASS", ""),
		ResendAPIKey:    getenv("RESEND_API_KEY", ""),
		ResendAPIURL:    getenv("RESEND_API_URL", "https://api.resend.com"),
		EmailRatePerSec: getenvFloat("EMAIL_RATE_PER_SEC", 2),
	}

	ttl, err := parseDuration(getenv("JWT_EXPIRES_IN", "7d"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}
	cfg.JWTExpiresIn = ttl

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the required settings are present and consistent.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.JWTExpiresIn <= 0 {
		return fmt.Errorf("JWT_EXPIRES_IN must be positive")
	}
	if c.RateLimitStore != "redis" && c.RateLimitStore != "memory" {
		return fmt.Errorf("unknown RATE_LIMIT_STORE %q (want redis or memory)", c.RateLimitStore)
	}
	switch c.EmailProvider {
	case "log":
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER=smtp")
		}
	case "resend":
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
		}
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q (want smtp, resend or log)", c.EmailProvider)
	}
	return nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getenvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getenv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getenv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// parseDuration accepts Go durations ("168h", "90m") and whole days ("7d",
// "30d").
func parseDuration(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func splitCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
