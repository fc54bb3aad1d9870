package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	StorageS3    = "s3"
	StorageMinio = "minio"
)

type Config struct {
	Port      string
	MongoURI  string
	DBName    string
	JWTSecret string
	LogLevel  string
	LogFormat string // console or json
	// AllowedOrigins is the CORS allow-list; "*" allows every origin.
	AllowedOrigins []string

	Storage         string // s3 or minio
	S3Bucket        string
	S3Region        string
	S3AccessKeyID   string
	S3SecretKey     string
	S3PublicBaseURL string // optional CDN/base URL; presigned URLs otherwise
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	ImageURLExpiry  time.Duration

	RedisAddr     string // empty keeps logouts in memory
	RedisPassword string

	SMTPHost     string // empty logs verification links instead of mailing them
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	VerifyURL    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	OAuthStateKey      []byte // 32 bytes, base64 in env
	// OAuthRedirectOrigins are the front-end origins sign-in may return to. Empty derives them
	// from CORS_ALLOWED_ORIGINS and VERIFY_URL.
	OAuthRedirectOrigins []string
	CookieSecure         bool
	TrustProxy           bool

	SearchDebounce    time.Duration
	AuthRatePerSecond float64
	AuthBurst         int
}

func Load() (*Config, error) {
	stateKey, err := decodeKey(getEnv("OAUTH_STATE_KEY", ""))
	if err != nil {
		return nil, fmt.Errorf("OAUTH_STATE_KEY: %w", err)
	}
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		MongoURI:  getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:    getEnv("MONGODB_DB", "storefront"),
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", "*"),

		Storage:         strings.ToLower(getEnv("STORAGE_BACKEND", StorageS3)),
		S3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		S3Region:        getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		MinioEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:     getEnv("MINIO_BUCKET", "covers"),
		MinioUseSSL:     getBool("MINIO_USE_SSL", false),
		ImageURLExpiry:  getDuration("IMAGE_URL_EXPIRY", time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		VerifyURL:    getEnv("VERIFY_URL", "http://localhost:5173/verify-email"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/oauth/google/callback"),
		OAuthStateKey:      stateKey,

		OAuthRedirectOrigins: getList("OAUTH_REDIRECT_ORIGINS", ""),
		CookieSecure:         getBool("COOKIE_SECURE", true),
		TrustProxy:           getBool("TRUST_PROXY", false),

		SearchDebounce:    getDuration("SEARCH_DEBOUNCE", 500*time.Millisecond),
		AuthRatePerSecond: getFloat("AUTH_RATE_PER_SECOND", 1),
		AuthBurst:         getInt("AUTH_BURST", 5),
	}
	return cfg, nil
}

// RedirectOrigins returns the origins OAuth sign-in may redirect back to. A wildcard CORS entry
// never counts; the verification page's origin always does.
func (c *Config) RedirectOrigins() []string {
	var out []string
	add := func(raw string) {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Host == "" {
			return
		}
		origin := strings.ToLower(u.Scheme + "://" + u.Host)
		if !slices.Contains(out, origin) {
			out = append(out, origin)
		}
	}
	if len(c.OAuthRedirectOrigins) > 0 {
		for _, o := range c.OAuthRedirectOrigins {
			add(o)
		}
		return out
	}
	for _, o := range c.AllowedOrigins {
		if o != "*" {
			add(o)
		}
	}
	add(c.VerifyURL)
	return out
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "change-me-in-production" || len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to a strong secret of at least 16 characters"))
	}
	switch c.Storage {
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("AWS_S3_BUCKET is required for the s3 storage backend"))
		}
	case StorageMinio:
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageS3, StorageMinio, c.Storage))
	}
	if c.GoogleEnabled() && len(c.OAuthStateKey) != 32 {
		errs = append(errs, errors.New("OAUTH_STATE_KEY (32 bytes base64) is required for Google sign-in; generate with: openssl rand -base64 32"))
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	return errors.Join(errs...)
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getList(key, fallback string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, fallback), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && f > 0 {
		return f
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

// secretEnvVars are reported as loaded without their values.
var secretEnvVars = map[string]bool{
	"JWT_SECRET":            true,
	"AWS_ACCESS_KEY_ID":     true,
	"AWS_SECRET_ACCESS_KEY": true,
	"MINIO_SECRET_KEY":      true,
	"REDIS_PASSWORD":        true,
	"SMTP_PASSWORD":         true,
	"GOOGLE_CLIENT_SECRET":  true,
	"OAUTH_STATE_KEY":       true,
}

// OptionalEnvVars are logged at startup so you can confirm they are loaded when set.
var OptionalEnvVars = []string{
	"PORT",
	"CORS_ALLOWED_ORIGINS",
	"OAUTH_REDIRECT_ORIGINS",
	"TRUST_PROXY",
	"MONGODB_URI",
	"MONGODB_DB",
	"STORAGE_BACKEND",
	"REDIS_ADDR",
	"SMTP_HOST",
	"GOOGLE_CLIENT_ID",
	"GOOGLE_CLIENT_SECRET",
	"OAUTH_STATE_KEY",
	"LOG_LEVEL",
}

// LogEnv reports which optional settings are present. Secret values are never logged.
func LogEnv() {
	for _, key := range OptionalEnvVars {
		v := strings.TrimSpace(os.Getenv(key))
		switch {
		case v == "":
			log.Debug().Str("env", key).Msg("not set (optional)")
		case secretEnvVars[key]:
			log.Info().Str("env", key).Msg("loaded")
		default:
			log.Info().Str("env", key).Str("value", v).Msg("loaded")
		}
	}
}
