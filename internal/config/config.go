package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Booking   BookingConfig
	Admin     AdminConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
}

type ServerConfig struct {
	HTTPPort        string
	GRPCPort        string
	ShutdownTimeout time.Duration
	// TrustedProxies are the IPs/CIDRs whose X-Forwarded-For is believed.
	// Empty means none: the client IP is always the socket peer.
	TrustedProxies []string
	// CORSOrigins may call the gRPC-Web bridge from another origin; "*"
	// allows any.
	CORSOrigins []string
}

// GRPCEnabled is false when GRPC_PORT is "0" or empty.
func (s ServerConfig) GRPCEnabled() bool {
	return s.GRPCPort != "" && s.GRPCPort != "0"
}

type DatabaseConfig struct {
	// URL is a postgres:// connection string or a SQLite file path.
	URL string
}

type BookingConfig struct {
	Timezone  string
	Location  *time.Location
	OpenHour  int
	CloseHour int
}

type AdminConfig struct {
	Secret       string
	PasswordHash string
	TokenTTL     time.Duration
}

// Enabled reports whether admin endpoints require a token.
func (a AdminConfig) Enabled() bool { return a.Secret != "" }

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	r := &envReader{}
	cfg := &Config{
		App: AppConfig{
			Name:        env("APP_NAME", "appointment-scheduler"),
			Environment: env("APP_ENV", "development"),
		},
		Server: ServerConfig{
			HTTPPort:        env("HTTP_PORT", "8999"),
			GRPCPort:        env("GRPC_PORT", "50051"),
			ShutdownTimeout: r.getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			TrustedProxies:  list("TRUSTED_PROXIES"),
			CORSOrigins:     list("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL: env("DATABASE_URL", "appointments.db"),
		},
		Booking: BookingConfig{
			Timezone:  env("TIMEZONE", "Local"),
			OpenHour:  r.getInt("OPEN_HOUR", 9),
			CloseHour: r.getInt("CLOSE_HOUR", 17),
		},
		Admin: AdminConfig{
			Secret:       os.Getenv("ADMIN_SECRET"),
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenTTL:     r.getDuration("ADMIN_TOKEN_TTL", 15*time.Minute),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "console"),
			File:   os.Getenv("LOG_FILE"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: r.getFloat("RATE_LIMIT_RPS", 5),
			Burst:             r.getInt("RATE_LIMIT_BURST", 10),
		},
	}

	if err := validate(cfg, r.errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks cross-field rules. errs carries the parse failures
// collected while reading the environment.
func validate(cfg *Config, errs []string) error {
	for _, p := range cfg.Server.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES: %q is not an IP or CIDR", p))
			}
		}
	}

	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("TIMEZONE %q: %v", cfg.Booking.Timezone, err))
	}
	cfg.Booking.Location = loc

	b := cfg.Booking
	if b.OpenHour < 0 || b.CloseHour > 24 || b.OpenHour >= b.CloseHour {
		errs = append(errs, fmt.Sprintf("OPEN_HOUR/CLOSE_HOUR must satisfy 0 <= open < close <= 24, got %d/%d", b.OpenHour, b.CloseHour))
	}

	if cfg.Admin.PasswordHash != "" && cfg.Admin.Secret == "" {
		errs = append(errs, "ADMIN_PASSWORD_HASH requires ADMIN_SECRET")
	}
	if cfg.Admin.Secret != "" && len(cfg.Admin.Secret) < 32 && cfg.App.Environment == "production" {
		errs = append(errs, "ADMIN_SECRET must be at least 32 characters in production")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// list splits a comma-separated variable, dropping blanks.
func list(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// envReader parses typed variables and remembers every value it could not
// parse, so a typo fails Load instead of quietly using the default.
type envReader struct {
	errs []string
}

func (r *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *envReader) fail(key, v, kind string) {
	r.errs = append(r.errs, fmt.Sprintf("%s=%q is not a valid %s", key, v, kind))
}

func (r *envReader) getInt(key string, fallback int) int {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "integer")
		return fallback
	}
	return i
}

func (r *envReader) getFloat(key string, fallback float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, "number")
		return fallback
	}
	return f
}

func (r *envReader) getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, "duration")
		return fallback
	}
	return d
}
