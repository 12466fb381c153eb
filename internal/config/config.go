package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	AuthMode       string        `mapstructure:"AUTH_MODE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	KafkaBrokers   string        `mapstructure:"KAFKA_BROKERS"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// Booking policy. Timezone is the reference zone used for "today" and for
	// comparing slot times of day.
	Timezone             string        `mapstructure:"TIMEZONE"`
	SlotMinutes          int           `mapstructure:"SLOT_MINUTES"`
	BookingOpenHour      int           `mapstructure:"BOOKING_OPEN_HOUR"`
	BookingCloseHour     int           `mapstructure:"BOOKING_CLOSE_HOUR"`
	BookingEnforceMenu   bool          `mapstructure:"BOOKING_ENFORCE_MENU"`
	AvailabilityCacheTTL time.Duration `mapstructure:"AVAILABILITY_CACHE_TTL"`

	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`

	OTelEnabled     bool    `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio float64 `mapstructure:"OTEL_SAMPLING_RATIO"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "KAFKA_BROKERS",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"TIMEZONE", "SLOT_MINUTES", "BOOKING_OPEN_HOUR", "BOOKING_CLOSE_HOUR",
	"BOOKING_ENFORCE_MENU", "AVAILABILITY_CACHE_TTL",
	"GEMINI_API_KEY", "GEMINI_MODEL",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLING_RATIO",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("SLOT_MINUTES", 60)
	v.SetDefault("BOOKING_OPEN_HOUR", 10)
	v.SetDefault("BOOKING_CLOSE_HOUR", 19)
	v.SetDefault("BOOKING_ENFORCE_MENU", false)
	v.SetDefault("AVAILABILITY_CACHE_TTL", "2m")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash-latest")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: requests without a bearer token are treated as a dev patient.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise ENV=development yields "development" and any
// other environment yields "jwt".
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Location resolves TIMEZONE. "Local" keeps the server's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.AuthSigningKey == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
		return fmt.Errorf(
			"one of AUTH_SIGNING_KEY, AUTH_JWKS_URL or AUTH_ISSUER must be set when AUTH_MODE is \"jwt\" (current ENV=%q)", c.Env)
	}
	if c.IsProduction() && c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes in production")
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.SlotMinutes <= 0 || c.SlotMinutes > 24*60 {
		return fmt.Errorf("SLOT_MINUTES must be between 1 and 1440, got %d", c.SlotMinutes)
	}
	if c.BookingOpenHour < 0 || c.BookingCloseHour > 23 || c.BookingOpenHour > c.BookingCloseHour {
		return fmt.Errorf("booking hours must satisfy 0 <= BOOKING_OPEN_HOUR (%d) <= BOOKING_CLOSE_HOUR (%d) <= 23",
			c.BookingOpenHour, c.BookingCloseHour)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLING_RATIO must be between 0 and 1, got %v", c.OTelSampleRatio)
	}
	return nil
}
