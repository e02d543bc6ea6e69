package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string   `mapstructure:"APP_PORT"`
	Env               string   `mapstructure:"ENV"`
	LogLevel          string   `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int      `mapstructure:"MAX_REQUESTS_PER_MIN"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`

	// Redis configuration.
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB  int    `mapstructure:"REDIS_SESSION_DB"`
	RedisFollowUpDB int    `mapstructure:"REDIS_FOLLOWUP_DB"`
	SessionTTLMin   int    `mapstructure:"SESSION_TTL_MINUTES"`
	LockTTLSec      int    `mapstructure:"SESSION_LOCK_TTL_SECONDS"`

	// MongoDB holds follow-up records for ambiguous bookings.
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`
	UseMongo     bool   `mapstructure:"USE_MONGO"`

	// SupportToken guards the follow-up endpoints; empty disables them.
	SupportToken string `mapstructure:"SUPPORT_TOKEN"`

	// Booking backend.
	BackendURL        string `mapstructure:"BACKEND_URL"`
	BackendTimeoutSec int    `mapstructure:"BACKEND_TIMEOUT_SECONDS"`

	// Payments. PaymentMode is "backend" or "stripe".
	PaymentMode string `mapstructure:"PAYMENT_MODE"`
	StripeKey   string `mapstructure:"STRIPE_SECRET_KEY"`
	Currency    string `mapstructure:"CURRENCY"`

	// Checkout rules.
	GuidedSlots        []string `mapstructure:"GUIDED_SLOTS"`
	TimeSlots          []string `mapstructure:"TIME_SLOTS"`
	PickupLocations    []string `mapstructure:"PICKUP_LOCATIONS"`
	DefaultSeatCeiling int      `mapstructure:"DEFAULT_SEAT_CEILING"`
	MinPhoneDigits     int      `mapstructure:"MIN_PHONE_DIGITS"`

	// Booking submission.
	SubmitAttempts     int  `mapstructure:"SUBMIT_ATTEMPTS"`
	SubmitDelayMillis  int  `mapstructure:"SUBMIT_DELAY_MILLIS"`
	SubmitTimeoutSec   int  `mapstructure:"SUBMIT_TIMEOUT_SECONDS"`
	UseIdempotencyKeys bool `mapstructure:"USE_IDEMPOTENCY_KEYS"`
}

// LoadConfig reads config.yaml from the working directory or ./config,
// overlays environment variables and applies defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	// Automatically use environment variables where available.
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	// Env vars arrive as one comma separated string.
	cfg.GuidedSlots = splitList(v.GetStringSlice("GUIDED_SLOTS"))
	cfg.TimeSlots = splitList(v.GetStringSlice("TIME_SLOTS"))
	cfg.PickupLocations = splitList(v.GetStringSlice("PICKUP_LOCATIONS"))
	cfg.CORSOrigins = splitList(v.GetStringSlice("CORS_ORIGINS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	v.SetDefault("CORS_ORIGINS", []string{"*"})
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_SESSION_DB", 0)
	v.SetDefault("REDIS_FOLLOWUP_DB", 3)
	v.SetDefault("SESSION_TTL_MINUTES", 30)
	v.SetDefault("SESSION_LOCK_TTL_SECONDS", 60)
	v.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	v.SetDefault("DATABASE_NAME", "daypass")
	v.SetDefault("USE_MONGO", true)
	v.SetDefault("SUPPORT_TOKEN", "")
	v.SetDefault("BACKEND_URL", "http://localhost:3000/api")
	v.SetDefault("BACKEND_TIMEOUT_SECONDS", 10)
	v.SetDefault("PAYMENT_MODE", "backend")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("CURRENCY", "eur")
	v.SetDefault("GUIDED_SLOTS", []string{"10:00", "14:00"})
	v.SetDefault("TIME_SLOTS", []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00", "17:00"})
	v.SetDefault("PICKUP_LOCATIONS", []string{})
	v.SetDefault("DEFAULT_SEAT_CEILING", 50)
	v.SetDefault("MIN_PHONE_DIGITS", 9)
	v.SetDefault("SUBMIT_ATTEMPTS", 3)
	v.SetDefault("SUBMIT_DELAY_MILLIS", 1000)
	v.SetDefault("SUBMIT_TIMEOUT_SECONDS", 45)
	v.SetDefault("USE_IDEMPOTENCY_KEYS", true)
}

// Validate rejects combinations the service cannot run with.
func (c *Config) Validate() error {
	switch c.PaymentMode {
	case "backend":
	case "stripe":
		if c.StripeKey == "" {
			return fmt.Errorf("config: PAYMENT_MODE=stripe requires STRIPE_SECRET_KEY")
		}
	default:
		return fmt.Errorf("config: unknown PAYMENT_MODE %q", c.PaymentMode)
	}
	if c.SubmitAttempts < 1 {
		return fmt.Errorf("config: SUBMIT_ATTEMPTS must be at least 1")
	}
	if c.SubmitTimeoutSec >= c.LockTTLSec {
		return fmt.Errorf("config: SUBMIT_TIMEOUT_SECONDS must be below SESSION_LOCK_TTL_SECONDS")
	}
	if c.DefaultSeatCeiling < 0 {
		return fmt.Errorf("config: DEFAULT_SEAT_CEILING must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMin) * time.Minute
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSec) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSec) * time.Second
}

func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutSec) * time.Second
}

func (c *Config) SubmitDelay() time.Duration {
	return time.Duration(c.SubmitDelayMillis) * time.Millisecond
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
