package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	Store       string `mapstructure:"STORE"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	ClinicName         string `mapstructure:"CLINIC_NAME"`
	ClinicAddress      string `mapstructure:"CLINIC_ADDRESS"`
	ClinicPhone        string `mapstructure:"CLINIC_PHONE"`
	ClinicTimezone     string `mapstructure:"CLINIC_TIMEZONE"`
	Currency           string `mapstructure:"CURRENCY"`
	PhoneRegion        string `mapstructure:"PHONE_REGION"`
	SlotConflictPolicy string `mapstructure:"SLOT_CONFLICT_POLICY"`

	SMTPHost           string `mapstructure:"SMTP_HOST"`
	SMTPPort           int    `mapstructure:"SMTP_PORT"`
	SMTPUsername       string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword       string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom           string `mapstructure:"SMTP_FROM"`
	SMTPUseTLS         bool   `mapstructure:"SMTP_USE_TLS"`
	SMTPTimeoutSeconds int    `mapstructure:"SMTP_TIMEOUT_SECONDS"`

	ReminderEnabled         bool   `mapstructure:"REMINDER_ENABLED"`
	ReminderIntervalMinutes int    `mapstructure:"REMINDER_INTERVAL_MINUTES"`
	ReminderLeadMinutes     int    `mapstructure:"REMINDER_LEAD_MINUTES"`
	ReminderWindowMinutes   int    `mapstructure:"REMINDER_WINDOW_MINUTES"`
	ReminderEndpoint        string `mapstructure:"REMINDER_ENDPOINT"`

	LogLevel          string `mapstructure:"LOG_LEVEL"`
	LogFile           string `mapstructure:"LOG_FILE"`
	LogFileMaxSizeMB  int    `mapstructure:"LOG_FILE_MAX_SIZE_MB"`
	LogFileMaxBackups int    `mapstructure:"LOG_FILE_MAX_BACKUPS"`
	LogFileMaxAgeDays int    `mapstructure:"LOG_FILE_MAX_AGE_DAYS"`
}

var keys = []string{
	"PORT", "ENV", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"CLINIC_NAME", "CLINIC_ADDRESS", "CLINIC_PHONE", "CLINIC_TIMEZONE", "CURRENCY", "PHONE_REGION", "SLOT_CONFLICT_POLICY",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM", "SMTP_USE_TLS", "SMTP_TIMEOUT_SECONDS",
	"REMINDER_ENABLED", "REMINDER_INTERVAL_MINUTES", "REMINDER_LEAD_MINUTES", "REMINDER_WINDOW_MINUTES", "REMINDER_ENDPOINT",
	"LOG_LEVEL", "LOG_FILE", "LOG_FILE_MAX_SIZE_MB", "LOG_FILE_MAX_BACKUPS", "LOG_FILE_MAX_AGE_DAYS",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("STORE", StoreMemory)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CLINIC_NAME", "Cabinet Dentaire")
	v.SetDefault("CLINIC_TIMEZONE", "Africa/Casablanca")
	v.SetDefault("CURRENCY", "MAD")
	v.SetDefault("PHONE_REGION", "MA")
	v.SetDefault("SLOT_CONFLICT_POLICY", "flag")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USE_TLS", true)
	v.SetDefault("SMTP_TIMEOUT_SECONDS", 10)
	v.SetDefault("REMINDER_ENABLED", false)
	v.SetDefault("REMINDER_INTERVAL_MINUTES", 5)
	v.SetDefault("REMINDER_LEAD_MINUTES", 24*60)
	v.SetDefault("REMINDER_WINDOW_MINUTES", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE_MAX_SIZE_MB", 50)
	v.SetDefault("LOG_FILE_MAX_BACKUPS", 5)
	v.SetDefault("LOG_FILE_MAX_AGE_DAYS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the settings that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE is %q", StorePostgres)
		}
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.SlotConflictPolicy {
	case "off", "flag", "reject":
	default:
		return fmt.Errorf("SLOT_CONFLICT_POLICY must be \"off\", \"flag\" or \"reject\", got %q", c.SlotConflictPolicy)
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}
	if c.ReminderEnabled {
		if c.ReminderIntervalMinutes < 1 {
			return fmt.Errorf("REMINDER_INTERVAL_MINUTES must be at least 1")
		}
		if c.ReminderLeadMinutes < 1 || c.ReminderWindowMinutes < 1 {
			return fmt.Errorf("REMINDER_LEAD_MINUTES and REMINDER_WINDOW_MINUTES must be positive")
		}
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative")
	}
	return nil
}

// Location resolves CLINIC_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

func (c *Config) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTPTimeoutSeconds) * time.Second
}

func (c *Config) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderIntervalMinutes) * time.Minute
}

func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.ReminderLeadMinutes) * time.Minute
}

func (c *Config) ReminderWindow() time.Duration {
	return time.Duration(c.ReminderWindowMinutes) * time.Minute
}
