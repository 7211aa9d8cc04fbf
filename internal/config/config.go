package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the API service
type Config struct {
	// HTTP
	Port        string   `validate:"required,numeric"`
	CORSOrigins []string `validate:"dive,required"`

	// Database
	DBDriver       string `validate:"oneof=sqlite postgres"`
	SQLitePath     string `validate:"required_if=DBDriver sqlite"`
	DatabaseURL    string `validate:"required_if=DBDriver postgres"`
	MaxWindowDays  int    `validate:"gt=0,lte=366"`
	RequestTimeout time.Duration

	// Logging
	LogLevel string `validate:"oneof=debug info warn error"`
	LogFile  string

	// Perturbation events
	NATSURL           string `validate:"omitempty,url"`
	NATSSubjectPrefix string `validate:"required"`

	// Calendar
	HolidaysFile string `validate:"omitempty,file"`
	Timezone     string `validate:"required"`
	Location     *time.Location
}

// Load reads .env files then the environment, and validates the result
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// missing files are fine; the environment may be set by the orchestrator
		_ = godotenv.Load(f)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		SQLitePath:     getEnv("SQLITE_DATABASE", "data/horaires.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MaxWindowDays:  getEnvInt("MAX_WINDOW_DAYS", 92),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 5*time.Second),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", "horaires.log"),

		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "perturbations"),

		HolidaysFile: os.Getenv("HOLIDAYS_FILE"),
		Timezone:     getEnv("TIMEZONE", "Europe/Paris"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

// Today returns the current calendar date in the configured timezone
func (c *Config) Today(now time.Time) time.Time {
	local := now.In(c.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
