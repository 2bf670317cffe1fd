/*
Package config loads server configuration from the environment.

PURPOSE:
  One place for every knob: HTTP port, database path, time zone, job
  schedules, close secret and alert transport. A .env file is loaded
  first if present (local development); real deployments set the
  environment directly.

PRECEDENCE:
  process environment > .env file > built-in default

SEE ALSO:
  - cmd/server/main.go: The only consumer
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Server
	Port           string
	AllowedOrigins []string

	// Database
	SQLiteDBPath string

	// Jobs
	Timezone      string
	ArchiveHour   int
	ArchiveMinute int
	CloseHour     int
	CloseMinute   int
	CloseWeekday  time.Weekday
	CloseSecret   string

	// Alerts
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel string
}

// Load reads the .env file (if any) and the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/sales.db"),

		Timezone:      getEnv("TIMEZONE", "UTC"),
		ArchiveHour:   getEnvInt("ARCHIVE_HOUR", 23),
		ArchiveMinute: getEnvInt("ARCHIVE_MINUTE", 59),
		CloseHour:     getEnvInt("CLOSE_HOUR", 23),
		CloseMinute:   getEnvInt("CLOSE_MINUTE", 55),
		CloseWeekday:  getEnvWeekday("CLOSE_WEEKDAY", time.Friday),
		CloseSecret:   getEnv("CLOSE_SECRET", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "sales"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sales_alerts"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port %q: must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timezone %q: %v", c.Timezone, err))
	}
	if c.ArchiveHour < 0 || c.ArchiveHour > 23 || c.ArchiveMinute < 0 || c.ArchiveMinute > 59 {
		problems = append(problems, fmt.Sprintf("invalid archive time %02d:%02d", c.ArchiveHour, c.ArchiveMinute))
	}
	if c.CloseHour < 0 || c.CloseHour > 23 || c.CloseMinute < 0 || c.CloseMinute > 59 {
		problems = append(problems, fmt.Sprintf("invalid close time %02d:%02d", c.CloseHour, c.CloseMinute))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves the configured time zone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AlertsEnabled reports whether an AMQP sink should be wired.
func (c *Config) AlertsEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvWeekday(key string, fallback time.Weekday) time.Weekday {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(v, d.String()) {
			return d
		}
	}
	return fallback
}
