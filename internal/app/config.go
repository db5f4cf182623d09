package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"bktrader/internal/session"
)

// Config holds application configuration from env (and an optional .env file).
type Config struct {
	LogLevel string `validate:"oneof=debug info warn warning error"`

	StoreKind string `validate:"oneof=parquet clickhouse"`
	StorePath string `validate:"required_if=StoreKind parquet"`

	ClickHouseAddr     string `validate:"required_if=StoreKind clickhouse"`
	ClickHouseDatabase string
	ClickHouseTable    string
	ClickHouseUser     string
	ClickHousePassword string

	FeedFile string // YAML feed profile; empty uses the built-in one

	ExportDir    string
	ExportFormat string `validate:"omitempty,oneof=csv json parquet"` // empty disables export

	MorningSession   string `validate:"required"` // HH:MM-HH:MM
	AfternoonSession string `validate:"required"`
	UTCOffsetHours   int    `validate:"gte=-12,lte=14"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadConfig reads config from the process environment and validates it.
// A .env file is loaded by the binary before this runs.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		StoreKind:          strings.ToLower(getEnv("STORE_KIND", "parquet")),
		StorePath:          getEnv("STORE_PATH", filepath.Join("data", "bar1d.parquet")),
		ClickHouseAddr:     os.Getenv("CLICKHOUSE_ADDR"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "default"),
		ClickHouseTable:    getEnv("CLICKHOUSE_TABLE", "bar1d"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		FeedFile:           os.Getenv("FEED_FILE"),
		ExportDir:          getEnv("EXPORT_DIR", filepath.Join("data", "export")),
		ExportFormat:       strings.ToLower(os.Getenv("EXPORT_FORMAT")),
		MorningSession:     getEnv("SESSION_MORNING", "09:30-11:30"),
		AfternoonSession:   getEnv("SESSION_AFTERNOON", "13:00-15:00"),
		UTCOffsetHours:     8,
	}
	if s := os.Getenv("SESSION_UTC_OFFSET"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_UTC_OFFSET %q: %w", s, err)
		}
		cfg.UTCOffsetHours = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and that the session windows parse.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	_, err := c.Estimator()
	return err
}

// Estimator builds the session estimator from the configured windows.
func (c *Config) Estimator() (session.Estimator, error) {
	mo, mc, err := parseWindow(c.MorningSession)
	if err != nil {
		return session.Estimator{}, fmt.Errorf("SESSION_MORNING: %w", err)
	}
	ao, ac, err := parseWindow(c.AfternoonSession)
	if err != nil {
		return session.Estimator{}, fmt.Errorf("SESSION_AFTERNOON: %w", err)
	}
	loc := session.China
	if c.UTCOffsetHours != 8 {
		loc = time.FixedZone(fmt.Sprintf("UTC%+d", c.UTCOffsetHours), c.UTCOffsetHours*3600)
	}
	est := session.Estimator{
		MorningOpen:    mo,
		MorningClose:   mc,
		AfternoonOpen:  ao,
		AfternoonClose: ac,
		Location:       loc,
	}
	return est, est.Validate()
}

func parseWindow(s string) (from, to session.Clock, err error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return from, to, errors.New("want HH:MM-HH:MM, got " + strconv.Quote(s))
	}
	if from, err = session.ParseClock(strings.TrimSpace(a)); err != nil {
		return from, to, err
	}
	to, err = session.ParseClock(strings.TrimSpace(b))
	return from, to, err
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
