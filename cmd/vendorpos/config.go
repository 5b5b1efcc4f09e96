package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/vendorpos/internal/logger"
	"github.com/nkiryanov/vendorpos/internal/service/report"
)

const (
	defaultListenAddr     = "localhost:8000"
	defaultLoggingLevel   = logger.LevelInfo
	defaultEnvironment    = logger.EnvProduction
	defaultReportTimezone = "UTC"
	defaultCurrency       = report.DefaultCurrency
	defaultLoginRateLimit = 5
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the vendorpos service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Redis for login rate limiting. Limiting is off when empty
	RedisAddr string

	// Attempts per client per minute
	LoginRateLimit int

	// Bootstrap admin, created on start if there is no admin yet
	AdminEmail    string
	AdminPassword string

	// Timezone calendar days of reports are resolved in
	ReportTimezone string

	// ISO 4217 code for amounts shown to people
	Currency string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		Environment:    defaultEnvironment,
		ReportTimezone: defaultReportTimezone,
		Currency:       defaultCurrency,
		LoginRateLimit: defaultLoginRateLimit,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":      setString(&c.ListenAddr),
		"DATABASE_URI":     setString(&c.DatabaseDSN),
		"SECRET_KEY":       setString(&c.SecretKey),
		"LOG_LEVEL":        setString(&c.LogLevel),
		"ENVIRONMENT":      setString(&c.Environment),
		"REDIS_ADDR":       setString(&c.RedisAddr),
		"ADMIN_EMAIL":      setString(&c.AdminEmail),
		"ADMIN_PASSWORD":   setString(&c.AdminPassword),
		"REPORT_TIMEZONE":  setString(&c.ReportTimezone),
		"CURRENCY":         setString(&c.Currency),
		"LOGIN_RATE_LIMIT": setInt(&c.LoginRateLimit),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("vendorpos", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for login rate limiting")
	fs.IntVar(&c.LoginRateLimit, "login-rate-limit", c.LoginRateLimit, "Login attempts per client per minute")
	fs.StringVar(&c.AdminEmail, "admin-email", c.AdminEmail, "Email of the admin created when none exists")
	fs.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "Password of the admin created when none exists")
	fs.StringVarP(&c.ReportTimezone, "timezone", "t", c.ReportTimezone, "Timezone of report days, e.g. America/Tegucigalpa")
	fs.StringVarP(&c.Currency, "currency", "c", c.Currency, "Display currency (ISO 4217)")

	return fs.Parse(args)
}

// Check values that can't be defaulted
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key must be set")
	}
	if c.DatabaseDSN == "" {
		return errors.New("database DSN must be set")
	}
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		return fmt.Errorf("unknown report timezone %q: %w", c.ReportTimezone, err)
	}
	if c.LoginRateLimit <= 0 {
		return errors.New("login rate limit must be greater than zero")
	}
	return nil
}
