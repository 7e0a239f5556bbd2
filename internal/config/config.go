package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"signalgate.app/receiver/storage"
)

type Config struct {
	Host string
	Port string

	StorageDriver string
	LicenseFile   string
	SignalFile    string
	DatabasePath  string

	AllowedOrigins []string

	SentryDSN   string
	Environment string
	LogLevel    string
}

func New() (*Config, error) {
	cfg := &Config{
		Host:          getEnvWithDefault("HOST", "0.0.0.0"),
		Port:          getEnvWithDefault("PORT", "5000"),
		StorageDriver: strings.ToLower(getEnvWithDefault("STORAGE_DRIVER", storage.DriverFile)),
		LicenseFile:   getEnvWithDefault("LICENSE_FILE", "licenses.json"),
		SignalFile:    getEnvWithDefault("SIGNAL_FILE", "signal.json"),
		DatabasePath:  getEnvWithDefault("DATABASE_PATH", "signalgate.db"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:      getEnvWithDefault("LOG_LEVEL", "INFO"),
	}
	cfg.AllowedOrigins = splitList(getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		result = multierror.Append(result, fmt.Errorf("PORT must be a number between 1 and 65535, got %q", c.Port))
	}

	switch c.StorageDriver {
	case storage.DriverFile:
		if c.LicenseFile == "" {
			result = multierror.Append(result, errors.New("LICENSE_FILE is required when using file storage"))
		}
		if c.SignalFile == "" {
			result = multierror.Append(result, errors.New("SIGNAL_FILE is required when using file storage"))
		}
		if c.LicenseFile != "" && c.LicenseFile == c.SignalFile {
			result = multierror.Append(result, errors.New("LICENSE_FILE and SIGNAL_FILE must differ"))
		}
	case storage.DriverSQLite:
		if c.DatabasePath == "" {
			result = multierror.Append(result, errors.New("DATABASE_PATH is required when using SQLite storage"))
		}
	case storage.DriverMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("STORAGE_DRIVER must be one of file, sqlite, memory, got %q", c.StorageDriver))
	}

	if len(c.AllowedOrigins) == 0 {
		result = multierror.Append(result, errors.New("CORS_ALLOWED_ORIGINS must name at least one origin"))
	}

	return result.ErrorOrNil()
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:       c.StorageDriver,
		LicenseFile:  c.LicenseFile,
		SignalFile:   c.SignalFile,
		DatabasePath: c.DatabasePath,
	}
}

func getEnvWithDefault(name, def string) string {
	res, found := os.LookupEnv(name)
	if !found {
		return def
	}
	return res
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
