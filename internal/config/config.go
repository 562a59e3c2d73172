package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"financeflow/internal/api"
)

type Config struct {
	// Backend
	APIURL          string
	RequestTimeout  time.Duration
	ExpensePageSize int

	// Local and session storage
	LocalDBPath      string
	SessionCacheSize int
	SessionTTL       time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// AMQP change fan-out, disabled when AMQPURL is empty
	AMQPURL          string
	AMQPExchange     string
	AMQPQueue        string
	InstanceName     string
	WatchRefreshRate float64

	// Google Sheets export, disabled when GoogleSpreadsheetID is empty
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

func Load() *Config {
	cfg := &Config{
		APIURL:          getEnv("FINANCEFLOW_API_URL", api.DefaultBaseURL),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", api.DefaultTimeout),
		ExpensePageSize: getEnvInt("EXPENSE_PAGE_SIZE", 100),

		LocalDBPath:      getEnv("LOCAL_DB_PATH", "./data/financeflow.db"),
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 16),
		SessionTTL:       getEnvDuration("SESSION_TTL", 12*time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "financeflow.changes"),
		AMQPQueue:        getEnv("AMQP_QUEUE", ""),
		InstanceName:     getEnv("INSTANCE_NAME", ""),
		WatchRefreshRate: getEnvFloat("WATCH_REFRESH_RATE", 2),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
	}

	return cfg
}

// AMQPEnabled reports whether change fan-out is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// ExportEnabled reports whether the Google Sheets export is configured.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Backend URL
	if parsedURL, err := url.Parse(c.APIURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': %v", c.APIURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	} else if parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': missing host", c.APIURL))
	}

	if c.RequestTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at least 1 second", c.RequestTimeout))
	} else if c.RequestTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at most 5 minutes", c.RequestTimeout))
	}

	if c.ExpensePageSize < 1 || c.ExpensePageSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid expense page size %d: must be between 1 and 1000", c.ExpensePageSize))
	}

	// Local storage
	if c.LocalDBPath == "" {
		errors = append(errors, "local database path cannot be empty")
	} else {
		dir := filepath.Dir(c.LocalDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create local database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SessionCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid session cache size %d: must be at least 1", c.SessionCacheSize))
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.WatchRefreshRate <= 0 {
		errors = append(errors, fmt.Sprintf("invalid watch refresh rate %v: must be positive", c.WatchRefreshRate))
	}

	// Google Sheets export
	if c.GoogleSpreadsheetID != "" {
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
