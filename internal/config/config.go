package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by REMOTE_BACKEND and EXPORT_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendREST     = "rest"
	BackendSheets   = "sheets"
)

const maxPageSize = 500

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Snapshot store
	SQLiteDBPath     string
	SnapshotInterval time.Duration

	// AMQP. An empty URL disables the sync pipeline.
	AMQPURL          string
	AMQPExchange     string
	AMQPChangesQueue string
	AMQPAcksQueue    string

	// Remote fetch
	RemoteBackend  string
	DatabaseURL    string
	RemoteAPIURL   string
	RemoteAPIToken string
	PageSize       int
	FetchTimeout   time.Duration

	// Sessions
	StrictMode     bool
	MaxSessions    int
	SessionIdleTTL time.Duration
	StatsCacheSize int
	StatsCacheTTL  time.Duration

	// HTTP edge
	JWTSecret          string
	RateLimitPerMinute int
	TrustedProxies     []string

	// Export
	ExportBackend            string
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SQLiteDBPath:     getEnv("SQLITE_DB_PATH", "./data/lifedash.db"),
		SnapshotInterval: getEnvDuration("SNAPSHOT_INTERVAL", 30*time.Second),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "lifedash"),
		AMQPChangesQueue: getEnv("AMQP_CHANGES_QUEUE", "record_changes"),
		AMQPAcksQueue:    getEnv("AMQP_ACKS_QUEUE", "record_acks"),

		RemoteBackend:  getEnv("REMOTE_BACKEND", BackendMemory),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RemoteAPIURL:   getEnv("REMOTE_API_URL", ""),
		RemoteAPIToken: getEnv("REMOTE_API_TOKEN", ""),
		PageSize:       getEnvInt("PAGE_SIZE", 50),
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 10*time.Second),

		StrictMode:     getEnvBool("STRICT_MODE", false),
		MaxSessions:    getEnvInt("MAX_SESSIONS", 1024),
		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		StatsCacheSize: getEnvInt("STATS_CACHE_SIZE", 16),
		StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		ExportBackend:            getEnv("EXPORT_BACKEND", BackendMemory),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}
	if c.SnapshotInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at least 1 second", c.SnapshotInterval))
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
		if c.AMQPChangesQueue == "" || c.AMQPAcksQueue == "" {
			errors = append(errors, "AMQP changes and acks queue names cannot be empty when AMQP URL is provided")
		} else if c.AMQPChangesQueue == c.AMQPAcksQueue {
			errors = append(errors, "AMQP changes and acks queues must differ")
		}
	}

	// Validate remote fetch backend
	validRemotes := []string{BackendMemory, BackendPostgres, BackendREST}
	switch c.RemoteBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres remote backend")
		}
	case BackendREST:
		if u, err := url.Parse(c.RemoteAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid REMOTE_API_URL '%s': must be an http(s) URL", c.RemoteAPIURL))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validRemotes))
	}

	if c.PageSize < 1 || c.PageSize > maxPageSize {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and %d", c.PageSize, maxPageSize))
	}
	if c.FetchTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 100ms", c.FetchTimeout))
	} else if c.FetchTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at most 5 minutes", c.FetchTimeout))
	}

	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}
	if c.SessionIdleTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid session idle TTL %v: must not be negative", c.SessionIdleTTL))
	}
	if c.StatsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must be at least 1", c.StatsCacheSize))
	}
	if c.StatsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid stats cache TTL %v: must not be negative", c.StatsCacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate export backend
	validExports := []string{BackendMemory, BackendSheets}
	switch c.ExportBackend {
	case BackendMemory:
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets export backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets export backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid export backend '%s': must be one of %v", c.ExportBackend, validExports))
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
