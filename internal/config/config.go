// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Record Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendMongo}

type Config struct {
	// HTTP server
	Port               string
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string

	// Record Store
	RecordBackend string
	SQLiteDBPath  string
	MongoURI      string
	MongoDatabase string

	// AMQP; an empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Notification transports. The Discord channel is an operator feed:
	// notifications of every user in DiscordUsers (all users when empty)
	// land in it.
	WebhookTimeout    time.Duration
	DiscordBotToken   string
	DiscordChannelID  string
	DiscordUsers      []string
	NotifyMaxAttempts int

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Scheduler
	SchedulerInterval time.Duration
	ReminderHour      int
	Timezone          string

	// Summary cache
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		RecordBackend: getEnv("RECORD_BACKEND", BackendMemory),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/bolso.db"),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "bolso"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bolso"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "notifications"),

		WebhookTimeout:    getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		DiscordBotToken:   getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordChannelID:  getEnv("DISCORD_CHANNEL_ID", ""),
		DiscordUsers:      getEnvList("DISCORD_USERS"),
		NotifyMaxAttempts: getEnvInt("NOTIFY_MAX_ATTEMPTS", 5),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Bolso"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", 15*time.Minute),
		ReminderHour:      getEnvInt("REMINDER_HOUR", 8),
		Timezone:          getEnv("TIMEZONE", "America/Sao_Paulo"),

		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 512),
		SummaryCacheTTL:  getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.RecordBackend) {
		errs = append(errs, fmt.Sprintf("invalid record backend '%s': must be one of %v", c.RecordBackend, validBackends))
	}
	switch c.RecordBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, "MONGO_URI is required when using mongo backend")
		} else if u, err := url.Parse(c.MongoURI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			errs = append(errs, fmt.Sprintf("invalid MONGO_URI '%s': scheme must be 'mongodb' or 'mongodb+srv'", c.MongoURI))
		}
		if c.MongoDatabase == "" {
			errs = append(errs, "MONGO_DATABASE cannot be empty when using mongo backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.WebhookTimeout < time.Second || c.WebhookTimeout > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid webhook timeout %v: must be between 1s and 1m", c.WebhookTimeout))
	}
	if (c.DiscordBotToken == "") != (c.DiscordChannelID == "") {
		errs = append(errs, "DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	if c.NotifyMaxAttempts < 1 || c.NotifyMaxAttempts > 50 {
		errs = append(errs, fmt.Sprintf("invalid notify max attempts %d: must be between 1 and 50", c.NotifyMaxAttempts))
	}

	if c.GoogleServiceAccountJSON != "" && c.GoogleServiceAccountFile != "" {
		errs = append(errs, "set only one of GOOGLE_SERVICE_ACCOUNT_JSON and GOOGLE_SERVICE_ACCOUNT_FILE")
	}

	if c.SchedulerInterval < time.Minute || c.SchedulerInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid scheduler interval %v: must be between 1m and 24h", c.SchedulerInterval))
	}
	if c.ReminderHour < 0 || c.ReminderHour > 23 {
		errs = append(errs, fmt.Sprintf("invalid reminder hour %d: must be between 0 and 23", c.ReminderHour))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.SummaryCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}
	if c.SummaryCacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid summary cache TTL %v: must be at least 1 second", c.SummaryCacheTTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// ValidateExport checks the settings bolso-export needs on top of Validate.
func (c *Config) ValidateExport() error {
	var errs []string
	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required for export")
	}
	if c.GoogleSheetName == "" {
		errs = append(errs, "GOOGLE_SHEET_NAME is required for export")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for export")
	}
	if len(errs) > 0 {
		return fmt.Errorf("export configuration invalid:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Location returns the configured scheduler timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
