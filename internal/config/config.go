// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultSQLitePath  = "./tracker.sqlite3"
	DefaultStartPrefix = "ig_"
	DefaultPlatformURL = "https://t.me"
	DefaultTelegramAPI = "https://api.telegram.org"
)

type Config struct {
	Port int

	// Telegram
	BotToken       string
	BotUsername    string
	WebhookSecret  string
	TelegramAPIURL string
	PlatformURL    string
	ChannelURL     string
	StartPrefix    string

	// Public base URL the webhook is registered under, without trailing slash.
	BaseURL string

	// ADMIN_TOKEN. Either the secret itself or its bcrypt hash.
	AdminToken      string
	AdminRatePerMin int

	// DatabaseURL wins over SQLitePath when set.
	DatabaseURL string
	SQLitePath  string

	LogLevel  slog.Level
	LogFormat string
}

// Load reads the configuration. It fails only on malformed values; missing
// required values are reported by Validate so a CLI subcommand that needs
// only the database can still run.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	rate, err := getEnvInt("ADMIN_RATE_PER_MIN", 30)
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	format := strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", format)
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = getEnv("DB_URL", "")
	}

	return &Config{
		Port:            port,
		BotToken:        strings.TrimSpace(getEnv("BOT_TOKEN", "")),
		BotUsername:     strings.TrimPrefix(strings.TrimSpace(getEnv("BOT_USERNAME", "")), "@"),
		WebhookSecret:   strings.TrimSpace(getEnv("WEBHOOK_SECRET", "")),
		TelegramAPIURL:  strings.TrimRight(getEnv("TELEGRAM_API_URL", DefaultTelegramAPI), "/"),
		PlatformURL:     strings.TrimRight(getEnv("PLATFORM_URL", DefaultPlatformURL), "/"),
		ChannelURL:      strings.TrimSpace(getEnv("CHANNEL_URL", "")),
		StartPrefix:     getEnv("START_PREFIX", DefaultStartPrefix),
		BaseURL:         strings.TrimRight(strings.TrimSpace(getEnv("BASE_URL", "")), "/"),
		AdminToken:      strings.TrimSpace(getEnv("ADMIN_TOKEN", "")),
		AdminRatePerMin: rate,
		DatabaseURL:     dbURL,
		SQLitePath:      getEnv("TRACK_DB", DefaultSQLitePath),
		LogLevel:        level,
		LogFormat:       format,
	}, nil
}

// DSN is the storage DSN handed to storage.Open.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.SQLitePath
}

// Validate checks everything the server needs and reports all problems at
// once, joined.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		name, value string
	}{
		{"BOT_TOKEN", c.BotToken},
		{"BOT_USERNAME", c.BotUsername},
		{"BASE_URL", c.BaseURL},
		{"ADMIN_TOKEN", c.AdminToken},
		{"WEBHOOK_SECRET", c.WebhookSecret},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.AdminRatePerMin <= 0 {
		errs = append(errs, fmt.Errorf("ADMIN_RATE_PER_MIN must be positive, got %d", c.AdminRatePerMin))
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "https://") && !strings.HasPrefix(c.BaseURL, "http://") {
		errs = append(errs, fmt.Errorf("BASE_URL must be an http(s) URL, got %q", c.BaseURL))
	}
	// Telegram's secret_token grammar: 1-256 chars of A-Z a-z 0-9 _ -
	if c.WebhookSecret != "" && !validSecretToken(c.WebhookSecret) {
		errs = append(errs, errors.New("WEBHOOK_SECRET must be 1-256 characters of A-Z, a-z, 0-9, _ or -"))
	}
	if !validStartPrefix(c.StartPrefix) {
		errs = append(errs, fmt.Errorf("START_PREFIX must be up to 16 characters of A-Z, a-z, 0-9, _ or -, got %q", c.StartPrefix))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// LogValue implements slog.LogValuer so a Config can be logged without
// leaking secrets.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("port", c.Port),
		slog.String("bot_username", c.BotUsername),
		slog.String("bot_token", redact(c.BotToken)),
		slog.String("webhook_secret", redact(c.WebhookSecret)),
		slog.String("admin_token", redact(c.AdminToken)),
		slog.String("base_url", c.BaseURL),
		slog.String("channel_url", c.ChannelURL),
		slog.String("start_prefix", c.StartPrefix),
		slog.String("platform_url", c.PlatformURL),
		slog.String("telegram_api_url", c.TelegramAPIURL),
		slog.Bool("database_url_set", c.DatabaseURL != ""),
		slog.String("sqlite_path", c.SQLitePath),
		slog.String("log_level", c.LogLevel.String()),
		slog.String("log_format", c.LogFormat),
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "REDACTED"
}

func validSecretToken(s string) bool {
	return len(s) >= 1 && len(s) <= 256 && onlyParamChars(s)
}

func validStartPrefix(s string) bool {
	return len(s) <= 16 && onlyParamChars(s)
}

func onlyParamChars(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// getEnv treats an empty variable as unset, so "FOO=" in a compose file
// falls back to the default.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %q is not an integer", key, v)
	}
	return n, nil
}
