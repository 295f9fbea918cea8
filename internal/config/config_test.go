package config

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequired fills every required variable. t.Setenv restores the previous
// values when the test ends.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123456:ABC-DEF")
	t.Setenv("BOT_USERNAME", "@acme_bot")
	t.Setenv("BASE_URL", "https://track.example.com/")
	t.Setenv("ADMIN_TOKEN", "admin-secret")
	t.Setenv("WEBHOOK_SECRET", "wh_secret-1")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	for _, k := range []string{"PORT", "DATABASE_URL", "DB_URL", "TRACK_DB", "START_PREFIX", "PLATFORM_URL",
		"TELEGRAM_API_URL", "CHANNEL_URL", "LOG_LEVEL", "LOG_FORMAT", "ADMIN_RATE_PER_MIN"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "acme_bot", cfg.BotUsername, "leading @ is stripped")
	assert.Equal(t, "https://track.example.com", cfg.BaseURL, "trailing slash is stripped")
	assert.Equal(t, DefaultStartPrefix, cfg.StartPrefix)
	assert.Equal(t, DefaultPlatformURL, cfg.PlatformURL)
	assert.Equal(t, DefaultTelegramAPI, cfg.TelegramAPIURL)
	assert.Equal(t, DefaultSQLitePath, cfg.DSN())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30, cfg.AdminRatePerMin)
}

func TestLoad_DatabaseURLPrecedence(t *testing.T) {
	setRequired(t)
	t.Setenv("TRACK_DB", "/data/tracker.sqlite3")

	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "libsql://clicks-acme.turso.io")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "libsql://clicks-acme.turso.io", cfg.DSN())

	t.Setenv("DATABASE_URL", "postgres://db/clicks")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/clicks", cfg.DSN())
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port not a number", "PORT", "eighty"},
		{"rate not a number", "ADMIN_RATE_PER_MIN", "lots"},
		{"unknown log level", "LOG_LEVEL", "chatty"},
		{"unknown log format", "LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_ReportsEverythingMissing(t *testing.T) {
	cfg := &Config{Port: 8080, AdminRatePerMin: 30, StartPrefix: "ig_"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, name := range []string{"BOT_TOKEN", "BOT_USERNAME", "BASE_URL", "ADMIN_TOKEN", "WEBHOOK_SECRET"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestValidate_Values(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port: 8080, BotToken: "t", BotUsername: "acme_bot", BaseURL: "https://x.example",
			AdminToken: "a", WebhookSecret: "s", StartPrefix: "ig_", AdminRatePerMin: 30,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"empty prefix allowed", func(c *Config) { c.StartPrefix = "" }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, false},
		{"zero rate", func(c *Config) { c.AdminRatePerMin = 0 }, false},
		{"base url without scheme", func(c *Config) { c.BaseURL = "track.example.com" }, false},
		{"secret with space", func(c *Config) { c.WebhookSecret = "not allowed" }, false},
		{"prefix with dot", func(c *Config) { c.StartPrefix = "ig." }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLogValue_RedactsSecrets(t *testing.T) {
	cfg := &Config{
		BotToken:      "123456:SUPERSECRET",
		AdminToken:    "hunter2",
		WebhookSecret: "wh_secret",
		BotUsername:   "acme_bot",
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("config loaded", slog.Any("config", cfg))

	out := buf.String()
	assert.NotContains(t, out, "SUPERSECRET")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "wh_secret")
	assert.Contains(t, out, "acme_bot")
	assert.Contains(t, out, "REDACTED")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: slog.LevelWarn, LogFormat: "json"}
	logger := cfg.NewLogger(&buf)

	logger.Info("dropped")
	logger.Warn("kept", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"k":"v"`)

	buf.Reset()
	cfg.LogFormat = "text"
	cfg.NewLogger(&buf).Warn("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
