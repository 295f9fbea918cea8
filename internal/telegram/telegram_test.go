package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/clicktrail/internal/apperror"
	"github.com/sakif/clicktrail/internal/model"
)

func TestParseStart(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantOK      bool
		wantPayload string
	}{
		{"bare start", "/start", true, ""},
		{"start with payload", "/start ig_abc123", true, "ig_abc123"},
		{"surrounding whitespace", "  /start   ig_abc123  ", true, "ig_abc123"},
		{"addressed to us", "/start@acme_bot ig_abc123", true, "ig_abc123"},
		{"addressed to us, other case", "/start@Acme_Bot ig_abc123", true, "ig_abc123"},
		{"addressed to another bot", "/start@other_bot ig_abc123", false, ""},
		{"different command", "/help", false, ""},
		{"prefix of start", "/started ig_abc123", false, ""},
		{"plain text", "hello", false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := ParseStart(tt.text, "acme_bot")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPayload, cmd.Payload)
		})
	}
}

func TestStartCommandToken(t *testing.T) {
	tests := []struct {
		payload string
		want    string
		ok      bool
	}{
		{"ig_abc123", "abc123", true},
		{"ig_", "", false},
		{"abc123", "", false},
		{"", "", false},
		{"ig_ig_abc", "ig_abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			tok, ok := StartCommand{Payload: tt.payload}.Token("ig_")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, tok)
		})
	}
}

func TestUpdateDecoding(t *testing.T) {
	raw := `{
		"update_id": 10000,
		"edited_message": {
			"message_id": 1365,
			"date": 1741000000,
			"chat": {"id": 1111111, "type": "private"},
			"from": {"id": 1111111, "is_bot": false, "first_name": "Alice", "username": "alice"},
			"text": "/start ig_abc123",
			"entities": [{"offset": 0, "length": 6, "type": "bot_command"}]
		}
	}`

	var u Update
	require.NoError(t, json.Unmarshal([]byte(raw), &u))

	msg := u.EffectiveMessage()
	require.NotNil(t, msg, "edited_message is used when message is absent")
	assert.Equal(t, int64(1111111), msg.Chat.ID)

	id, ok := msg.Identity()
	require.True(t, ok)
	assert.Equal(t, model.Identity{UserID: 1111111, Username: "alice", FirstName: "Alice"}, id)
}

func TestMessageIdentity_Missing(t *testing.T) {
	_, ok := (&Message{}).Identity()
	assert.False(t, ok)

	_, ok = (&Message{From: &User{FirstName: "NoID"}}).Identity()
	assert.False(t, ok)
}

func TestWelcomeReplyJSON(t *testing.T) {
	b, err := json.Marshal(WelcomeReply(42, "https://t.me/acme_channel"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "sendMessage", got["method"])
	assert.Equal(t, float64(42), got["chat_id"])
	assert.Equal(t, WelcomeText, got["text"])

	kb := got["reply_markup"].(map[string]any)["inline_keyboard"].([]any)
	button := kb[0].([]any)[0].(map[string]any)
	assert.Equal(t, "https://t.me/acme_channel", button["url"])
}

func TestClientSetWebhook(t *testing.T) {
	var (
		gotPath string
		gotBody SetWebhookParams
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":true,"description":"Webhook was set"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", "123:ABC", slog.New(slog.NewTextHandler(io.Discard, nil)))
	resp, err := c.SetWebhook(context.Background(), SetWebhookParams{
		URL:         "https://track.example.com/tg/webhook",
		SecretToken: "wh_secret",
	})
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.Equal(t, "Webhook was set", resp.Description)
	assert.Equal(t, "/bot123:ABC/setWebhook", gotPath)
	assert.Equal(t, "https://track.example.com/tg/webhook", gotBody.URL)
	assert.Equal(t, []string{"message", "edited_message"}, gotBody.AllowedUpdates)
	assert.Equal(t, "wh_secret", gotBody.SecretToken)
}

func TestClientSetWebhook_TelegramRefuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "bad", slog.New(slog.NewTextHandler(io.Discard, nil)))
	resp, err := c.SetWebhook(context.Background(), SetWebhookParams{URL: "https://x/tg/webhook"})
	require.NoError(t, err, "an API-level refusal is an answer, not a transport error")
	assert.False(t, resp.OK)
	assert.Equal(t, 401, resp.ErrorCode)
}

func TestClientSetWebhook_NotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "123:ABC", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.SetWebhook(context.Background(), SetWebhookParams{URL: "https://x/tg/webhook"})
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

func TestClientSetWebhook_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(srv.URL, "123:ABC", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.SetWebhook(context.Background(), SetWebhookParams{URL: "https://x/tg/webhook"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.NotContains(t, err.Error(), "123:ABC", "the bot token never reaches an error")
}

func TestClientRegisterWebhook(t *testing.T) {
	var got SetWebhookParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "123:ABC", slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.RegisterWebhook(context.Background(), "https://track.example.com/", "wh_secret")
	require.NoError(t, err)

	assert.Equal(t, "https://track.example.com/tg/webhook", got.URL)
	assert.Equal(t, "wh_secret", got.SecretToken)
	assert.Equal(t, AllowedUpdates, got.AllowedUpdates)
}
