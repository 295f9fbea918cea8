// Package telegram holds the small slice of the Bot API the tracker speaks:
// inbound Update decoding, /start payload parsing, webhook replies and the
// setWebhook call.
package telegram

import (
	"strings"

	"github.com/sakif/clicktrail/internal/model"
)

// SecretHeader carries the secret_token registered with setWebhook on every
// webhook delivery.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Update is an incoming webhook payload. Only the fields the tracker reads
// are declared; everything else is ignored by encoding/json.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// EffectiveMessage returns the message, falling back to the edited message.
func (u *Update) EffectiveMessage() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.EditedMessage
}

// Identity converts the sender into a model.Identity. ok is false when the
// sender is missing or has no user id.
func (m *Message) Identity() (model.Identity, bool) {
	if m.From == nil || m.From.ID == 0 {
		return model.Identity{}, false
	}
	return model.Identity{
		UserID:    m.From.ID,
		Username:  m.From.Username,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
	}, true
}

// StartCommand is a parsed "/start" message.
type StartCommand struct {
	// Payload is everything after the command, trimmed. Empty when the user
	// opened the bot without a start parameter.
	Payload string
}

// ParseStart recognises "/start", "/start payload" and "/start@BotName payload".
// A command addressed to a different bot is not a start for us. ok is false
// for any other text.
func ParseStart(text, botUsername string) (StartCommand, bool) {
	text = strings.TrimSpace(text)
	cmd, rest, _ := strings.Cut(text, " ")

	name, target, addressed := strings.Cut(cmd, "@")
	if name != "/start" {
		return StartCommand{}, false
	}
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return StartCommand{}, false
	}

	return StartCommand{Payload: strings.TrimSpace(rest)}, true
}

// Token strips prefix from the payload. ok is false if the payload does not
// carry the prefix or nothing follows it.
func (c StartCommand) Token(prefix string) (string, bool) {
	if !strings.HasPrefix(c.Payload, prefix) {
		return "", false
	}
	tok := c.Payload[len(prefix):]
	if tok == "" {
		return "", false
	}
	return tok, true
}
