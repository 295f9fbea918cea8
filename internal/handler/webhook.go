package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/clicktrail/internal/metrics"
	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/service"
	"github.com/sakif/clicktrail/internal/telegram"
)

// maxUpdateBytes bounds a webhook body. Real updates are a few KiB.
const maxUpdateBytes = 1 << 20

// StartMatcher is the part of service.Matcher the webhook needs.
type StartMatcher interface {
	Match(ctx context.Context, updateID int64, token string, identity model.Identity) (service.Outcome, error)
}

// SecretChecker verifies the webhook secret header.
// *auth.SecretVerifier satisfies it.
type SecretChecker interface {
	Verify(presented string) error
}

// WebhookConfig is the bot-facing part of the configuration.
type WebhookConfig struct {
	BotUsername string
	StartPrefix string
	// ChannelURL is the button target in the welcome reply. Empty disables
	// the reply.
	ChannelURL string
}

// WebhookHandler ingests Telegram updates.
type WebhookHandler struct {
	matcher StartMatcher
	secret  SecretChecker
	cfg     WebhookConfig
	metrics *metrics.Registry
	logger  *slog.Logger
}

func NewWebhookHandler(matcher StartMatcher, secret SecretChecker, cfg WebhookConfig, m *metrics.Registry, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		matcher: matcher,
		secret:  secret,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// HandleUpdate processes one webhook delivery.
//
// HTTP: POST /tg/webhook
//
// STATUS CODES DRIVE TELEGRAM'S RETRIES:
//
//	401  wrong secret, nothing read, nothing stored
//	500  the Click Store failed; Telegram redelivers and the claim is retried
//	200  everything else, including updates we chose to ignore
//
// Anything that would fail the same way on every redelivery is answered 200,
// otherwise Telegram keeps retrying it and holds back later updates.
func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := h.secret.Verify(r.Header.Get(telegram.SecretHeader)); err != nil {
		h.logger.Warn("webhook rejected: bad secret",
			slog.String("remote_addr", r.RemoteAddr),
		)
		h.count("unauthorized")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid secret token",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBytes)

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("webhook body not decodable", slog.String("error", err.Error()))
		h.count("malformed")
		h.ack(w)
		return
	}

	msg := update.EffectiveMessage()
	if msg == nil {
		h.count("ignored")
		h.ack(w)
		return
	}

	start, ok := telegram.ParseStart(msg.Text, h.cfg.BotUsername)
	if !ok {
		h.count("ignored")
		h.ack(w)
		return
	}

	identity, ok := msg.Identity()
	if !ok {
		h.logger.Warn("start without sender identity", slog.Int64("update_id", update.UpdateID))
		h.count("ignored")
		h.ack(w)
		return
	}

	token, ok := start.Token(h.cfg.StartPrefix)
	if !ok {
		// Opened the bot directly or with a foreign payload: no attribution,
		// but the user still gets the channel button.
		h.logger.Debug("start without token",
			slog.Int64("platform_user_id", identity.UserID),
			slog.String("payload", start.Payload),
		)
		h.count("no_token")
		h.welcome(w, msg.Chat.ID)
		return
	}

	outcome, err := h.matcher.Match(r.Context(), update.UpdateID, token, identity)
	if err != nil {
		h.logger.Error("matching start failed",
			slog.Int64("update_id", update.UpdateID),
			slog.String("error", err.Error()),
		)
		h.count("error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	h.metrics.MatchOutcomes.WithLabelValues(outcome.String()).Inc()
	h.count("matched")

	switch outcome {
	case service.Correlated, service.Unknown:
		h.welcome(w, msg.Chat.ID)
	case service.Duplicate:
		// An earlier delivery already replied.
		h.ack(w)
	default:
		h.ack(w)
	}
}

func (h *WebhookHandler) count(result string) {
	h.metrics.WebhookUpdates.WithLabelValues(result).Inc()
}

func (h *WebhookHandler) ack(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, telegram.Ack{OK: true})
}

func (h *WebhookHandler) welcome(w http.ResponseWriter, chatID int64) {
	if h.cfg.ChannelURL == "" || chatID == 0 {
		h.ack(w)
		return
	}
	writeJSON(w, http.StatusOK, telegram.WelcomeReply(chatID, h.cfg.ChannelURL))
}
