package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/clicktrail/internal/apperror"
	"github.com/sakif/clicktrail/internal/telegram"
)

const privacyNotice = `Privacy notice
This service logs clicks on the bio link (time, IP address, user agent and referrer).
If you press Start in the Telegram bot after clicking, we also store your Telegram
user id, username and name to link you to that click.
We never receive your Instagram account identity.
`

// HandleHealth answers liveness checks.
//
// HTTP: GET /health
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandlePrivacy serves the plain-text privacy notice linked from the bio.
//
// HTTP: GET /privacy
func HandlePrivacy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(privacyNotice))
}

// HandleNotFound answers unrouted paths with the standard JSON error body.
func HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, apperror.NotFound("route"))
}

// WebhookRegistrar registers our webhook with Telegram.
// *telegram.Client satisfies it.
type WebhookRegistrar interface {
	RegisterWebhook(ctx context.Context, baseURL, secret string) (*telegram.APIResponse, error)
}

// AdminHandler serves operator actions other than the export.
type AdminHandler struct {
	registrar WebhookRegistrar
	baseURL   string
	secret    string
	logger    *slog.Logger
}

func NewAdminHandler(registrar WebhookRegistrar, baseURL, webhookSecret string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		registrar: registrar,
		baseURL:   baseURL,
		secret:    webhookSecret,
		logger:    logger,
	}
}

// HandleSetWebhook points Telegram at BASE_URL/tg/webhook with our secret.
//
// HTTP: GET|POST /admin/set_webhook
//
// Telegram's answer is passed through as the body. A refusal (ok=false) is
// a 502: our request was fine, the upstream said no.
func (h *AdminHandler) HandleSetWebhook(w http.ResponseWriter, r *http.Request) {
	resp, err := h.registrar.RegisterWebhook(r.Context(), h.baseURL, h.secret)
	if err != nil {
		h.logger.Error("setWebhook failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "could not reach Telegram",
		})
		return
	}

	if !resp.OK {
		h.logger.Warn("setWebhook refused",
			slog.Int("error_code", resp.ErrorCode),
			slog.String("description", resp.Description),
		)
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	h.logger.Info("webhook registered", slog.String("url", h.baseURL+telegram.WebhookPath))
	writeJSON(w, http.StatusOK, resp)
}
