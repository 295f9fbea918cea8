package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/clicktrail/internal/apperror"
	"github.com/sakif/clicktrail/internal/auth"
	"github.com/sakif/clicktrail/internal/metrics"
	"github.com/sakif/clicktrail/internal/model"
)

// ClickTracker is the part of service.Tracker the redirect needs.
type ClickTracker interface {
	Track(ctx context.Context, source model.SourceMetadata) (*model.Click, string, error)
}

// RedirectHandler serves the public bio link.
type RedirectHandler struct {
	tracker ClickTracker
	metrics *metrics.Registry
	logger  *slog.Logger
}

func NewRedirectHandler(tracker ClickTracker, m *metrics.Registry, logger *slog.Logger) *RedirectHandler {
	return &RedirectHandler{tracker: tracker, metrics: m, logger: logger}
}

// HandleRedirect records a pending click and sends the visitor to the bot.
//
// HTTP: GET /ig
//
// Query parameters are ignored; in particular a client cannot choose its
// token. chi's RealIP runs first, so RemoteAddr is the client IP from a proxy
// header, or the socket's host:port when there is none.
//
// On failure the visitor gets a 500 and simply reloads, minting a fresh
// token. Responses are never cached: each hit must reach us.
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	source := model.SourceMetadata{
		IP:        auth.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}

	_, link, err := h.tracker.Track(r.Context(), source)
	if err != nil {
		if errors.Is(err, apperror.ErrDuplicateToken) {
			h.logger.Error("integrity violation: generated token already exists",
				slog.String("error", err.Error()),
			)
		} else {
			h.logger.Error("tracking click failed", slog.String("error", err.Error()))
		}
		http.Error(w, "Temporary error, please try again.", http.StatusInternalServerError)
		return
	}

	h.metrics.ClicksCreated.Inc()
	http.Redirect(w, r, link, http.StatusFound)
}
