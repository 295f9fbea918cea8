// Package service contains the correlation logic.
//
// THE LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (this)     → mints tokens, classifies claims, shapes exports
//	Repository (data)  → the Click Store
//
// Services take repository.ClickRepository, never a concrete backend, so the
// same code runs on sqlite, postgres or the in-memory store, and the CLI can
// reuse them without any HTTP in sight.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
)

// TokenGenerator produces fresh correlation tokens.
// *token.Generator satisfies it.
type TokenGenerator interface {
	Generate() (string, error)
}

// DeepLinkConfig describes where a click is sent.
type DeepLinkConfig struct {
	// PlatformURL is the deep-link base, e.g. "https://t.me".
	PlatformURL string
	// BotUsername without the leading "@".
	BotUsername string
	// StartPrefix is prepended to the token in the start parameter.
	StartPrefix string
}

// DeepLink returns "<platform>/<bot>?start=<prefix><token>".
func (c DeepLinkConfig) DeepLink(token string) string {
	q := url.Values{"start": {c.StartPrefix + token}}
	return fmt.Sprintf("%s/%s?%s", c.PlatformURL, url.PathEscape(c.BotUsername), q.Encode())
}

// Tracker is the redirect side: every hit on the public link becomes a
// pending click.
type Tracker struct {
	repo   repository.ClickRepository
	tokens TokenGenerator
	link   DeepLinkConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewTracker(repo repository.ClickRepository, tokens TokenGenerator, link DeepLinkConfig, logger *slog.Logger) *Tracker {
	return &Tracker{
		repo:   repo,
		tokens: tokens,
		link:   link,
		logger: logger,
		now:    time.Now,
	}
}

// Track mints a token, stores a pending click and returns it with the deep
// link to redirect to.
//
// The token is always generated here; nothing the client sends can choose
// it. A duplicate token from the store is an integrity violation: it is
// logged and returned, never retried with a new token, because a collision
// at this entropy means the generator is broken.
func (t *Tracker) Track(ctx context.Context, source model.SourceMetadata) (*model.Click, string, error) {
	tok, err := t.tokens.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("tracking click: %w", err)
	}

	click, err := t.repo.CreatePending(ctx, tok, source, t.now())
	if err != nil {
		return nil, "", fmt.Errorf("tracking click: %w", err)
	}

	t.logger.Debug("click tracked",
		slog.String("token", tok),
		slog.String("ip", source.IP),
	)

	return click, t.link.DeepLink(tok), nil
}
