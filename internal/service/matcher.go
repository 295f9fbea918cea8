package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
)

// Outcome is the result of matching a start event against the Click Store.
// The set is closed; callers switch over all three values.
type Outcome int

const (
	// Correlated: this event claimed a pending click.
	Correlated Outcome = iota + 1
	// Duplicate: the event was already handled. Either the click was claimed
	// earlier (by a redelivery of this event or another one), or this update
	// already came in as Unknown. Nothing changed.
	Duplicate
	// Unknown: no click carries this token. Nothing was created in the
	// Click Store; the start is recorded as a BotStart.
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Correlated:
		return "correlated"
	case Duplicate:
		return "duplicate"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Matcher turns a start event into an attribution.
type Matcher struct {
	repo   repository.ClickRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewMatcher(repo repository.ClickRepository, logger *slog.Logger) *Matcher {
	return &Matcher{repo: repo, logger: logger, now: time.Now}
}

// Match claims token for identity. updateID is Telegram's update_id, or 0
// when the event has none.
//
// Only infrastructure failures come back as errors; a duplicate delivery or
// an unknown token is an Outcome. That keeps the webhook free to answer 200
// for both and lets Telegram retry only what can succeed on retry.
//
// An unknown token is recorded as a BotStart keyed by updateID. The first
// delivery is Unknown; a redelivery of the same update finds it recorded and
// is Duplicate, so it is never answered twice. Failing to record is logged
// and swallowed: the start carries no attribution either way, and surfacing
// the error would make Telegram redeliver an event that can never correlate.
func (m *Matcher) Match(ctx context.Context, updateID int64, token string, identity model.Identity) (Outcome, error) {
	now := m.now()

	res, err := m.repo.Claim(ctx, token, identity, now)
	if err != nil {
		return 0, fmt.Errorf("matching token: %w", err)
	}

	switch res {
	case repository.ClaimClaimed:
		m.logger.Info("click correlated",
			slog.String("token", token),
			slog.Int64("platform_user_id", identity.UserID),
		)
		return Correlated, nil

	case repository.ClaimAlreadyClaimed:
		m.logger.Debug("duplicate start ignored",
			slog.String("token", token),
			slog.Int64("platform_user_id", identity.UserID),
		)
		return Duplicate, nil

	case repository.ClaimNotFound:
		start := &model.BotStart{UpdateID: updateID, Payload: token, Identity: identity, ReceivedAt: now}
		stored, err := m.repo.RecordBotStart(ctx, start)
		if err != nil {
			m.logger.Warn("recording bot start failed",
				slog.String("token", token),
				slog.String("error", err.Error()),
			)
		} else if !stored {
			m.logger.Debug("redelivered start ignored",
				slog.Int64("update_id", updateID),
				slog.String("token", token),
			)
			return Duplicate, nil
		}

		m.logger.Info("start with unknown token",
			slog.String("token", token),
			slog.Int64("platform_user_id", identity.UserID),
		)
		return Unknown, nil

	default:
		return 0, fmt.Errorf("matching token: unexpected claim result %v", res)
	}
}
