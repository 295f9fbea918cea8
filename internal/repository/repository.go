// Package repository defines the storage contract for clicks.
//
// Backends live in subpackages (sqlite, postgres, memory) and are exercised by
// the same contract suite in repotest. The service layer only ever sees the
// ClickRepository interface.
package repository

import (
	"context"
	"time"

	"github.com/sakif/clicktrail/internal/model"
)

// ClaimResult is the outcome of a claim attempt. It is a closed set: callers
// switch over all three values.
type ClaimResult int

const (
	// ClaimClaimed: the click was pending and is now claimed by this call.
	ClaimClaimed ClaimResult = iota + 1
	// ClaimAlreadyClaimed: the click was claimed earlier. Nothing changed.
	ClaimAlreadyClaimed
	// ClaimNotFound: no click with that token exists. Nothing was created.
	ClaimNotFound
)

func (r ClaimResult) String() string {
	switch r {
	case ClaimClaimed:
		return "claimed"
	case ClaimAlreadyClaimed:
		return "already_claimed"
	case ClaimNotFound:
		return "not_found"
	default:
		return "invalid"
	}
}

// ClickRepository is the Click Store.
//
// ATOMICITY:
// Claim must perform "transition if and only if currently pending" as one
// conditional write. Two concurrent Claim calls for the same token yield
// exactly one ClaimClaimed.
//
// FAILURES:
// Backends wrap driver errors in apperror.Unavailable, so callers tell an
// outage from a bad request with errors.Is(err, apperror.ErrUnavailable).
type ClickRepository interface {
	// CreatePending inserts a pending click created at `at`. Returns an error
	// wrapping apperror.ErrDuplicateToken if the token already exists.
	CreatePending(ctx context.Context, token string, source model.SourceMetadata, at time.Time) (*model.Click, error)

	// Claim moves a pending click to claimed and merges the identity.
	// The stored claimed_at is never earlier than the click's created_at.
	Claim(ctx context.Context, token string, identity model.Identity, at time.Time) (ClaimResult, error)

	// Export returns every click ordered by created_at, then token.
	Export(ctx context.Context) ([]model.Click, error)

	// RecordBotStart stores a start event that matched no click and reports
	// whether it was stored. A start whose non-zero UpdateID is already
	// recorded is a redelivery: nothing is written and it returns false.
	RecordBotStart(ctx context.Context, start *model.BotStart) (bool, error)

	// BotStarts returns every recorded unattributed start, oldest first.
	BotStarts(ctx context.Context) ([]model.BotStart, error)

	// PurgePending deletes pending clicks created before olderThan and returns
	// how many were removed. Claimed clicks are never deleted.
	PurgePending(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}
