// Package memory is a process-local Click Store.
//
// It backs DATABASE_URL=memory: for demos and is the store the service and
// handler tests run against. Data is lost when the process exits.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/clicktrail/internal/apperror"
	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
)

// compile-time check that *Store implements repository.ClickRepository
var _ repository.ClickRepository = (*Store)(nil)

// Store keeps clicks in a map guarded by one mutex. Holding the lock across
// the state check and the write is what makes Claim atomic.
type Store struct {
	mu        sync.Mutex
	clicks    map[string]*model.Click
	botStarts []model.BotStart
	updates   map[int64]struct{} // update ids already in botStarts
}

// New returns an empty store.
func New() *Store {
	return &Store{
		clicks:  make(map[string]*model.Click),
		updates: make(map[int64]struct{}),
	}
}

// CreatePending inserts a pending click. An existing token is reported as
// apperror.ErrDuplicateToken and left untouched.
func (s *Store) CreatePending(_ context.Context, token string, source model.SourceMetadata, at time.Time) (*model.Click, error) {
	at = at.UTC().Truncate(time.Microsecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clicks[token]; ok {
		return nil, apperror.DuplicateToken(token)
	}

	c := &model.Click{
		Token:     token,
		State:     model.StatePending,
		CreatedAt: at,
		Source:    source,
	}
	s.clicks[token] = c

	out := *c
	return &out, nil
}

// Claim moves a pending click to claimed under the store lock. claimed_at is
// raised to created_at when the caller's clock lags.
func (s *Store) Claim(_ context.Context, token string, identity model.Identity, at time.Time) (repository.ClaimResult, error) {
	if !identity.Valid() {
		return 0, apperror.ValidationFailed("identity", "platform user id is required to claim a click")
	}
	at = at.UTC().Truncate(time.Microsecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clicks[token]
	if !ok {
		return repository.ClaimNotFound, nil
	}
	if c.State != model.StatePending {
		return repository.ClaimAlreadyClaimed, nil
	}

	if at.Before(c.CreatedAt) {
		at = c.CreatedAt
	}
	id := identity
	c.State = model.StateClaimed
	c.ClaimedAt = &at
	c.Identity = &id

	return repository.ClaimClaimed, nil
}

// Export returns copies of every click, oldest first, ties broken by token.
func (s *Store) Export(_ context.Context) ([]model.Click, error) {
	s.mu.Lock()
	out := make([]model.Click, 0, len(s.clicks))
	for _, c := range s.clicks {
		out = append(out, copyClick(c))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

// RecordBotStart stores an unattributed start unless its UpdateID was seen
// before. An empty ID is filled with a fresh xid; ReceivedAt defaults to now.
func (s *Store) RecordBotStart(_ context.Context, start *model.BotStart) (bool, error) {
	if start.ID == "" {
		start.ID = xid.New().String()
	}
	if start.ReceivedAt.IsZero() {
		start.ReceivedAt = time.Now()
	}
	start.ReceivedAt = start.ReceivedAt.UTC().Truncate(time.Microsecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	if start.UpdateID != 0 {
		if _, seen := s.updates[start.UpdateID]; seen {
			return false, nil
		}
		s.updates[start.UpdateID] = struct{}{}
	}
	s.botStarts = append(s.botStarts, *start)
	return true, nil
}

// BotStarts returns every recorded start, oldest first.
func (s *Store) BotStarts(_ context.Context) ([]model.BotStart, error) {
	s.mu.Lock()
	out := make([]model.BotStart, len(s.botStarts))
	copy(out, s.botStarts)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out, nil
}

// PurgePending deletes pending clicks created before olderThan. Claimed
// clicks are kept whatever their age.
func (s *Store) PurgePending(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, c := range s.clicks {
		if c.State == model.StatePending && c.CreatedAt.Before(olderThan) {
			delete(s.clicks, token)
			n++
		}
	}
	return n, nil
}

// Close is a no-op; the data lives as long as the Store.
func (s *Store) Close() error { return nil }

// copyClick detaches the pointer fields so callers cannot mutate stored state.
func copyClick(c *model.Click) model.Click {
	out := *c
	if c.ClaimedAt != nil {
		t := *c.ClaimedAt
		out.ClaimedAt = &t
	}
	if c.Identity != nil {
		id := *c.Identity
		out.Identity = &id
	}
	return out
}
