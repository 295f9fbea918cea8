// Package repotest is the behavioural contract every ClickRepository backend
// must satisfy. Backend packages call Run from their own tests:
//
//	func TestContract(t *testing.T) {
//		repotest.Run(t, func(t *testing.T) repository.ClickRepository {
//			return newTestDB(t)
//		})
//	}
//
// Each subtest gets a fresh, empty repository from the factory.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/clicktrail/internal/apperror"
	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
)

// Factory returns a fresh, empty repository. It should register its own
// cleanup with t.Cleanup.
type Factory func(t *testing.T) repository.ClickRepository

var (
	alice = model.Identity{UserID: 1001, Username: "alice", FirstName: "Alice", LastName: "Liddell"}
	bob   = model.Identity{UserID: 1002, Username: "bob", FirstName: "Bob"}
)

// Run executes the full contract against repositories produced by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("CreatePending stores a pending click", func(t *testing.T) { testCreatePending(t, newRepo(t)) })
	t.Run("CreatePending rejects a duplicate token", func(t *testing.T) { testDuplicateToken(t, newRepo(t)) })
	t.Run("Claim transitions pending to claimed", func(t *testing.T) { testClaim(t, newRepo(t)) })
	t.Run("second Claim is AlreadyClaimed", func(t *testing.T) { testClaimTwice(t, newRepo(t)) })
	t.Run("Claim on unknown token creates nothing", func(t *testing.T) { testClaimUnknown(t, newRepo(t)) })
	t.Run("Claim without user id is rejected", func(t *testing.T) { testClaimInvalidIdentity(t, newRepo(t)) })
	t.Run("claimed_at is never before created_at", func(t *testing.T) { testClaimClockSkew(t, newRepo(t)) })
	t.Run("concurrent claims yield exactly one winner", func(t *testing.T) { testConcurrentClaim(t, newRepo(t)) })
	t.Run("interleaved create and claim keep invariants", func(t *testing.T) { testInterleaved(t, newRepo(t)) })
	t.Run("Export orders by created_at then token", func(t *testing.T) { testExportOrder(t, newRepo(t)) })
	t.Run("PurgePending keeps claimed clicks", func(t *testing.T) { testPurge(t, newRepo(t)) })
	t.Run("bot starts are recorded", func(t *testing.T) { testBotStarts(t, newRepo(t)) })
	t.Run("a redelivered bot start is recorded once", func(t *testing.T) { testBotStartRedelivery(t, newRepo(t)) })
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func mustCreate(t *testing.T, repo repository.ClickRepository, token string, at time.Time) *model.Click {
	t.Helper()
	c, err := repo.CreatePending(context.Background(), token, model.SourceMetadata{
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) Instagram 320.0",
		Referrer:  "https://l.instagram.com/",
	}, at)
	require.NoError(t, err, "CreatePending(%q)", token)
	return c
}

func exportByToken(t *testing.T, repo repository.ClickRepository) map[string]model.Click {
	t.Helper()
	clicks, err := repo.Export(context.Background())
	require.NoError(t, err)
	out := make(map[string]model.Click, len(clicks))
	for _, c := range clicks {
		out[c.Token] = c
	}
	return out
}

func assertConsistent(t *testing.T, clicks []model.Click) {
	t.Helper()
	for _, c := range clicks {
		assert.True(t, c.Consistent(), "click %s violates state invariants: %+v", c.Token, c)
	}
}

func testCreatePending(t *testing.T, repo repository.ClickRepository) {
	c := mustCreate(t, repo, "abc123", epoch)

	assert.Equal(t, "abc123", c.Token)
	assert.Equal(t, model.StatePending, c.State)
	assert.True(t, c.CreatedAt.Equal(epoch))
	assert.Nil(t, c.ClaimedAt)
	assert.Nil(t, c.Identity)

	got := exportByToken(t, repo)
	require.Len(t, got, 1)
	stored := got["abc123"]
	assert.Equal(t, model.StatePending, stored.State)
	assert.True(t, stored.CreatedAt.Equal(epoch), "created_at = %v, want %v", stored.CreatedAt, epoch)
	assert.Equal(t, "203.0.113.7", stored.Source.IP)
	assert.Equal(t, "https://l.instagram.com/", stored.Source.Referrer)
	assert.Nil(t, stored.ClaimedAt)
	assert.Nil(t, stored.Identity)
}

func testDuplicateToken(t *testing.T, repo repository.ClickRepository) {
	mustCreate(t, repo, "abc123", epoch)

	_, err := repo.CreatePending(context.Background(), "abc123", model.SourceMetadata{IP: "198.51.100.1"}, epoch.Add(time.Minute))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrDuplicateToken)

	// The original row is untouched.
	got := exportByToken(t, repo)
	require.Len(t, got, 1)
	assert.Equal(t, "203.0.113.7", got["abc123"].Source.IP)
	assert.True(t, got["abc123"].CreatedAt.Equal(epoch))
}

func testClaim(t *testing.T, repo repository.ClickRepository) {
	mustCreate(t, repo, "abc123", epoch)

	res, err := repo.Claim(context.Background(), "abc123", alice, epoch.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, repository.ClaimClaimed, res)

	got := exportByToken(t, repo)
	require.Len(t, got, 1, "claim must update in place")
	c := got["abc123"]
	assert.Equal(t, model.StateClaimed, c.State)
	require.NotNil(t, c.ClaimedAt)
	assert.True(t, c.ClaimedAt.Equal(epoch.Add(5*time.Second)))
	require.NotNil(t, c.Identity)
	assert.Equal(t, alice, *c.Identity)
	assert.True(t, c.Consistent())
}

func testClaimTwice(t *testing.T, repo repository.ClickRepository) {
	mustCreate(t, repo, "abc123", epoch)

	res, err := repo.Claim(context.Background(), "abc123", alice, epoch.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, repository.ClaimClaimed, res)

	res, err = repo.Claim(context.Background(), "abc123", bob, epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, repository.ClaimAlreadyClaimed, res)

	// First claim wins; nothing about the row changed.
	c := exportByToken(t, repo)["abc123"]
	require.NotNil(t, c.Identity)
	assert.Equal(t, alice, *c.Identity)
	assert.True(t, c.ClaimedAt.Equal(epoch.Add(time.Second)))
}

func testClaimUnknown(t *testing.T, repo repository.ClickRepository) {
	res, err := repo.Claim(context.Background(), "never-issued", alice, epoch)
	require.NoError(t, err)
	assert.Equal(t, repository.ClaimNotFound, res)

	clicks, err := repo.Export(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clicks)
}

func testClaimInvalidIdentity(t *testing.T, repo repository.ClickRepository) {
	mustCreate(t, repo, "abc123", epoch)

	_, err := repo.Claim(context.Background(), "abc123", model.Identity{Username: "ghost"}, epoch)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	assert.Equal(t, model.StatePending, exportByToken(t, repo)["abc123"].State)
}

func testClaimClockSkew(t *testing.T, repo repository.ClickRepository) {
	mustCreate(t, repo, "abc123", epoch)

	// The claiming process's clock is behind the one that served the redirect.
	res, err := repo.Claim(context.Background(), "abc123", alice, epoch.Add(-3*time.Second))
	require.NoError(t, err)
	require.Equal(t, repository.ClaimClaimed, res)

	c := exportByToken(t, repo)["abc123"]
	require.NotNil(t, c.ClaimedAt)
	assert.False(t, c.ClaimedAt.Before(c.CreatedAt), "claimed_at %v before created_at %v", c.ClaimedAt, c.CreatedAt)
}

func testConcurrentClaim(t *testing.T, repo repository.ClickRepository) {
	mustCreate(t, repo, "abc123", epoch)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[repository.ClaimResult]int)
		errs    []error
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			id := model.Identity{UserID: int64(2000 + i), FirstName: fmt.Sprintf("user%d", i)}
			res, err := repo.Claim(context.Background(), "abc123", id, epoch.Add(time.Second))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[res]++
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, results[repository.ClaimClaimed], "exactly one claim must win")
	assert.Equal(t, workers-1, results[repository.ClaimAlreadyClaimed])

	c := exportByToken(t, repo)["abc123"]
	assert.Equal(t, model.StateClaimed, c.State)
	assert.True(t, c.Consistent())
}

func testInterleaved(t *testing.T, repo repository.ClickRepository) {
	const n = 20
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		token := fmt.Sprintf("tok%02d", i)
		mustCreate(t, repo, token, epoch.Add(time.Duration(i)*time.Millisecond))
	}

	// Claims race with new creates and with each other.
	for i := 0; i < n; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			_, _ = repo.Claim(context.Background(), fmt.Sprintf("tok%02d", i), alice, epoch.Add(time.Second))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = repo.Claim(context.Background(), fmt.Sprintf("tok%02d", i), bob, epoch.Add(2*time.Second))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = repo.CreatePending(context.Background(), fmt.Sprintf("new%02d", i), model.SourceMetadata{}, epoch.Add(time.Minute))
		}(i)
	}
	wg.Wait()

	clicks, err := repo.Export(context.Background())
	require.NoError(t, err)
	assert.Len(t, clicks, 2*n)
	assertConsistent(t, clicks)

	for _, c := range clicks {
		if c.Token[:3] == "tok" {
			assert.Equal(t, model.StateClaimed, c.State, c.Token)
		} else {
			assert.Equal(t, model.StatePending, c.State, c.Token)
		}
	}
}

func testExportOrder(t *testing.T, repo repository.ClickRepository) {
	mustCreate(t, repo, "ccc", epoch.Add(2*time.Second))
	mustCreate(t, repo, "bbb", epoch)
	mustCreate(t, repo, "aaa", epoch)
	mustCreate(t, repo, "ddd", epoch.Add(time.Second))

	clicks, err := repo.Export(context.Background())
	require.NoError(t, err)

	tokens := make([]string, 0, len(clicks))
	for _, c := range clicks {
		tokens = append(tokens, c.Token)
	}
	assert.Equal(t, []string{"aaa", "bbb", "ddd", "ccc"}, tokens)
}

func testPurge(t *testing.T, repo repository.ClickRepository) {
	ctx := context.Background()
	mustCreate(t, repo, "old-pending", epoch)
	mustCreate(t, repo, "old-claimed", epoch)
	mustCreate(t, repo, "new-pending", epoch.Add(48*time.Hour))

	_, err := repo.Claim(ctx, "old-claimed", alice, epoch.Add(time.Minute))
	require.NoError(t, err)

	n, err := repo.PurgePending(ctx, epoch.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got := exportByToken(t, repo)
	assert.NotContains(t, got, "old-pending")
	assert.Contains(t, got, "old-claimed")
	assert.Contains(t, got, "new-pending")

	// A purged token behaves like one that never existed.
	res, err := repo.Claim(ctx, "old-pending", bob, epoch.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, repository.ClaimNotFound, res)
}

func testBotStarts(t *testing.T, repo repository.ClickRepository) {
	ctx := context.Background()

	first := &model.BotStart{UpdateID: 10, Payload: "ig_forged", Identity: bob, ReceivedAt: epoch}
	stored, err := repo.RecordBotStart(ctx, first)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.NotEmpty(t, first.ID, "an ID is assigned")

	second := &model.BotStart{Payload: "", Identity: alice, ReceivedAt: epoch.Add(time.Minute)}
	stored, err = repo.RecordBotStart(ctx, second)
	require.NoError(t, err)
	assert.True(t, stored)

	starts, err := repo.BotStarts(ctx)
	require.NoError(t, err)
	require.Len(t, starts, 2)
	assert.Equal(t, "ig_forged", starts[0].Payload)
	assert.Equal(t, bob, starts[0].Identity)
	assert.True(t, starts[0].ReceivedAt.Equal(epoch))
	assert.Equal(t, int64(10), starts[0].UpdateID)
	assert.Equal(t, alice, starts[1].Identity)
	assert.Zero(t, starts[1].UpdateID)

	// Bot starts never show up as clicks.
	clicks, err := repo.Export(ctx)
	require.NoError(t, err)
	assert.Empty(t, clicks)
}

func testBotStartRedelivery(t *testing.T, repo repository.ClickRepository) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		stored, err := repo.RecordBotStart(ctx, &model.BotStart{
			UpdateID:   555,
			Payload:    "forgedtoken",
			Identity:   bob,
			ReceivedAt: epoch.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		assert.Equal(t, i == 0, stored, "delivery %d", i+1)
	}

	// Starts without an update id are never deduplicated.
	for i := 0; i < 2; i++ {
		stored, err := repo.RecordBotStart(ctx, &model.BotStart{Payload: "forgedtoken", Identity: bob, ReceivedAt: epoch.Add(time.Minute)})
		require.NoError(t, err)
		assert.True(t, stored)
	}

	starts, err := repo.BotStarts(ctx)
	require.NoError(t, err)
	require.Len(t, starts, 3)
	assert.Equal(t, int64(555), starts[0].UpdateID)
	assert.True(t, starts[0].ReceivedAt.Equal(epoch), "the first delivery is the one kept")
}
