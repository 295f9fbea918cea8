package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
	"github.com/sakif/clicktrail/internal/repository/repotest"
)

func TestContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.ClickRepository {
		return New()
	})
}

func TestExportReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreatePending(ctx, "abc123", model.SourceMetadata{}, time.Now())
	require.NoError(t, err)
	_, err = s.Claim(ctx, "abc123", model.Identity{UserID: 7, FirstName: "Ann"}, time.Now())
	require.NoError(t, err)

	clicks, err := s.Export(ctx)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	clicks[0].Identity.FirstName = "Mallory"
	clicks[0].State = model.StatePending

	again, err := s.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", again[0].Identity.FirstName)
	assert.Equal(t, model.StateClaimed, again[0].State)
}
