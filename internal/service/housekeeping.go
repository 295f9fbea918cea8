package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/clicktrail/internal/apperror"
	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
)

// Housekeeper removes abandoned pending clicks on operator request. Nothing
// in the server calls it; retention is a deliberate, manual action.
type Housekeeper struct {
	repo   repository.ClickRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewHousekeeper(repo repository.ClickRepository, logger *slog.Logger) *Housekeeper {
	return &Housekeeper{repo: repo, logger: logger, now: time.Now}
}

// PurgeResult reports what a purge did (or would do).
type PurgeResult struct {
	Cutoff  time.Time
	Matched int64
	DryRun  bool
}

// PurgePending deletes pending clicks older than olderThan. With dryRun it
// only counts them. A purged token behaves exactly like one never issued:
// a late start for it is Unknown.
func (h *Housekeeper) PurgePending(ctx context.Context, olderThan time.Duration, dryRun bool) (*PurgeResult, error) {
	if olderThan <= 0 {
		return nil, apperror.ValidationFailed("older_than", "duration must be positive")
	}
	cutoff := h.now().Add(-olderThan)
	res := &PurgeResult{Cutoff: cutoff, DryRun: dryRun}

	if dryRun {
		clicks, err := h.repo.Export(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting pending clicks: %w", err)
		}
		for _, c := range clicks {
			if c.State == model.StatePending && c.CreatedAt.Before(cutoff) {
				res.Matched++
			}
		}
		return res, nil
	}

	n, err := h.repo.PurgePending(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("purging pending clicks: %w", err)
	}
	res.Matched = n

	h.logger.Info("pending clicks purged",
		slog.Int64("deleted", n),
		slog.Time("cutoff", cutoff),
	)
	return res, nil
}
