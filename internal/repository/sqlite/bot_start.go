package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/clicktrail/internal/model"
)

// RecordBotStart stores a start event that matched no click.
// An empty ID is filled with a fresh xid; ReceivedAt defaults to now.
//
// A repeated non-zero UpdateID hits the unique index, inserts nothing and
// reports false, the same ON CONFLICT + RowsAffected check CreatePending uses.
func (db *DB) RecordBotStart(ctx context.Context, start *model.BotStart) (bool, error) {
	if start.ID == "" {
		start.ID = xid.New().String()
	}
	if start.ReceivedAt.IsZero() {
		start.ReceivedAt = time.Now()
	}
	start.ReceivedAt = start.ReceivedAt.UTC().Truncate(time.Microsecond)

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO bot_starts (id, payload, platform_user_id, platform_username, first_name, last_name, received_at, update_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (update_id) DO NOTHING`,
		start.ID,
		start.Payload,
		start.Identity.UserID,
		start.Identity.Username,
		start.Identity.FirstName,
		start.Identity.LastName,
		start.ReceivedAt.UnixMicro(),
		updateID(start.UpdateID),
	)
	if err != nil {
		return false, unavailable(fmt.Errorf("sqlite: recording bot start (user=%d): %w", start.Identity.UserID, err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, unavailable(fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	return n == 1, nil
}

// updateID stores 0 as NULL so starts without an update id never collide.
func updateID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// BotStarts returns every recorded unattributed start, oldest first.
func (db *DB) BotStarts(ctx context.Context) ([]model.BotStart, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, payload, platform_user_id, platform_username, first_name, last_name, received_at, update_id
		 FROM bot_starts
		 ORDER BY received_at ASC, id ASC`,
	)
	if err != nil {
		return nil, unavailable(fmt.Errorf("sqlite: listing bot starts: %w", err))
	}
	defer rows.Close()

	var starts []model.BotStart
	for rows.Next() {
		var (
			s          model.BotStart
			receivedAt int64
			update     sql.NullInt64
		)
		if err := rows.Scan(
			&s.ID, &s.Payload,
			&s.Identity.UserID, &s.Identity.Username, &s.Identity.FirstName, &s.Identity.LastName,
			&receivedAt, &update,
		); err != nil {
			return nil, unavailable(fmt.Errorf("sqlite: scanning bot start row: %w", err))
		}
		s.ReceivedAt = time.UnixMicro(receivedAt).UTC()
		s.UpdateID = update.Int64
		starts = append(starts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(fmt.Errorf("sqlite: iterating bot starts: %w", err))
	}

	return starts, nil
}
