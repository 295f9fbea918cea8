package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/clicktrail/internal/apperror"
	"github.com/sakif/clicktrail/internal/model"
	"github.com/sakif/clicktrail/internal/repository"
)

// compile-time check that *DB implements repository.ClickRepository
var _ repository.ClickRepository = (*DB)(nil)

// CreatePending inserts a new pending click.
//
// ON CONFLICT DO NOTHING + RowsAffected:
// A duplicate token leaves the existing row untouched and affects zero rows.
// That is detected without parsing driver-specific constraint errors and is
// reported as apperror.ErrDuplicateToken.
func (db *DB) CreatePending(ctx context.Context, token string, source model.SourceMetadata, at time.Time) (*model.Click, error) {
	at = at.UTC().Truncate(time.Microsecond)

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO clicks (token, state, created_at, ip, user_agent, referrer)
		 VALUES (?, 'pending', ?, ?, ?, ?)
		 ON CONFLICT (token) DO NOTHING`,
		token,
		at.UnixMicro(),
		source.IP,
		source.UserAgent,
		source.Referrer,
	)
	if err != nil {
		return nil, unavailable(fmt.Errorf("sqlite: creating click %s: %w", token, err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, unavailable(fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n == 0 {
		return nil, apperror.DuplicateToken(token)
	}

	return &model.Click{
		Token:     token,
		State:     model.StatePending,
		CreatedAt: at,
		Source:    source,
	}, nil
}

// Claim transitions a pending click to claimed.
//
// THE CONDITIONAL UPDATE IS THE CLAIM:
// "WHERE token = ? AND state = 'pending'" makes lookup and transition a single
// statement. When two deliveries race, the database applies one UPDATE first;
// the second then finds state = 'claimed' and affects zero rows.
//
// Only after a zero-row UPDATE do we read the row, and only to tell
// AlreadyClaimed from NotFound. Claimed is terminal, so that read cannot see a
// state that would change the answer.
//
// MAX(?, created_at) keeps claimed_at >= created_at even if the clock of the
// process handling the webhook lags the one that handled the redirect.
func (db *DB) Claim(ctx context.Context, token string, identity model.Identity, at time.Time) (repository.ClaimResult, error) {
	if !identity.Valid() {
		return 0, apperror.ValidationFailed("identity", "platform user id is required to claim a click")
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE clicks
		 SET state = 'claimed',
		     claimed_at = MAX(?, created_at),
		     platform_user_id = ?,
		     platform_username = ?,
		     first_name = ?,
		     last_name = ?
		 WHERE token = ? AND state = 'pending'`,
		at.UTC().UnixMicro(),
		identity.UserID,
		identity.Username,
		identity.FirstName,
		identity.LastName,
		token,
	)
	if err != nil {
		return 0, unavailable(fmt.Errorf("sqlite: claiming click %s: %w", token, err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable(fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n == 1 {
		return repository.ClaimClaimed, nil
	}

	var state string
	err = db.conn.QueryRowContext(ctx,
		`SELECT state FROM clicks WHERE token = ?`, token,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ClaimNotFound, nil
	}
	if err != nil {
		return 0, unavailable(fmt.Errorf("sqlite: probing click %s: %w", token, err))
	}

	return repository.ClaimAlreadyClaimed, nil
}

// Export returns every click, oldest first.
func (db *DB) Export(ctx context.Context) ([]model.Click, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT token, state, created_at, claimed_at,
		        platform_user_id, platform_username, first_name, last_name,
		        ip, user_agent, referrer
		 FROM clicks
		 ORDER BY created_at ASC, token ASC`,
	)
	if err != nil {
		return nil, unavailable(fmt.Errorf("sqlite: exporting clicks: %w", err))
	}
	defer rows.Close()

	clicks := make([]model.Click, 0, 64)
	for rows.Next() {
		c, err := scanClick(rows)
		if err != nil {
			return nil, unavailable(fmt.Errorf("sqlite: scanning click row: %w", err))
		}
		if !c.State.Valid() {
			return nil, fmt.Errorf("sqlite: click %s has unknown state %q", c.Token, c.State)
		}
		clicks = append(clicks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(fmt.Errorf("sqlite: iterating clicks: %w", err))
	}

	return clicks, nil
}

// PurgePending deletes abandoned pending clicks. The state predicate keeps
// claimed rows out of reach regardless of the cutoff.
func (db *DB) PurgePending(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM clicks WHERE state = 'pending' AND created_at < ?`,
		olderThan.UTC().UnixMicro(),
	)
	if err != nil {
		return 0, unavailable(fmt.Errorf("sqlite: purging pending clicks: %w", err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable(fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	return n, nil
}

// scanClick reads one clicks row in Export's column order.
func scanClick(rows *sql.Rows) (model.Click, error) {
	var (
		c         model.Click
		state     string
		createdAt int64
		claimedAt sql.NullInt64
		userID    sql.NullInt64
		username  sql.NullString
		firstName sql.NullString
		lastName  sql.NullString
	)

	if err := rows.Scan(
		&c.Token, &state, &createdAt, &claimedAt,
		&userID, &username, &firstName, &lastName,
		&c.Source.IP, &c.Source.UserAgent, &c.Source.Referrer,
	); err != nil {
		return model.Click{}, err
	}

	c.State = model.ClickState(state)
	c.CreatedAt = time.UnixMicro(createdAt).UTC()

	if claimedAt.Valid {
		t := time.UnixMicro(claimedAt.Int64).UTC()
		c.ClaimedAt = &t
	}
	if userID.Valid {
		c.Identity = &model.Identity{
			UserID:    userID.Int64,
			Username:  username.String,
			FirstName: firstName.String,
			LastName:  lastName.String,
		}
	}

	return c, nil
}
