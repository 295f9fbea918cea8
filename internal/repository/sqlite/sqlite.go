// Package sqlite implements the Click Store on SQLite.
//
// TWO DRIVERS, ONE CODE PATH:
// A plain path or ":memory:" opens a local database through modernc.org/sqlite
// (pure Go, no CGo). A libsql://, wss:// or https:// URL opens a remote
// Turso/libSQL database through libsql-client-go. Both speak the same SQL
// dialect, so every query in this package serves both.
//
// SINGLE WRITER:
// The local database is opened with one pooled connection. Every statement
// the store issues is a point operation, so serializing them costs little and
// rules out SQLITE_BUSY under concurrent redirects and webhooks. It also makes
// ":memory:" behave: each new connection to ":memory:" would otherwise get its
// own empty database.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/clicktrail/internal/apperror"

	// Register the "libsql" driver for remote databases.
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	// Register the "sqlite" driver for local files.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.ClickRepository.
type DB struct {
	conn *sql.DB
}

// IsRemoteDSN reports whether dsn points at a libSQL server rather than a
// local file.
func IsRemoteDSN(dsn string) bool {
	for _, scheme := range []string{"libsql://", "wss://", "ws://", "https://", "http://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

// New opens the database behind dsn and runs migrations.
//
// dsn examples:
//   - "tracker.sqlite3"                         → local file
//   - ":memory:"                                → in-memory (tests)
//   - "libsql://clicks-acme.turso.io?authToken=…" → remote libSQL
func New(dsn string) (*DB, error) {
	remote := IsRemoteDSN(dsn)
	driver := "sqlite"
	if remote {
		driver = "libsql"
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if !remote {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if !remote {
		// WAL lets readers (exports) proceed while a write is in flight.
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Statements run one by one because the remote
// driver does not accept multi-statement scripts.
//
// Timestamps are stored as INTEGER unix microseconds: both drivers round-trip
// integers exactly, and ORDER BY created_at stays numeric.
//
// The CHECK constraint is the state/identity invariant expressed in SQL: a
// pending row has no claim data, a claimed row has all of it.
//
// bot_starts.update_id is UNIQUE so a redelivered update records nothing.
// NULL (no update id) is exempt. Databases created before the column existed
// get it added in place.
func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clicks (
			token             TEXT PRIMARY KEY,
			state             TEXT NOT NULL DEFAULT 'pending',
			created_at        INTEGER NOT NULL,
			claimed_at        INTEGER,
			platform_user_id  INTEGER,
			platform_username TEXT,
			first_name        TEXT,
			last_name         TEXT,
			ip                TEXT NOT NULL DEFAULT '',
			user_agent        TEXT NOT NULL DEFAULT '',
			referrer          TEXT NOT NULL DEFAULT '',
			CHECK (
				(state = 'pending' AND claimed_at IS NULL AND platform_user_id IS NULL
					AND platform_username IS NULL AND first_name IS NULL AND last_name IS NULL)
				OR
				(state = 'claimed' AND claimed_at IS NOT NULL AND claimed_at >= created_at
					AND platform_user_id IS NOT NULL AND platform_username IS NOT NULL
					AND first_name IS NOT NULL AND last_name IS NOT NULL)
			)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_created_at ON clicks(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_clicks_platform_user_id ON clicks(platform_user_id)`,
		`CREATE TABLE IF NOT EXISTS bot_starts (
			id                TEXT PRIMARY KEY,
			payload           TEXT NOT NULL,
			platform_user_id  INTEGER NOT NULL,
			platform_username TEXT NOT NULL DEFAULT '',
			first_name        TEXT NOT NULL DEFAULT '',
			last_name         TEXT NOT NULL DEFAULT '',
			received_at       INTEGER NOT NULL,
			update_id         INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bot_starts_received_at ON bot_starts(received_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("applying %q: %w", firstLine(stmt), err)
		}
	}

	if err := db.addColumn("bot_starts", "update_id", "INTEGER"); err != nil {
		return err
	}
	const uniqueUpdate = `CREATE UNIQUE INDEX IF NOT EXISTS idx_bot_starts_update_id ON bot_starts(update_id)`
	if _, err := db.conn.Exec(uniqueUpdate); err != nil {
		return fmt.Errorf("applying %q: %w", uniqueUpdate, err)
	}
	return nil
}

// addColumn adds column to table unless it is already there.
func (db *DB) addColumn(table, column, typ string) error {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.conn.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}

// unavailable marks a failed statement as a storage outage.
func unavailable(err error) error {
	return apperror.Unavailable("click store", err)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
