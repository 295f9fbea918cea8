// Package storage picks a Click Store backend from a DSN.
package storage

import (
	"fmt"
	"strings"

	"github.com/sakif/clicktrail/internal/repository"
	"github.com/sakif/clicktrail/internal/repository/memory"
	"github.com/sakif/clicktrail/internal/repository/postgres"
	"github.com/sakif/clicktrail/internal/repository/sqlite"
)

// Backend names, as reported by Kind and logged at startup.
const (
	KindPostgres = "postgres"
	KindLibSQL   = "libsql"
	KindSQLite   = "sqlite"
	KindMemory   = "memory"
)

// Kind classifies dsn without opening it:
//
//	postgres://… postgresql://…                → postgres
//	libsql://… wss://… ws://… https://… http://… → libsql
//	memory:                                    → memory
//	anything else (a path, ":memory:")         → sqlite
func Kind(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return KindPostgres
	case sqlite.IsRemoteDSN(dsn):
		return KindLibSQL
	case dsn == "memory:":
		return KindMemory
	default:
		return KindSQLite
	}
}

// Open returns the backend for dsn with its schema migrated.
func Open(dsn string) (repository.ClickRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("storage: empty DSN")
	}

	switch Kind(dsn) {
	case KindPostgres:
		db, err := postgres.New(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case KindMemory:
		return memory.New(), nil
	default:
		db, err := sqlite.New(dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

// Redact hides credentials in dsn for logging.
func Redact(dsn string) string {
	if i := strings.Index(dsn, "authToken="); i >= 0 {
		dsn = dsn[:i] + "authToken=REDACTED"
	}
	if scheme := strings.Index(dsn, "://"); scheme >= 0 {
		rest := dsn[scheme+3:]
		if at := strings.LastIndex(rest, "@"); at >= 0 {
			if colon := strings.Index(rest[:at], ":"); colon >= 0 {
				dsn = dsn[:scheme+3] + rest[:colon] + ":REDACTED" + rest[at:]
			}
		}
	}
	return dsn
}
