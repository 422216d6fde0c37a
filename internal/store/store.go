// Package store persists per-profile state (preferences, saved jobs, settings)
// in a string-keyed JSON store backed by SQLite or PostgreSQL.
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// KV is a durable string-keyed byte store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open picks a backend from dsn: postgres:// and postgresql:// URLs use pgx,
// anything else is a SQLite file path (empty = DefaultPath("joblens.db")).
func Open(ctx context.Context, dsn string) (KV, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn)
	}
	if dsn == "" {
		dsn = DefaultPath("joblens.db")
	}
	return OpenSQLite(dsn)
}

// DefaultPath returns ~/.joblens/<name>.
func DefaultPath(name string) string {
	return filepath.Join(os.Getenv("HOME"), ".joblens", name)
}
