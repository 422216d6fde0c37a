package proxy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ErrMiss is returned by Storage.Get when no entry exists.
var ErrMiss = errors.New("proxy: cache miss")

// Entry is one stored response.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Storage holds named cache partitions of keyed responses.
type Storage interface {
	Get(ctx context.Context, partition, key string) (Entry, error)
	Put(ctx context.Context, partition, key string, e Entry) error
	// PutAll stores every entry or none.
	PutAll(ctx context.Context, partition string, entries map[string]Entry) error
	Keys(ctx context.Context, partition string) ([]string, error)
	Partitions(ctx context.Context) ([]string, error)
	DeletePartition(ctx context.Context, partition string) error
}

// --- memory ---

// MemoryStorage keeps partitions in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	parts map[string]map[string]Entry
}

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{parts: make(map[string]map[string]Entry)}
}

func (m *MemoryStorage) Get(_ context.Context, partition, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.parts[partition][key]
	if !ok {
		return Entry{}, ErrMiss
	}
	return cloneEntry(e), nil
}

func (m *MemoryStorage) Put(_ context.Context, partition, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parts[partition] == nil {
		m.parts[partition] = make(map[string]Entry)
	}
	m.parts[partition][key] = cloneEntry(e)
	return nil
}

func (m *MemoryStorage) PutAll(_ context.Context, partition string, entries map[string]Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.parts[partition] == nil {
		m.parts[partition] = make(map[string]Entry, len(entries))
	}
	for k, e := range entries {
		m.parts[partition][k] = cloneEntry(e)
	}
	return nil
}

func (m *MemoryStorage) Keys(_ context.Context, partition string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.parts[partition]))
	for k := range m.parts[partition] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStorage) Partitions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.parts))
	for n := range m.parts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStorage) DeletePartition(_ context.Context, partition string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.parts, partition)
	return nil
}

func cloneEntry(e Entry) Entry {
	e.Header = e.Header.Clone()
	e.Body = append([]byte(nil), e.Body...)
	return e
}

// --- SQL (SQLite) ---

// SQLStorage persists partitions in a SQLite database so the cache survives restarts.
type SQLStorage struct {
	db *sql.DB
}

// NewSQLStorage creates the cache_entries table in db if needed.
func NewSQLStorage(db *sql.DB) (*SQLStorage, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_entries (
		cache_name TEXT NOT NULL,
		key        TEXT NOT NULL,
		status     INTEGER NOT NULL,
		header     TEXT NOT NULL,
		body       BLOB NOT NULL,
		stored_at  TEXT NOT NULL,
		PRIMARY KEY (cache_name, key)
	)`)
	if err != nil {
		return nil, fmt.Errorf("proxy storage: init schema: %w", err)
	}
	return &SQLStorage{db: db}, nil
}

const upsertEntry = `INSERT INTO cache_entries (cache_name, key, status, header, body, stored_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(cache_name, key) DO UPDATE SET
		status = excluded.status, header = excluded.header,
		body = excluded.body, stored_at = excluded.stored_at`

func (s *SQLStorage) Get(ctx context.Context, partition, key string) (Entry, error) {
	var (
		e        Entry
		header   string
		storedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, header, body, stored_at FROM cache_entries WHERE cache_name = ? AND key = ?`,
		partition, key,
	).Scan(&e.Status, &header, &e.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("proxy storage: get: %w", err)
	}
	if err := json.Unmarshal([]byte(header), &e.Header); err != nil {
		return Entry{}, fmt.Errorf("proxy storage: decode header: %w", err)
	}
	e.StoredAt, _ = time.Parse(time.RFC3339Nano, storedAt)
	return e, nil
}

func (s *SQLStorage) Put(ctx context.Context, partition, key string, e Entry) error {
	return s.PutAll(ctx, partition, map[string]Entry{key: e})
}

func (s *SQLStorage) PutAll(ctx context.Context, partition string, entries map[string]Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("proxy storage: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for key, e := range entries {
		header, err := json.Marshal(e.Header)
		if err != nil {
			return fmt.Errorf("proxy storage: encode header: %w", err)
		}
		body := e.Body
		if body == nil {
			body = []byte{}
		}
		if _, err := tx.ExecContext(ctx, upsertEntry,
			partition, key, e.Status, string(header), body, e.StoredAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("proxy storage: put %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("proxy storage: commit: %w", err)
	}
	return nil
}

func (s *SQLStorage) Keys(ctx context.Context, partition string) ([]string, error) {
	return s.strings(ctx, `SELECT key FROM cache_entries WHERE cache_name = ? ORDER BY key`, partition)
}

func (s *SQLStorage) Partitions(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT DISTINCT cache_name FROM cache_entries ORDER BY cache_name`)
}

func (s *SQLStorage) DeletePartition(ctx context.Context, partition string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_name = ?`, partition); err != nil {
		return fmt.Errorf("proxy storage: delete %s: %w", partition, err)
	}
	return nil
}

func (s *SQLStorage) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("proxy storage: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("proxy storage: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
