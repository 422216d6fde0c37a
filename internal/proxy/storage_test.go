package proxy

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/joblens/internal/store"
)

func newSQLStorage(t *testing.T, path string) *SQLStorage {
	t.Helper()
	db, err := store.OpenSQLiteDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := NewSQLStorage(db)
	require.NoError(t, err)
	return s
}

func testStorages(t *testing.T) map[string]Storage {
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": newSQLStorage(t, filepath.Join(t.TempDir(), "proxy.db")),
	}
}

func TestStorageContract(t *testing.T) {
	for name, s := range testStorages(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stored := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

			_, err := s.Get(ctx, "static-v1", "/")
			assert.ErrorIs(t, err, ErrMiss)

			e := Entry{
				Status:   200,
				Header:   http.Header{"Content-Type": {"text/html"}},
				Body:     []byte("<html></html>"),
				StoredAt: stored,
			}
			require.NoError(t, s.Put(ctx, "static-v1", "/", e))
			got, err := s.Get(ctx, "static-v1", "/")
			require.NoError(t, err)
			assert.Equal(t, 200, got.Status)
			assert.Equal(t, "text/html", got.Header.Get("Content-Type"))
			assert.Equal(t, "<html></html>", string(got.Body))
			assert.True(t, stored.Equal(got.StoredAt))

			require.NoError(t, s.PutAll(ctx, "dynamic-v1", map[string]Entry{
				"/a": {Status: 200, Body: []byte("a")},
				"/b": {Status: 200},
			}))
			keys, err := s.Keys(ctx, "dynamic-v1")
			require.NoError(t, err)
			assert.Equal(t, []string{"/a", "/b"}, keys)

			parts, err := s.Partitions(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"dynamic-v1", "static-v1"}, parts)

			require.NoError(t, s.DeletePartition(ctx, "static-v1"))
			_, err = s.Get(ctx, "static-v1", "/")
			assert.ErrorIs(t, err, ErrMiss)
			parts, _ = s.Partitions(ctx)
			assert.Equal(t, []string{"dynamic-v1"}, parts)
		})
	}
}

func TestMemoryStorageCopies(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	body := []byte("abc")
	require.NoError(t, s.Put(ctx, "p", "k", Entry{Status: 200, Body: body}))
	body[0] = 'X'

	got, err := s.Get(ctx, "p", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got.Body))
}

func TestSQLStorageSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.db")
	ctx := context.Background()

	first := newSQLStorage(t, path)
	require.NoError(t, first.Put(ctx, "static-v1.2", "/", Entry{Status: 200, Body: []byte("home")}))

	second := newSQLStorage(t, path)
	got, err := second.Get(ctx, "static-v1.2", "/")
	require.NoError(t, err)
	assert.Equal(t, "home", string(got.Body))
}

func TestProxyOnSQLStorage(t *testing.T) {
	s := newSQLStorage(t, filepath.Join(t.TempDir(), "proxy.db"))
	p, link, srv, _ := newTestProxy(t, s)
	require.NoError(t, p.Start(context.Background()))
	link.offline.Store(true)

	resp := get(t, p, srv.URL+"/index.html", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>index</html>", body(t, resp))
}
