package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/joblens/internal/engine"
)

func newTestStore(t *testing.T) (*PreferenceStore, *SQLiteKV) {
	t.Helper()
	kv, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "joblens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return NewPreferenceStore(kv), kv
}

func TestSQLiteKV(t *testing.T) {
	_, kv := newTestStore(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
	require.NoError(t, kv.Set(ctx, "k", []byte("v2")))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	kv, err := Open(context.Background(), "")
	require.NoError(t, err)
	defer kv.Close()
	_, ok := kv.(*SQLiteKV)
	assert.True(t, ok)
}

func TestPreferencesRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.Nil(t, s.Load(ctx))

	err := s.Save(ctx, engine.Preferences{
		Skills:      []string{" Python ", "SQL", "python", ""},
		Interests:   []engine.Industry{"Technology", "astrology", "technology"},
		Location:    "Cape Town",
		SalaryRange: engine.SalaryRange{Min: 40000, Max: 60000},
		WorkType:    engine.WorkRemote,
	})
	require.NoError(t, err)

	p := s.Load(ctx)
	require.NotNil(t, p)
	assert.Equal(t, []string{"python", "sql"}, p.Skills)
	assert.Equal(t, []engine.Industry{engine.IndustryTechnology}, p.Interests)
	assert.Equal(t, "cape town", p.Location)
	assert.False(t, p.CompletedAt.IsZero())

	require.NoError(t, s.Clear(ctx))
	assert.Nil(t, s.Load(ctx))
}

func TestPreferencesEmptyLocation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, engine.Preferences{Skills: []string{"go"}}))
	assert.Equal(t, engine.LocationAnywhere, s.Load(ctx).Location)
}

func TestPreferencesValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		prefs engine.Preferences
	}{
		{"bad work type", engine.Preferences{WorkType: "moon"}},
		{"bad arrangement", engine.Preferences{WorkArrangement: "forever"}},
		{"inverted salary", engine.Preferences{SalaryRange: engine.SalaryRange{Min: 9000, Max: 100}}},
		{"negative salary", engine.Preferences{SalaryRange: engine.SalaryRange{Min: -1, Max: 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, s.Save(ctx, tt.prefs))
		})
	}
	assert.Nil(t, s.Load(ctx), "rejected preferences must not be stored")
}

func TestMalformedValuesAreAbsent(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, KeyPreferences, []byte("{not json")))
	require.NoError(t, kv.Set(ctx, KeySavedJobs, []byte(`"oops"`)))
	require.NoError(t, kv.Set(ctx, KeyAlertMatches, []byte(`[`)))

	assert.Nil(t, s.Load(ctx))
	assert.Empty(t, s.LoadSavedJobs(ctx))
	assert.NotNil(t, s.LoadSavedJobs(ctx))
	assert.Empty(t, s.AlertMatches(ctx))
}

func TestSaveUnsaveJob(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	job := engine.Job{ID: "adzuna_1", Title: "Go Developer", Company: "Acme"}

	added, err := s.SaveJob(ctx, job)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.SaveJob(ctx, job)
	require.NoError(t, err)
	assert.False(t, added, "duplicate id must be ignored")

	_, err = s.SaveJob(ctx, engine.Job{ID: "adzuna_2"})
	require.NoError(t, err)
	assert.Len(t, s.LoadSavedJobs(ctx), 2)
	assert.True(t, s.IsSaved(ctx, "adzuna_1"))

	removed, err := s.UnsaveJob(ctx, "adzuna_1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, s.IsSaved(ctx, "adzuna_1"))

	removed, err = s.UnsaveJob(ctx, "adzuna_1")
	require.NoError(t, err)
	assert.False(t, removed)

	saved := s.LoadSavedJobs(ctx)
	require.Len(t, saved, 1)
	assert.Equal(t, "adzuna_2", saved[0].ID)
}

func TestSettings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.Equal(t, "", s.Setting(ctx, KeyTheme))
	require.NoError(t, s.SetSetting(ctx, KeyTheme, "dark"))
	assert.Equal(t, "dark", s.Setting(ctx, KeyTheme))

	err := s.SetSetting(ctx, "password", "hunter2")
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestAlerts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.Equal(t, engine.AlertSettings{}, s.AlertSettings(ctx))
	want := engine.AlertSettings{HighMatch: true, Skills: true}
	require.NoError(t, s.SaveAlertSettings(ctx, want))
	assert.Equal(t, want, s.AlertSettings(ctx))

	m := []engine.AlertMatch{{Job: engine.Job{ID: "x"}, MatchScore: 90, Reasons: []string{"r"}}}
	require.NoError(t, s.SaveAlertMatches(ctx, m))
	assert.Equal(t, m, s.AlertMatches(ctx))
}
