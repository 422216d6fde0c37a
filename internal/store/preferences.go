package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anatolykoptev/joblens/internal/engine"
)

// Storage keys, shared with the original front-end's localStorage layout.
const (
	KeyPreferences        = "userPreferences"
	KeySavedJobs          = "savedJobs"
	KeyUserName           = "userName"
	KeyTheme              = "theme"
	KeyRememberedUsername = "rememberedUsername"
	KeyJobAlerts          = "jobAlerts"
	KeyAlertMatches       = "alertMatches"
)

// ErrUnknownSetting is returned by SetSetting for keys outside the settings set.
var ErrUnknownSetting = errors.New("store: unknown setting")

var settingKeys = map[string]bool{
	KeyUserName:           true,
	KeyTheme:              true,
	KeyRememberedUsername: true,
}

// PreferenceStore reads and writes the profile. Reads never fail: missing or
// malformed values come back as nil/empty and are logged.
type PreferenceStore struct {
	kv       KV
	validate *validator.Validate
	now      func() time.Time

	mu sync.Mutex // serializes read-modify-write of savedJobs
}

// NewPreferenceStore wraps kv.
func NewPreferenceStore(kv KV) *PreferenceStore {
	return &PreferenceStore{kv: kv, validate: validator.New(), now: time.Now}
}

// Load returns the stored preferences, or nil when none are stored or the value is unusable.
func (s *PreferenceStore) Load(ctx context.Context) *engine.Preferences {
	var p engine.Preferences
	if !s.readJSON(ctx, KeyPreferences, &p) {
		return nil
	}
	p = Normalize(p)
	if err := s.validate.Struct(p); err != nil {
		slog.Warn("store: stored preferences invalid, ignoring", slog.Any("error", err))
		return nil
	}
	return &p
}

// Save coerces, validates and persists p. CompletedAt defaults to now.
func (s *PreferenceStore) Save(ctx context.Context, p engine.Preferences) error {
	p = Normalize(p)
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("preferences: invalid: %w", err)
	}
	if p.CompletedAt.IsZero() {
		p.CompletedAt = s.now().UTC()
	}
	return s.writeJSON(ctx, KeyPreferences, p)
}

// Clear removes stored preferences.
func (s *PreferenceStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyPreferences); err != nil {
		return fmt.Errorf("preferences: clear: %w", err)
	}
	return nil
}

// Normalize trims, lowercases and dedupes skills, drops unknown interests
// and defaults the location to "anywhere".
func Normalize(p engine.Preferences) engine.Preferences {
	seen := make(map[string]bool, len(p.Skills))
	skills := make([]string, 0, len(p.Skills))
	for _, sk := range p.Skills {
		sk = strings.ToLower(strings.TrimSpace(sk))
		if sk == "" || seen[sk] {
			continue
		}
		seen[sk] = true
		skills = append(skills, sk)
	}
	p.Skills = skills

	interests := make([]engine.Industry, 0, len(p.Interests))
	seenInd := make(map[engine.Industry]bool, len(p.Interests))
	for _, raw := range p.Interests {
		ind, err := engine.ParseIndustry(strings.ToLower(strings.TrimSpace(string(raw))))
		if err != nil {
			slog.Warn("store: dropping unknown interest", slog.String("interest", string(raw)))
			continue
		}
		if !seenInd[ind] {
			seenInd[ind] = true
			interests = append(interests, ind)
		}
	}
	p.Interests = interests

	p.Location = strings.ToLower(strings.TrimSpace(p.Location))
	if p.Location == "" {
		p.Location = engine.LocationAnywhere
	}
	p.WorkType = engine.WorkType(strings.ToLower(strings.TrimSpace(string(p.WorkType))))
	p.WorkArrangement = strings.ToLower(strings.TrimSpace(p.WorkArrangement))
	return p
}

// LoadSavedJobs returns the saved job list (empty when absent or malformed).
func (s *PreferenceStore) LoadSavedJobs(ctx context.Context) []engine.Job {
	var jobs []engine.Job
	if !s.readJSON(ctx, KeySavedJobs, &jobs) || jobs == nil {
		return []engine.Job{}
	}
	return jobs
}

// SaveSavedJobs replaces the saved job list.
func (s *PreferenceStore) SaveSavedJobs(ctx context.Context, jobs []engine.Job) error {
	if jobs == nil {
		jobs = []engine.Job{}
	}
	return s.writeJSON(ctx, KeySavedJobs, jobs)
}

// SaveJob appends job unless a job with the same id is already saved.
func (s *PreferenceStore) SaveJob(ctx context.Context, job engine.Job) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.LoadSavedJobs(ctx)
	for _, j := range saved {
		if j.ID == job.ID {
			return false, nil
		}
	}
	if err := s.SaveSavedJobs(ctx, append(saved, job)); err != nil {
		return false, err
	}
	return true, nil
}

// UnsaveJob removes the saved job with id.
func (s *PreferenceStore) UnsaveJob(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.LoadSavedJobs(ctx)
	kept := saved[:0]
	for _, j := range saved {
		if j.ID != id {
			kept = append(kept, j)
		}
	}
	if len(kept) == len(saved) {
		return false, nil
	}
	if err := s.SaveSavedJobs(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

// IsSaved reports whether a job id is in the saved list.
func (s *PreferenceStore) IsSaved(ctx context.Context, id string) bool {
	for _, j := range s.LoadSavedJobs(ctx) {
		if j.ID == id {
			return true
		}
	}
	return false
}

// Setting returns a string setting (theme, userName, rememberedUsername); "" when unset.
func (s *PreferenceStore) Setting(ctx context.Context, key string) string {
	var v string
	s.readJSON(ctx, key, &v)
	return v
}

// SetSetting stores a string setting.
func (s *PreferenceStore) SetSetting(ctx context.Context, key, value string) error {
	if !settingKeys[key] {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	return s.writeJSON(ctx, key, value)
}

// AlertSettings returns the alert toggles; all off when unset.
func (s *PreferenceStore) AlertSettings(ctx context.Context) engine.AlertSettings {
	var a engine.AlertSettings
	s.readJSON(ctx, KeyJobAlerts, &a)
	return a
}

// SaveAlertSettings persists the alert toggles.
func (s *PreferenceStore) SaveAlertSettings(ctx context.Context, a engine.AlertSettings) error {
	return s.writeJSON(ctx, KeyJobAlerts, a)
}

// AlertMatches returns the matches from the last alert evaluation.
func (s *PreferenceStore) AlertMatches(ctx context.Context) []engine.AlertMatch {
	var m []engine.AlertMatch
	if !s.readJSON(ctx, KeyAlertMatches, &m) || m == nil {
		return []engine.AlertMatch{}
	}
	return m
}

// SaveAlertMatches replaces the stored alert matches.
func (s *PreferenceStore) SaveAlertMatches(ctx context.Context, m []engine.AlertMatch) error {
	if m == nil {
		m = []engine.AlertMatch{}
	}
	return s.writeJSON(ctx, KeyAlertMatches, m)
}

// readJSON decodes key into v. Returns false on a miss, a storage error or malformed JSON.
func (s *PreferenceStore) readJSON(ctx context.Context, key string, v any) bool {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		slog.Warn("store: read failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("store: malformed value, treating as absent", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

func (s *PreferenceStore) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}
