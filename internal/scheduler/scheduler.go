// Package scheduler periodically refreshes the stored search and evaluates job alerts.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/anatolykoptev/joblens/internal/engine"
	"github.com/anatolykoptev/joblens/internal/engine/jobs"
)

// Searcher is the aggregation surface the refresh needs.
type Searcher interface {
	Invalidate(ctx context.Context, prefs *engine.Preferences)
	Run(ctx context.Context, prefs *engine.Preferences, maxJobs int) jobs.SearchResult
}

// Store supplies preferences and alert settings and keeps alert matches.
type Store interface {
	Load(ctx context.Context) *engine.Preferences
	AlertSettings(ctx context.Context) engine.AlertSettings
	SaveAlertMatches(ctx context.Context, m []engine.AlertMatch) error
}

// Scheduler wraps robfig/cron and manages the refresh loop.
type Scheduler struct {
	cron     *cron.Cron
	searcher Searcher
	store    Store
	maxJobs  int
	spec     string // cron spec, e.g. "@every 6h"

	mu sync.Mutex // one refresh at a time
}

// New creates a Scheduler that fires every intervalHours hours.
func New(searcher Searcher, store Store, intervalHours, maxJobs int) *Scheduler {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger))),
		searcher: searcher,
		store:    store,
		maxJobs:  maxJobs,
		spec:     fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. One refresh also runs
// immediately so alerts are evaluated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Refresh(ctx) }); err != nil {
		return fmt.Errorf("scheduler: add %q: %w", s.spec, err)
	}
	s.cron.Start()
	slog.Info("scheduler: started", slog.String("spec", s.spec))

	go s.Refresh(ctx)
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler: stopped")
}

// Refresh re-runs the aggregation for the stored preferences, bypassing the
// cache, then stores the jobs that trip an enabled alert.
func (s *Scheduler) Refresh(ctx context.Context) []engine.AlertMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine.IncrSchedulerRuns()

	prefs := s.store.Load(ctx)
	s.searcher.Invalidate(ctx, prefs)
	res := s.searcher.Run(ctx, prefs, s.maxJobs)
	if ctx.Err() != nil {
		return nil
	}

	settings := s.store.AlertSettings(ctx)
	if !settings.RemoteDesign && !settings.HighMatch && !settings.Skills {
		slog.Debug("scheduler: refresh complete, alerts disabled", slog.Int("jobs", len(res.Jobs)))
		return nil
	}
	if res.Fallback {
		slog.Info("scheduler: refresh served sample data, alerts skipped")
		return nil
	}

	matches := jobs.EvaluateAlerts(res.Jobs, prefs, settings)
	if err := s.store.SaveAlertMatches(ctx, matches); err != nil {
		slog.Warn("scheduler: save alert matches", slog.Any("error", err))
	}
	if len(matches) > 0 {
		for range matches {
			engine.IncrAlertsTriggered()
		}
		slog.Info("scheduler: new job matches found", slog.Int("matches", len(matches)), slog.Int("jobs", len(res.Jobs)))
	}
	return matches
}
