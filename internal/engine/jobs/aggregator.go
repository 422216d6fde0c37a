package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/joblens/internal/engine"
)

// AggregatorOptions configures NewAggregator. Zero values take defaults.
type AggregatorOptions struct {
	Planner      *Planner
	Delay        time.Duration // minimum spacing between upstream calls (default 200ms)
	Concurrency  int           // worker pool size (default 1, strictly sequential)
	MaxJobs      int           // default cap when callers pass <= 0 (default 100)
	FallbackPath string        // optional JSON dataset; empty = embedded sample
}

// SearchResult is the outcome of one aggregation.
type SearchResult struct {
	Jobs       []engine.Job
	FromCache  bool
	Fallback   bool
	Strategies int // strategies executed; 0 on cache hit
}

// Aggregator runs diversified strategies against a Fetcher and memoizes the merged result.
// It owns the session's current job list.
type Aggregator struct {
	fetcher      Fetcher
	cache        *engine.Cache
	planner      *Planner
	limiter      *rate.Limiter
	concurrency  int
	maxJobs      int
	fallbackPath string

	mu      sync.RWMutex
	current []engine.Job
	keys    map[string]map[string]struct{} // prefs fingerprint → issued cache keys
}

// NewAggregator wires an aggregator. cache may be nil (no memoization).
func NewAggregator(fetcher Fetcher, cache *engine.Cache, opts AggregatorOptions) *Aggregator {
	if opts.Planner == nil {
		opts.Planner = NewPlanner(nil, 0)
	}
	if opts.Delay <= 0 {
		opts.Delay = 200 * time.Millisecond
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 100
	}
	return &Aggregator{
		fetcher:      fetcher,
		cache:        cache,
		planner:      opts.Planner,
		limiter:      rate.NewLimiter(rate.Every(opts.Delay), 1),
		concurrency:  opts.Concurrency,
		maxJobs:      opts.MaxJobs,
		fallbackPath: opts.FallbackPath,
		keys:         make(map[string]map[string]struct{}),
	}
}

// Search returns up to maxJobs unique jobs for prefs (nil = no preferences).
func (a *Aggregator) Search(ctx context.Context, prefs *engine.Preferences, maxJobs int) []engine.Job {
	return a.Run(ctx, prefs, maxJobs).Jobs
}

// Run is Search with cache/fallback status.
func (a *Aggregator) Run(ctx context.Context, prefs *engine.Preferences, maxJobs int) SearchResult {
	engine.IncrSearchRequests()
	if maxJobs <= 0 {
		maxJobs = a.maxJobs
	}

	fp := fingerprint(prefs)
	key := SearchCacheKey(prefs, maxJobs)

	if cached, ok := engine.LoadJSON[[]engine.Job](ctx, a.cache, key); ok {
		slog.Debug("aggregator: cache hit", slog.String("key", key), slog.Int("jobs", len(cached)))
		a.setCurrent(cached)
		return SearchResult{Jobs: cached, FromCache: true}
	}

	strategies := a.planner.Plan(prefs)
	merged, executed := a.execute(ctx, strategies, maxJobs)

	unique := Dedup(merged)
	if len(unique) > maxJobs {
		unique = unique[:maxJobs]
	}

	if len(unique) == 0 {
		engine.IncrFallbackServed()
		fb := LoadFallback(a.fallbackPath)
		slog.Warn("aggregator: no results from any strategy, serving fallback", slog.Int("strategies", executed), slog.Int("fallback", len(fb)))
		a.setCurrent(fb)
		return SearchResult{Jobs: fb, Fallback: true, Strategies: executed}
	}

	if ctx.Err() != nil {
		slog.Warn("aggregator: search interrupted, result not cached", slog.Int("jobs", len(unique)), slog.Int("strategies", executed), slog.Any("error", ctx.Err()))
		a.setCurrent(unique)
		return SearchResult{Jobs: unique, Strategies: executed}
	}

	if a.cache != nil {
		engine.StoreJSON(ctx, a.cache, key, unique)
		a.mu.Lock()
		if a.keys[fp] == nil {
			a.keys[fp] = make(map[string]struct{})
		}
		a.keys[fp][key] = struct{}{}
		a.mu.Unlock()
	}

	slog.Info("aggregator: search complete", slog.Int("jobs", len(unique)), slog.Int("raw", len(merged)), slog.Int("strategies", executed))
	a.setCurrent(unique)
	return SearchResult{Jobs: unique, Strategies: executed}
}

// execute runs strategies through the rate-limited pool and merges pages in strategy order.
// Launching stops once the accumulated count reaches maxJobs.
func (a *Aggregator) execute(ctx context.Context, strategies []engine.SearchStrategy, maxJobs int) ([]engine.Job, int) {
	pages := make([][]engine.Job, len(strategies))
	var total, executed atomic.Int64

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, s := range strategies {
		if total.Load() >= int64(maxJobs) || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Go blocks until a pool slot frees up, so earlier strategies
			// may have filled the quota by now.
			if total.Load() >= int64(maxJobs) {
				return nil
			}
			if err := a.limiter.Wait(ctx); err != nil {
				return nil
			}
			executed.Add(1)
			engine.IncrStrategiesRun()
			slog.Debug("aggregator: running strategy", slog.String("strategy", s.Description))

			jobs := a.fetcher.FetchPage(ctx, s.Params)
			if len(jobs) == 0 {
				engine.IncrStrategyErrors()
				slog.Warn("aggregator: strategy returned no jobs", slog.String("strategy", s.Description))
				return nil
			}
			pages[i] = jobs
			total.Add(int64(len(jobs)))
			return nil
		})
	}
	_ = g.Wait()

	var merged []engine.Job
	for _, p := range pages {
		merged = append(merged, p...)
	}
	return merged, int(executed.Load())
}

// Invalidate drops every cached aggregation issued for prefs.
func (a *Aggregator) Invalidate(ctx context.Context, prefs *engine.Preferences) {
	fp := fingerprint(prefs)
	a.mu.Lock()
	keys := a.keys[fp]
	delete(a.keys, fp)
	a.mu.Unlock()

	a.cache.Delete(ctx, SearchCacheKey(prefs, a.maxJobs))
	for k := range keys {
		a.cache.Delete(ctx, k)
	}
}

// Current returns a copy of the most recent result list.
func (a *Aggregator) Current() []engine.Job {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]engine.Job, len(a.current))
	copy(out, a.current)
	return out
}

// Lookup finds a job by id in the current result list.
func (a *Aggregator) Lookup(id string) (engine.Job, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, j := range a.current {
		if j.ID == id {
			return j, true
		}
	}
	return engine.Job{}, false
}

func (a *Aggregator) setCurrent(jobs []engine.Job) {
	a.mu.Lock()
	a.current = jobs
	a.mu.Unlock()
}

// Dedup keeps the first job per DedupKey. Idempotent.
func Dedup(jobs []engine.Job) []engine.Job {
	seen := make(map[string]bool, len(jobs))
	out := make([]engine.Job, 0, len(jobs))
	for _, j := range jobs {
		k := engine.DedupKey(j.Title, j.Company)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, j)
	}
	return out
}

// SearchCacheKey is deterministic for structurally equal prefs and maxJobs.
func SearchCacheKey(prefs *engine.Preferences, maxJobs int) string {
	return engine.CacheKey("search", fingerprint(prefs), strconv.Itoa(maxJobs))
}

// fingerprint serializes the fields that shape a search; the completion timestamp is ignored.
func fingerprint(prefs *engine.Preferences) string {
	if prefs == nil {
		return "none"
	}
	p := *prefs
	p.CompletedAt = time.Time{}
	data, err := json.Marshal(p)
	if err != nil {
		return "none"
	}
	return string(data)
}
