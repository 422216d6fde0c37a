package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	SearchRequests     atomic.Int64
	StrategiesRun      atomic.Int64
	StrategyErrors     atomic.Int64
	UpstreamRequests   atomic.Int64
	UpstreamErrors     atomic.Int64
	FallbackServed     atomic.Int64
	ProxyCacheHits     atomic.Int64
	ProxyNetworkServed atomic.Int64
	ProxyOffline       atomic.Int64
	AlertsTriggered    atomic.Int64
	SchedulerRuns      atomic.Int64
}

var metricsCache atomic.Pointer[Cache]

// TrackCache makes FormatMetrics report hit/miss counters of c.
func TrackCache(c *Cache) { metricsCache.Store(c) }

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := metricsCache.Load().Stats()
	return map[string]int64{
		"search_requests":      metrics.SearchRequests.Load(),
		"strategies_run":       metrics.StrategiesRun.Load(),
		"strategy_errors":      metrics.StrategyErrors.Load(),
		"upstream_requests":    metrics.UpstreamRequests.Load(),
		"upstream_errors":      metrics.UpstreamErrors.Load(),
		"fallback_served":      metrics.FallbackServed.Load(),
		"proxy_cache_hits":     metrics.ProxyCacheHits.Load(),
		"proxy_network_served": metrics.ProxyNetworkServed.Load(),
		"proxy_offline":        metrics.ProxyOffline.Load(),
		"alerts_triggered":     metrics.AlertsTriggered.Load(),
		"scheduler_runs":       metrics.SchedulerRuns.Load(),
		"cache_hits":           hits,
		"cache_misses":         misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	keys := []string{
		"search_requests", "strategies_run", "strategy_errors",
		"upstream_requests", "upstream_errors", "fallback_served",
		"proxy_cache_hits", "proxy_network_served", "proxy_offline",
		"alerts_triggered", "scheduler_runs",
		"cache_hits", "cache_misses",
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for jobs/ sub-package.
func IncrSearchRequests()   { metrics.SearchRequests.Add(1) }
func IncrStrategiesRun()    { metrics.StrategiesRun.Add(1) }
func IncrStrategyErrors()   { metrics.StrategyErrors.Add(1) }
func IncrUpstreamRequests() { metrics.UpstreamRequests.Add(1) }
func IncrUpstreamErrors()   { metrics.UpstreamErrors.Add(1) }
func IncrFallbackServed()   { metrics.FallbackServed.Add(1) }
func IncrAlertsTriggered()  { metrics.AlertsTriggered.Add(1) }

// Incrementors for proxy/ and scheduler/.
func IncrProxyCacheHits()     { metrics.ProxyCacheHits.Add(1) }
func IncrProxyNetworkServed() { metrics.ProxyNetworkServed.Add(1) }
func IncrProxyOffline()       { metrics.ProxyOffline.Add(1) }
func IncrSchedulerRuns()      { metrics.SchedulerRuns.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
