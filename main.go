// Command joblens is an offline-capable job search aggregation MCP server.
//
// Aggregates diversified Adzuna searches, ranks them against stored
// preferences and serves them through MCP tools. Upstream and front-end
// traffic goes through a versioned caching proxy so results stay available
// offline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/joblens/internal/engine"
	"github.com/anatolykoptev/joblens/internal/engine/jobs"
	"github.com/anatolykoptev/joblens/internal/jobserver"
	"github.com/anatolykoptev/joblens/internal/proxy"
	"github.com/anatolykoptev/joblens/internal/scheduler"
	"github.com/anatolykoptev/joblens/internal/store"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "joblens",
	Short:        "JobLens job search MCP server with an offline caching proxy",
	Long:         "JobLens aggregates job listings from several diversified upstream searches, ranks them against stored preferences and keeps them available offline through a versioned caching proxy.",
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() engine.Config {
	return engine.Config{
		AdzunaAppID:          env.Str("ADZUNA_APP_ID", ""),
		AdzunaAppKey:         env.Str("ADZUNA_APP_KEY", ""),
		AdzunaCountry:        env.Str("ADZUNA_COUNTRY", "za"),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 15*time.Second),
		RedisURL:             env.Str("REDIS_URL", ""),
		CacheTTL:             env.Duration("CACHE_TTL", 15*time.Minute),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		DatabaseURL:          env.Str("DATABASE_URL", ""),
		StrategyDelay:        env.Duration("STRATEGY_DELAY", 200*time.Millisecond),
		StrategyConcurrency:  env.Int("STRATEGY_CONCURRENCY", 1),
		MaxStrategies:        env.Int("MAX_STRATEGIES", jobs.MaxStrategies),
		MaxJobs:              env.Int("MAX_JOBS", 100),
		ProxyPort:            env.Str("PROXY_PORT", "8892"),
		OriginURL:            env.Str("ORIGIN_URL", ""),
		CacheVersion:         env.Str("CACHE_VERSION", "v1.2"),
		StaticAssets:         env.List("STATIC_ASSETS", ""),
		FallbackJobsPath:     env.Str("FALLBACK_JOBS_PATH", ""),
		RefreshIntervalHours: env.Int("REFRESH_INTERVAL_HOURS", 0),
	}.Defaults()
}

// app holds the wired components shared by serve and search.
type app struct {
	cfg        engine.Config
	cache      *engine.Cache
	proxy      *proxy.Proxy
	kv         store.KV
	prefs      *store.PreferenceStore
	aggregator *jobs.Aggregator
	closers    []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("shutdown: close failed", slog.Any("error", err))
		}
	}
}

// newApp wires cache, proxy, store and aggregator. The upstream HTTP client
// sends every request through the proxy.
func newApp(ctx context.Context, cfg engine.Config) (*app, error) {
	a := &app{cfg: cfg}

	a.cache = engine.NewCache(engine.CacheOptions{
		RedisURL:        cfg.RedisURL,
		TTL:             cfg.CacheTTL,
		MaxEntries:      cfg.CacheMaxEntries,
		CleanupInterval: cfg.CacheCleanupInterval,
	})
	engine.TrackCache(a.cache)
	a.closers = append(a.closers, a.cache.Close)

	p, err := newProxy(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.proxy = p

	a.kv, err = store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, a.kv.Close)
	a.prefs = store.NewPreferenceStore(a.kv)

	client := &http.Client{Timeout: cfg.FetchTimeout, Transport: a.proxy}
	upstream := jobs.NewAdzunaClient(engine.Config{
		AdzunaAppID:   cfg.AdzunaAppID,
		AdzunaAppKey:  cfg.AdzunaAppKey,
		AdzunaCountry: cfg.AdzunaCountry,
		AdzunaBaseURL: cfg.AdzunaBaseURL,
		FetchTimeout:  cfg.FetchTimeout,
		HTTPClient:    client,
	})
	if cfg.AdzunaAppID == "" || cfg.AdzunaAppKey == "" {
		slog.Warn("ADZUNA_APP_ID/ADZUNA_APP_KEY not set, searches will fall back to sample jobs")
	}

	a.aggregator = jobs.NewAggregator(upstream, a.cache, jobs.AggregatorOptions{
		Planner:      jobs.NewPlanner(nil, cfg.MaxStrategies),
		Delay:        cfg.StrategyDelay,
		Concurrency:  cfg.StrategyConcurrency,
		MaxJobs:      cfg.MaxJobs,
		FallbackPath: cfg.FallbackJobsPath,
	})
	return a, nil
}

// newProxy opens the persistent proxy storage and starts the proxy. Without
// ORIGIN_URL the manifest is empty and only upstream API traffic is cached.
// A failed install with no persisted copy of the same version leaves the proxy
// redundant; requests then go straight to the network.
func newProxy(ctx context.Context, cfg engine.Config, a *app) (*proxy.Proxy, error) {
	db, err := store.OpenSQLiteDB(store.DefaultPath("proxy.db"))
	if err != nil {
		return nil, fmt.Errorf("open proxy storage: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	storage, err := proxy.NewSQLStorage(db)
	if err != nil {
		return nil, err
	}

	origin, manifest := cfg.OriginURL, cfg.StaticAssets
	if origin == "" {
		origin, manifest = "http://localhost:"+cfg.ProxyPort, nil
	}
	var apiHosts []string
	if u, err := url.Parse(cfg.AdzunaBaseURL); err == nil && u.Host != "" {
		apiHosts = append(apiHosts, u.Hostname())
	}

	p, err := proxy.New(proxy.Options{
		Origin:    origin,
		APIHosts:  apiHosts,
		Version:   cfg.CacheVersion,
		Manifest:  manifest,
		Storage:   storage,
		Transport: &http.Transport{MaxIdleConns: 20, MaxIdleConnsPerHost: 10, IdleConnTimeout: 60 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	if err := p.Start(ctx); err != nil {
		slog.Warn("proxy: start failed, serving from network only", slog.Any("error", err))
	}
	return p, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	mcpPort := env.Str("MCP_PORT", "8891")

	slog.Info("starting joblens",
		slog.String("mcp_port", mcpPort),
		slog.String("proxy_port", cfg.ProxyPort),
		slog.String("version", version),
	)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.RefreshIntervalHours > 0 {
		sched := scheduler.New(a.aggregator, a.prefs, cfg.RefreshIntervalHours, cfg.MaxJobs)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	proxySrv := &http.Server{
		Addr:              ":" + cfg.ProxyPort,
		Handler:           proxyMux(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := proxySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("proxy: server failed", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = proxySrv.Shutdown(shutdownCtx)
	}()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "joblens",
		Version: version,
	}, nil)

	jobserver.RegisterTools(server, jobserver.Deps{
		Store:      a.prefs,
		Aggregator: a.aggregator,
		Proxy:      a.proxy,
		Cache:      a.cache,
		MaxJobs:    cfg.MaxJobs,
	})
	slog.Info("tools registered", slog.Int("count", jobserver.ToolCount))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "joblens",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		return err
	}
	return nil
}

// proxyMux serves /healthz and, when a front-end origin is configured, proxies everything else.
func proxyMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		st := a.proxy.Status(r.Context())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","proxy":%q,"online":%t,"version":%q}`, st.State, st.Online, st.Version)
	})
	if a.cfg.OriginURL != "" {
		mux.Handle("/", a.proxy)
	}
	return mux
}
