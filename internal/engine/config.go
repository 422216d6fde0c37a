package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
// Components receive the values they need through their constructors;
// nothing reads a package-level copy.
type Config struct {
	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string // "za", "gb", "us", …
	AdzunaBaseURL string // override for tests; default https://api.adzuna.com/v1/api/jobs
	FetchTimeout  time.Duration

	RedisURL             string // empty = L1 only
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	DatabaseURL string // postgres://… or a SQLite file path; empty = ~/.joblens/joblens.db

	StrategyDelay       time.Duration // minimum spacing between upstream calls
	StrategyConcurrency int           // worker pool size; 1 = strictly sequential
	MaxStrategies       int
	MaxJobs             int

	ProxyPort    string
	OriginURL    string   // static front-end origin served through the proxy
	CacheVersion string   // proxy partition version tag, e.g. "v1.2"
	StaticAssets []string // install-time manifest; empty = DefaultStaticAssets

	FallbackJobsPath     string // optional JSON file used when every source fails
	RefreshIntervalHours int    // 0 disables the scheduler

	HTTPClient *http.Client
}

// Defaults fills zero values with the documented defaults.
func (c Config) Defaults() Config {
	if c.AdzunaCountry == "" {
		c.AdzunaCountry = "za"
	}
	if c.AdzunaBaseURL == "" {
		c.AdzunaBaseURL = "https://api.adzuna.com/v1/api/jobs"
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 15 * time.Minute
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 1000
	}
	if c.CacheCleanupInterval <= 0 {
		c.CacheCleanupInterval = 5 * time.Minute
	}
	if c.StrategyDelay <= 0 {
		c.StrategyDelay = 200 * time.Millisecond
	}
	if c.StrategyConcurrency <= 0 {
		c.StrategyConcurrency = 1
	}
	if c.MaxStrategies <= 0 {
		c.MaxStrategies = 8
	}
	if c.MaxJobs <= 0 {
		c.MaxJobs = 100
	}
	if c.ProxyPort == "" {
		c.ProxyPort = "8892"
	}
	if c.CacheVersion == "" {
		c.CacheVersion = "v1.2"
	}
	if len(c.StaticAssets) == 0 {
		c.StaticAssets = DefaultStaticAssets
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.FetchTimeout}
	}
	return c
}

// DefaultStaticAssets is the install-time manifest of the JobLens front-end.
var DefaultStaticAssets = []string{
	"/",
	"/index.html",
	"/pages/questionnaire.html",
	"/pages/results.html",
	"/pages/dashboard.html",
	"/pages/about.html",
	"/css/base.css",
	"/css/landing.css",
	"/css/questionnaire.css",
	"/css/results.css",
	"/css/dashboard.css",
	"/css/about.css",
	"/js/questionnaire.js",
	"/js/results.js",
	"/js/dashboard.js",
	"/js/theme.js",
	"/js/job-api.js",
	"/assets/logo.jpeg",
	"/assets/jobs.json",
}
