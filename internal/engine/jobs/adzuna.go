package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/joblens/internal/engine"
)

const (
	defaultResultsPerPage = 20
	maxResponseBytes      = 4 * 1024 * 1024
)

// Fetcher runs one upstream query. Implementations never fail: errors yield an empty page.
type Fetcher interface {
	FetchPage(ctx context.Context, p engine.SearchParams) []engine.Job
}

// AdzunaClient queries the Adzuna job search API.
type AdzunaClient struct {
	appID   string
	appKey  string
	baseURL string // …/v1/api/jobs/<country>/search
	timeout time.Duration
	client  *http.Client
	retry   engine.RetryConfig
	now     func() time.Time
}

// AdzunaOption customizes an AdzunaClient.
type AdzunaOption func(*AdzunaClient)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(rc engine.RetryConfig) AdzunaOption {
	return func(c *AdzunaClient) { c.retry = rc }
}

// WithClock sets the reference clock used for freshness.
func WithClock(now func() time.Time) AdzunaOption {
	return func(c *AdzunaClient) { c.now = now }
}

// NewAdzunaClient builds a client from cfg. cfg.HTTPClient is used as-is so that
// callers can route it through the caching proxy.
func NewAdzunaClient(cfg engine.Config, opts ...AdzunaOption) *AdzunaClient {
	cfg = cfg.Defaults()
	c := &AdzunaClient{
		appID:   cfg.AdzunaAppID,
		appKey:  cfg.AdzunaAppKey,
		baseURL: strings.TrimRight(cfg.AdzunaBaseURL, "/") + "/" + url.PathEscape(cfg.AdzunaCountry) + "/search",
		timeout: cfg.FetchTimeout,
		client:  cfg.HTTPClient,
		retry:   engine.DefaultRetryConfig,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SearchURL builds the request URL for p.
func (c *AdzunaClient) SearchURL(p engine.SearchParams) string {
	page := p.Page
	if page <= 0 {
		page = 1
	}
	perPage := p.ResultsPerPage
	if perPage <= 0 {
		perPage = defaultResultsPerPage
	}

	q := url.Values{}
	q.Set("app_id", c.appID)
	q.Set("app_key", c.appKey)
	q.Set("results_per_page", strconv.Itoa(perPage))
	q.Set("content-type", "application/json")
	if p.What != "" {
		q.Set("what", p.What)
	}
	if p.Where != "" {
		q.Set("where", p.Where)
	}
	if p.SalaryMin > 0 {
		q.Set("salary_min", strconv.Itoa(p.SalaryMin))
	}
	if p.SalaryMax > 0 {
		q.Set("salary_max", strconv.Itoa(p.SalaryMax))
	}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	return c.baseURL + "/" + strconv.Itoa(page) + "?" + q.Encode()
}

// FetchPage runs one query and normalizes the results.
// Transport errors, non-2xx statuses and malformed bodies all yield an empty slice.
func (c *AdzunaClient) FetchPage(ctx context.Context, p engine.SearchParams) []engine.Job {
	engine.IncrUpstreamRequests()

	jobs, err := c.fetch(ctx, p)
	if err != nil {
		engine.IncrUpstreamErrors()
		slog.Warn("adzuna: fetch failed", slog.String("what", p.What), slog.String("where", p.Where), slog.Any("error", err))
		return []engine.Job{}
	}
	slog.Debug("adzuna: page fetched", slog.String("what", p.What), slog.Int("results", len(jobs)))
	return jobs
}

func (c *AdzunaClient) fetch(ctx context.Context, p engine.SearchParams) ([]engine.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	apiURL := c.SearchURL(p)
	resp, err := engine.RetryHTTP(ctx, c.retry, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		req.Header.Set("Accept", "application/json")
		return c.client.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("adzuna request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if engine.IsRetryableStatus(resp.StatusCode) {
			return nil, fmt.Errorf("adzuna API unavailable after %d retries: status %d", c.retry.MaxRetries, resp.StatusCode)
		}
		return nil, fmt.Errorf("adzuna API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("adzuna read: %w", err)
	}
	return parseAdzunaResponse(body, c.now())
}

// parseAdzunaResponse decodes an API body and normalizes every result.
func parseAdzunaResponse(body []byte, now time.Time) ([]engine.Job, error) {
	var data adzunaResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("adzuna parse error: %w", err)
	}
	jobs := make([]engine.Job, 0, len(data.Results))
	for _, r := range data.Results {
		jobs = append(jobs, normalize(r, now))
	}
	return jobs, nil
}
