package jobserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/joblens/internal/engine"
	"github.com/anatolykoptev/joblens/internal/engine/jobs"
	"github.com/anatolykoptev/joblens/internal/toolutil"
)

// jobSearchTool is not read-only: every call replaces the current result list
// and force_refresh drops cached aggregations.
func jobSearchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "job_search",
		Description: "Aggregate job listings from several diversified upstream searches, deduplicate them and rank them against the stored preferences (70% match score, 30% freshness). Returns ranked jobs with match scores, a live/cached/fresh status and a summary line. Works offline from cache or a sample dataset. force_refresh discards cached results first.",
	}
}

func registerJobSearch(server *mcp.Server, t *tools) {
	mcp.AddTool(server, jobSearchTool(), t.jobSearch)
}

func (t *tools) jobSearch(ctx context.Context, _ *mcp.CallToolRequest, input engine.JobSearchInput) (*mcp.CallToolResult, engine.JobSearchOutput, error) {
	opts, err := filterOptions(input)
	if err != nil {
		return nil, engine.JobSearchOutput{}, err
	}

	var prefs *engine.Preferences
	if !input.IgnorePrefs {
		prefs = t.Store.Load(ctx)
	}
	maxJobs := input.MaxJobs
	if maxJobs <= 0 {
		maxJobs = t.MaxJobs
	}
	if input.ForceRefresh {
		t.Aggregator.Invalidate(ctx, prefs)
	}

	var res jobs.SearchResult
	_ = engine.TrackOperation(ctx, "job_search", func(ctx context.Context) error {
		res = t.Aggregator.Run(ctx, prefs, maxJobs)
		return nil
	})
	ranked := jobs.Filter(jobs.Rank(res.Jobs, prefs), opts)
	status := jobs.Summarize(res.Jobs, res.FromCache)

	slog.Info("job_search: ranked",
		slog.Int("jobs", len(res.Jobs)),
		slog.Int("shown", len(ranked)),
		slog.Bool("cached", res.FromCache),
		slog.Bool("fallback", res.Fallback))

	summary := toolutil.StatusLine(status, res.Fallback)
	if len(ranked) != len(res.Jobs) {
		summary += fmt.Sprintf(" %d match the filters.", len(ranked))
	}
	return nil, engine.JobSearchOutput{
		Jobs:     ranked,
		Status:   status,
		Fallback: res.Fallback,
		Summary:  summary,
	}, nil
}

func filterOptions(input engine.JobSearchInput) (jobs.FilterOptions, error) {
	var opts jobs.FilterOptions
	if s := strings.ToLower(strings.TrimSpace(input.Industry)); s != "" {
		ind, err := engine.ParseIndustry(s)
		if err != nil {
			return opts, err
		}
		opts.Industry = ind
	}
	if s := strings.ToLower(strings.TrimSpace(input.WorkType)); s != "" {
		wt, err := engine.ParseWorkType(s)
		if err != nil {
			return opts, err
		}
		opts.WorkType = wt
	}
	if input.MinMatch < 0 || input.MinMatch > 100 {
		return opts, fmt.Errorf("min_match must be between 0 and 100, got %d", input.MinMatch)
	}
	opts.MinMatch = input.MinMatch
	return opts, nil
}
