package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/joblens/internal/engine"
)

const sampleAdzunaJSON = `{
	"count": 2,
	"results": [
		{
			"id": "101",
			"title": "Go Developer",
			"description": "Backend work with <b>Docker</b> and Kubernetes. Hybrid.",
			"created": "2025-06-01T11:30:00Z",
			"redirect_url": "https://www.adzuna.co.za/details/101",
			"salary_min": 480000,
			"salary_max": 720000,
			"company": {"display_name": "Gopher Ltd"},
			"location": {"display_name": "Johannesburg, Gauteng"},
			"category": {"label": "IT Jobs", "tag": "it-jobs"}
		},
		{
			"id": "102",
			"title": "Nurse",
			"description": "Ward nurse",
			"created": "2025-05-20T12:00:00Z",
			"company": {"display_name": "Clinic"},
			"location": {"display_name": "Durban"},
			"category": {"label": "Healthcare & Nursing Jobs"}
		}
	]
}`

var fastRetry = engine.RetryConfig{MaxRetries: 0, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 1}

func newTestAdzuna(t *testing.T, h http.HandlerFunc) (*AdzunaClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewAdzunaClient(engine.Config{
		AdzunaAppID:   "id",
		AdzunaAppKey:  "key",
		AdzunaBaseURL: srv.URL,
		HTTPClient:    srv.Client(),
	}, WithRetryConfig(fastRetry), WithClock(func() time.Time { return refNow }))
	return c, srv
}

func TestSearchURL(t *testing.T) {
	c := NewAdzunaClient(engine.Config{AdzunaAppID: "app", AdzunaAppKey: "secret"})
	raw := c.SearchURL(engine.SearchParams{What: "react OR go", Where: "cape town", SalaryMin: 600000})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/v1/api/jobs/za/search/1", u.Path)
	q := u.Query()
	assert.Equal(t, "app", q.Get("app_id"))
	assert.Equal(t, "secret", q.Get("app_key"))
	assert.Equal(t, "20", q.Get("results_per_page"))
	assert.Equal(t, "application/json", q.Get("content-type"))
	assert.Equal(t, "react OR go", q.Get("what"))
	assert.Equal(t, "cape town", q.Get("where"))
	assert.Equal(t, "600000", q.Get("salary_min"))
	assert.False(t, q.Has("salary_max"))
	assert.False(t, q.Has("category"))
}

func TestFetchPage(t *testing.T) {
	var gotPath string
	c, _ := newTestAdzuna(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleAdzunaJSON))
	})

	jobs := c.FetchPage(context.Background(), engine.SearchParams{What: "go", Page: 2, ResultsPerPage: 25})
	require.Len(t, jobs, 2)
	assert.Equal(t, "/za/search/2", gotPath)

	j := jobs[0]
	assert.Equal(t, "adzuna_101", j.ID)
	assert.Equal(t, "Johannesburg", j.Location)
	assert.Equal(t, engine.WorkHybrid, j.WorkType)
	assert.Equal(t, []string{"docker", "kubernetes"}, j.Skills)
	assert.Equal(t, &engine.Salary{Min: 40000, Max: 60000}, j.Salary)
	assert.Equal(t, 100, j.FreshnessScore)

	assert.Equal(t, engine.IndustryHealthcare, jobs[1].Industry)
	assert.Nil(t, jobs[1].Salary)
	assert.Equal(t, 60, jobs[1].FreshnessScore)
}

func TestFetchPageFailuresYieldEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"not found", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"malformed json", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{oops")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestAdzuna(t, tt.handler)
			jobs := c.FetchPage(context.Background(), engine.SearchParams{What: "x"})
			assert.NotNil(t, jobs)
			assert.Empty(t, jobs)
		})
	}
}

func TestFetchPageTransportError(t *testing.T) {
	var calls atomic.Int32
	c, srv := newTestAdzuna(t, func(w http.ResponseWriter, _ *http.Request) { calls.Add(1) })
	srv.Close()

	jobs := c.FetchPage(context.Background(), engine.SearchParams{})
	assert.Empty(t, jobs)
	assert.Zero(t, calls.Load())
}
