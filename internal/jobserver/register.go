package jobserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/joblens/internal/engine"
	"github.com/anatolykoptev/joblens/internal/engine/jobs"
	"github.com/anatolykoptev/joblens/internal/proxy"
	"github.com/anatolykoptev/joblens/internal/store"
)

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 9

// Deps are the instances the tools operate on. Proxy and Cache may be nil.
type Deps struct {
	Store      *store.PreferenceStore
	Aggregator *jobs.Aggregator
	Proxy      *proxy.Proxy
	Cache      *engine.Cache
	MaxJobs    int
}

type tools struct {
	Deps
}

// RegisterTools registers the JobLens tools on the given MCP server:
// job_search, job_save, job_unsave, saved_jobs, preferences_get,
// preferences_set, setting_set, cache_status, job_alerts.
func RegisterTools(server *mcp.Server, deps Deps) {
	t := &tools{Deps: deps}

	registerJobSearch(server, t)
	registerSavedJobs(server, t)
	registerPreferences(server, t)
	registerCacheStatus(server, t)
	registerJobAlerts(server, t)
}
