package jobserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/joblens/internal/engine"
	"github.com/anatolykoptev/joblens/internal/proxy"
)

// CacheStatusOutput is the structured output for cache_status.
type CacheStatusOutput struct {
	Proxy        *proxy.Status    `json:"proxy,omitempty"`
	CacheEntries int              `json:"cache_entries"`
	CacheHits    int64            `json:"cache_hits"`
	CacheMisses  int64            `json:"cache_misses"`
	Metrics      map[string]int64 `json:"metrics"`
}

func registerCacheStatus(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "cache_status",
		Description: "Report the offline proxy state (lifecycle, version, online/offline, cached entries per partition), aggregation cache size and hit rate, and engine counters.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.cacheStatus)
}

func (t *tools) cacheStatus(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, CacheStatusOutput, error) {
	out := CacheStatusOutput{
		CacheEntries: t.Cache.Len(),
		Metrics:      engine.GetMetrics(),
	}
	out.CacheHits, out.CacheMisses = t.Cache.Stats()
	if t.Proxy != nil {
		st := t.Proxy.Status(ctx)
		out.Proxy = &st
	}
	return nil, out, nil
}
