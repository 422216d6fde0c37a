package jobserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/joblens/internal/engine"
	"github.com/anatolykoptev/joblens/internal/engine/jobs"
)

func registerJobAlerts(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_alerts",
		Description: "Show or change job alert toggles (remote_design, high_match for 85%+ matches, skills) and list the jobs that tripped an alert. Omitted toggles are left unchanged. Alerts are evaluated against the latest search results and on every scheduled refresh.",
	}, t.jobAlerts)
}

func (t *tools) jobAlerts(ctx context.Context, _ *mcp.CallToolRequest, input engine.AlertsInput) (*mcp.CallToolResult, engine.AlertsOutput, error) {
	settings := t.Store.AlertSettings(ctx)
	changed := false
	for _, f := range []struct {
		in  *bool
		out *bool
	}{
		{input.RemoteDesign, &settings.RemoteDesign},
		{input.HighMatch, &settings.HighMatch},
		{input.Skills, &settings.Skills},
	} {
		if f.in != nil && *f.in != *f.out {
			*f.out = *f.in
			changed = true
		}
	}

	if !changed {
		return nil, engine.AlertsOutput{Settings: settings, Matches: t.Store.AlertMatches(ctx)}, nil
	}
	if err := t.Store.SaveAlertSettings(ctx, settings); err != nil {
		return nil, engine.AlertsOutput{}, err
	}

	matches := jobs.EvaluateAlerts(t.Aggregator.Current(), t.Store.Load(ctx), settings)
	if matches == nil {
		matches = []engine.AlertMatch{}
	}
	if err := t.Store.SaveAlertMatches(ctx, matches); err != nil {
		return nil, engine.AlertsOutput{}, err
	}
	return nil, engine.AlertsOutput{Settings: settings, Matches: matches}, nil
}
