package jobserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/joblens/internal/engine"
)

func registerPreferences(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "preferences_get",
		Description: "Return the stored job preferences (skills, interests, location, salary band, work type) and the list of industries. preferences is null when the questionnaire has not been completed.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.preferencesGet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preferences_set",
		Description: "Replace the stored job preferences. Skills are lowercased and deduplicated, unknown interests are dropped, an empty location means anywhere. Set clear=true to remove preferences.",
	}, t.preferencesSet)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "setting_set",
		Description: "Store a profile setting: theme, userName or rememberedUsername.",
	}, t.settingSet)
}

func (t *tools) preferencesGet(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, engine.PreferencesOutput, error) {
	return nil, engine.PreferencesOutput{
		Preferences: t.Store.Load(ctx),
		Industries:  engine.Industries(),
	}, nil
}

// preferencesSet drops cached aggregations for the previous preferences so the
// next search reflects the change.
func (t *tools) preferencesSet(ctx context.Context, _ *mcp.CallToolRequest, input engine.PreferencesInput) (*mcp.CallToolResult, engine.PreferencesOutput, error) {
	old := t.Store.Load(ctx)

	if input.Clear {
		if err := t.Store.Clear(ctx); err != nil {
			return nil, engine.PreferencesOutput{}, err
		}
	} else if err := t.Store.Save(ctx, input.Preferences()); err != nil {
		return nil, engine.PreferencesOutput{}, err
	}

	if old != nil {
		t.Aggregator.Invalidate(ctx, old)
	}
	slog.Info("preferences_set: updated", slog.Bool("cleared", input.Clear))
	return t.preferencesGet(ctx, nil, struct{}{})
}

func (t *tools) settingSet(ctx context.Context, _ *mcp.CallToolRequest, input engine.SettingInput) (*mcp.CallToolResult, engine.CommandResult, error) {
	if err := t.Store.SetSetting(ctx, input.Key, input.Value); err != nil {
		return nil, engine.CommandResult{}, err
	}
	return nil, engine.CommandResult{OK: true, Message: input.Key + " updated."}, nil
}
