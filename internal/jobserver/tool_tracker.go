package jobserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/joblens/internal/engine"
)

func registerSavedJobs(server *mcp.Server, t *tools) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_save",
		Description: "Save a job from the latest job_search results by id. Saving an already saved job is a no-op.",
	}, t.jobSave)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "job_unsave",
		Description: "Remove a job from the saved list by id.",
	}, t.jobUnsave)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "saved_jobs",
		Description: "List saved jobs in the order they were saved.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.savedJobs)
}

func (t *tools) jobSave(ctx context.Context, _ *mcp.CallToolRequest, input engine.JobIDInput) (*mcp.CallToolResult, engine.CommandResult, error) {
	if input.ID == "" {
		return nil, engine.CommandResult{}, errors.New("id is required")
	}
	job, ok := t.Aggregator.Lookup(input.ID)
	if !ok {
		return nil, engine.CommandResult{}, fmt.Errorf("job %q is not in the current results, run job_search first", input.ID)
	}
	added, err := t.Store.SaveJob(ctx, job)
	if err != nil {
		return nil, engine.CommandResult{}, err
	}
	if !added {
		return nil, engine.CommandResult{OK: true, Message: "Job already saved."}, nil
	}
	return nil, engine.CommandResult{OK: true, Message: fmt.Sprintf("Saved %q at %s.", job.Title, job.Company)}, nil
}

func (t *tools) jobUnsave(ctx context.Context, _ *mcp.CallToolRequest, input engine.JobIDInput) (*mcp.CallToolResult, engine.CommandResult, error) {
	if input.ID == "" {
		return nil, engine.CommandResult{}, errors.New("id is required")
	}
	removed, err := t.Store.UnsaveJob(ctx, input.ID)
	if err != nil {
		return nil, engine.CommandResult{}, err
	}
	if !removed {
		return nil, engine.CommandResult{OK: false, Message: "Job was not saved."}, nil
	}
	return nil, engine.CommandResult{OK: true, Message: "Job removed from saved jobs."}, nil
}

func (t *tools) savedJobs(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, engine.SavedJobsOutput, error) {
	saved := t.Store.LoadSavedJobs(ctx)
	return nil, engine.SavedJobsOutput{Jobs: saved, Total: len(saved)}, nil
}
