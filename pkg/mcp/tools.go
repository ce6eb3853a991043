package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/seanmmay/b0t-sub000/internal/diagram"
	"github.com/seanmmay/b0t-sub000/internal/engine"
	"github.com/seanmmay/b0t-sub000/internal/modules"
	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

const defaultRunLimit = 50

// handleExecute runs a stored workflow. Run failures are reported in the
// result body, not as tool errors, so callers see errorStep.
func (s *Server) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	triggerType := req.GetString("trigger_type", schema.TriggerManual)
	triggerData := mcp.ParseStringMap(req, "trigger_data", nil)

	res := s.runner.ExecuteWorkflow(ctx, workflowID, userID, triggerType, triggerData)
	return marshalResult(res)
}

func (s *Server) handleExecuteConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := parseConfig(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	triggerData := mcp.ParseStringMap(req, "trigger_data", nil)

	opts := []engine.RunOption{engine.Persist(req.GetBool("persist", false))}
	if s.validator != nil {
		opts = append(opts, engine.Validate(s.validator))
	}
	res := s.runner.ExecuteWorkflowConfig(ctx, *cfg, userID, triggerData, opts...)
	return marshalResult(res)
}

func (s *Server) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.validator == nil {
		return mcp.NewToolResultError("validation is not configured"), nil
	}
	cfg, err := parseConfig(req)
	if err != nil {
		// A config that does not even decode is reported as one issue.
		return marshalResult(map[string]any{
			"valid":  false,
			"issues": []schema.ValidationIssue{{Path: "config", Code: schema.ErrCodeValidation, Message: err.Error()}},
		})
	}
	result := s.validator.Validate(cfg)
	return marshalResult(map[string]any{
		"valid":  result.Valid(),
		"issues": result.Issues,
	})
}

func (s *Server) handleRunGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", err)), nil
	}
	return marshalResult(run)
}

func (s *Server) handleRunList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.RunFilter{
		WorkflowID: req.GetString("workflow_id", ""),
		UserID:     req.GetString("user_id", ""),
		Limit:      req.GetInt("limit", defaultRunLimit),
	}
	if st := req.GetString("status", ""); st != "" {
		status := schema.RunStatus(st)
		filter.Status = &status
	}
	runs, err := s.runs.ListRuns(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list runs failed: %v", err)), nil
	}
	if runs == nil {
		runs = []*schema.WorkflowRun{}
	}
	return marshalResult(map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleRunEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	events, err := s.runs.ListRunEvents(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list events failed: %v", err)), nil
	}
	if events == nil {
		events = []*store.RunEvent{}
	}
	return marshalResult(map[string]any{"events": events, "count": len(events)})
}

func (s *Server) handleModulesList(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := strings.ToLower(req.GetString("prefix", ""))
	all := s.registry.List()
	out := make([]modules.ModuleInfo, 0, len(all))
	for _, m := range all {
		if strings.HasPrefix(m.Path, prefix) {
			out = append(out, m)
		}
	}
	return marshalResult(map[string]any{"modules": out, "count": len(out)})
}

// handleDiagram draws an inline config, a stored workflow, or the workflow
// of a run with that run's outcome overlaid.
func (s *Server) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	workflowID := req.GetString("workflow_id", "")
	runID := req.GetString("run_id", "")

	var events []*store.RunEvent
	if runID != "" {
		run, err := s.runs.GetRun(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", err)), nil
		}
		if workflowID == "" {
			workflowID = run.WorkflowID
		}
		if events, err = s.runs.ListRunEvents(ctx, runID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list events failed: %v", err)), nil
		}
	}

	var (
		title string
		steps []schema.Step
	)
	switch {
	case req.GetArguments()["config"] != nil:
		cfg, err := parseConfig(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		steps = cfg.Steps
	case workflowID != "" && s.workflows != nil:
		wf, err := s.workflows.GetWorkflow(ctx, workflowID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("workflow lookup failed: %v", err)), nil
		}
		title, steps = wf.Name, wf.Config.Steps
	default:
		return mcp.NewToolResultError("one of config, workflow_id or a run_id of a stored workflow is required"), nil
	}

	model := diagram.Build(title, steps, events)
	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, err := diagram.RenderImage(ctx, model, diagram.FormatPNG)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", err)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	}
}

// parseConfig decodes the "config" argument into a step tree.
func parseConfig(req mcp.CallToolRequest) (*schema.WorkflowConfig, error) {
	raw, ok := req.GetArguments()["config"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("config is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var cfg schema.WorkflowConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
