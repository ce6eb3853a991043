package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/seanmmay/b0t-sub000/internal/engine"
	"github.com/seanmmay/b0t-sub000/internal/modules"
	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/pkg/schema"
)

// Runner executes workflows. Satisfied by *engine.Executor.
type Runner interface {
	ExecuteWorkflow(ctx context.Context, workflowID, userID, triggerType string, triggerData map[string]any) schema.ExecutionResult
	ExecuteWorkflowConfig(ctx context.Context, cfg schema.WorkflowConfig, userID string, triggerData map[string]any, opts ...engine.RunOption) schema.ExecutionResult
}

// RunReader is the run history the server exposes.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*schema.WorkflowRun, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]*schema.WorkflowRun, error)
	ListRunEvents(ctx context.Context, runID string) ([]*store.RunEvent, error)
}

// WorkflowReader looks up stored workflows for diagrams.
type WorkflowReader interface {
	GetWorkflow(ctx context.Context, id string) (*store.Workflow, error)
}

// ConfigValidator reports every problem in a step tree.
// Satisfied by *validation.WorkflowValidator.
type ConfigValidator interface {
	Validate(cfg *schema.WorkflowConfig) *schema.ValidationResult
	ValidateConfig(cfg *schema.WorkflowConfig) error
}

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Runner    Runner
	Runs      RunReader
	Workflows WorkflowReader
	Registry  *modules.Registry
	Validator ConfigValidator
	Logger    *slog.Logger
}

// Server exposes the workflow engine as MCP tools.
type Server struct {
	runner    Runner
	runs      RunReader
	workflows WorkflowReader
	registry  *modules.Registry
	validator ConfigValidator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all tools registered.
func NewServer(deps ServerDeps, version string) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Server{
		runner:    deps.Runner,
		runs:      deps.Runs,
		workflows: deps.Workflows,
		registry:  deps.Registry,
		validator: deps.Validator,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"b0t",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("b0t runs declarative workflows of module calls. Use workflow.execute for stored workflows, workflow.execute_config for inline step trees, workflow.validate to check a tree without running it, run.get / run.list / run.events for history, workflow.diagram to draw a step tree or a run, and modules.list to discover module paths and their parameters."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: executeConfigTool(), Handler: s.handleExecuteConfig},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: runGetTool(), Handler: s.handleRunGet},
		{Tool: runListTool(), Handler: s.handleRunList},
		{Tool: runEventsTool(), Handler: s.handleRunEvents},
		{Tool: modulesListTool(), Handler: s.handleModulesList},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func executeTool() mcp.Tool {
	return mcp.NewTool("workflow.execute",
		mcp.WithDescription("Run a stored workflow and record the run"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to run")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User whose credentials the run uses")),
		mcp.WithString("trigger_type", mcp.Description("Trigger recorded on the run (default: manual)")),
		mcp.WithObject("trigger_data", mcp.Description("Payload exposed to steps as {{trigger.*}}")),
	)
}

func executeConfigTool() mcp.Tool {
	return mcp.NewTool("workflow.execute_config",
		mcp.WithDescription("Run an inline step tree without a stored workflow"),
		mcp.WithObject("config", mcp.Required(), mcp.Description("Workflow config: {\"steps\": [...]}")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User whose credentials the run uses")),
		mcp.WithObject("trigger_data", mcp.Description("Payload exposed to steps as {{trigger.*}}")),
		mcp.WithBoolean("persist", mcp.Description("Record the run in history (default: false)")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("workflow.validate",
		mcp.WithDescription("Check a step tree without running it"),
		mcp.WithObject("config", mcp.Required(), mcp.Description("Workflow config: {\"steps\": [...]}")),
	)
}

func runGetTool() mcp.Tool {
	return mcp.NewTool("run.get",
		mcp.WithDescription("Get a workflow run by ID"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run")),
	)
}

func runListTool() mcp.Tool {
	return mcp.NewTool("run.list",
		mcp.WithDescription("List workflow runs, newest first"),
		mcp.WithString("workflow_id", mcp.Description("Only runs of this workflow")),
		mcp.WithString("user_id", mcp.Description("Only runs of this user")),
		mcp.WithString("status", mcp.Enum("running", "success", "error"), mcp.Description("Only runs in this status")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs returned (default: 50)")),
	)
}

func runEventsTool() mcp.Tool {
	return mcp.NewTool("run.events",
		mcp.WithDescription("List the step events of a run in order"),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("ID of the run")),
	)
}

func modulesListTool() mcp.Tool {
	return mcp.NewTool("modules.list",
		mcp.WithDescription("List registered module paths and their parameters"),
		mcp.WithString("prefix", mcp.Description("Only paths starting with this prefix, e.g. utilities.math")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("workflow.diagram",
		mcp.WithDescription("Draw a workflow's step tree as ASCII art, a Mermaid flowchart, or a base64-encoded PNG image"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (base64 PNG)"),
		),
		mcp.WithString("workflow_id", mcp.Description("Stored workflow to draw")),
		mcp.WithObject("config", mcp.Description("Inline workflow config to draw instead of a stored workflow")),
		mcp.WithString("run_id", mcp.Description("Overlay the step outcomes of this run (implies its workflow when workflow_id is omitted)")),
	)
}
