// Package rpc exposes the orchestrator's operations over the Model
// Context Protocol: one gomcp.Tool per operation, registered against a
// mcpserver.MCPServer served over stdio.
package rpc

import (
	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/workspace"
)

const serverInstructions = "You are talking to the orchestrator that launches and supervises other " +
	"agents. Use launch_agent to start work, signal_completion when a launched agent finishes, " +
	"and the workflow/workspace query tools to check on progress."

// Server wraps an MCP server over the orchestrator's core collaborators.
type Server struct {
	server  *mcpserver.MCPServer
	eng     *engine.Engine
	ws      *workspace.Manager
	mem     *memory.Store
	persist *persistence.Store
}

// New constructs a Server and registers every operation's tool. persist
// additionally records a tool_usage row per invocation (see usage.go); it
// may be nil in tests that don't care about usage accounting.
func New(eng *engine.Engine, ws *workspace.Manager, mem *memory.Store, persist *persistence.Store) *Server {
	s := mcpserver.NewMCPServer(
		"conductor",
		"0.1.0",
		mcpserver.WithInstructions(serverInstructions),
	)

	srv := &Server{server: s, eng: eng, ws: ws, mem: mem, persist: persist}
	srv.registerTools()
	return srv
}

func (s *Server) registerTools() {
	s.server.AddTool(gomcp.NewTool("launch_agent",
		gomcp.WithDescription("Admit and queue a new agent task under scope control."),
		gomcp.WithString("agent_type", gomcp.Required(), gomcp.Description("Role label, e.g. backend-developer-associate.")),
		gomcp.WithString("specifications", gomcp.Required(), gomcp.Description("The task specification text.")),
		gomcp.WithString("workflow_id", gomcp.Description("Existing workflow to attach to; omit to start a new one.")),
		gomcp.WithString("workflow_name", gomcp.Description("Human-readable name for a new workflow.")),
		gomcp.WithString("base_ref", gomcp.Description("If set, also create a workspace rooted at this ref.")),
	), s.track("launch_agent", s.handleLaunchAgent()))

	s.server.AddTool(gomcp.NewTool("get_pending_tasks",
		gomcp.WithDescription("List queued launch-agent tasks awaiting a runner poll."),
		gomcp.WithString("agent_type", gomcp.Description("Filter to one agent type.")),
		gomcp.WithReadOnlyHintAnnotation(true),
	), s.track("get_pending_tasks", s.handleGetPendingTasks()))

	s.server.AddTool(gomcp.NewTool("signal_completion",
		gomcp.WithDescription("Record that a launched agent finished."),
		gomcp.WithString("agent_id", gomcp.Required(), gomcp.Description("The task id launch_agent returned.")),
		gomcp.WithString("workflow_id", gomcp.Description("Workflow id, if not recoverable from agent_id.")),
		gomcp.WithString("result", gomcp.Description(`"ok" or a failure summary.`)),
	), s.track("signal_completion", s.handleSignalCompletion()))

	s.server.AddTool(gomcp.NewTool("create_workspace",
		gomcp.WithDescription("Create a per-agent git worktree."),
		gomcp.WithString("agent_id", gomcp.Required()),
		gomcp.WithString("base_ref", gomcp.Description("Branch, tag, or commit; defaults to HEAD.")),
	), s.track("create_workspace", s.handleCreateWorkspace()))

	s.server.AddTool(gomcp.NewTool("cleanup_workspace",
		gomcp.WithDescription("Remove a per-agent git worktree."),
		gomcp.WithString("agent_id", gomcp.Required()),
		gomcp.WithBoolean("force", gomcp.Description("Force-remove even if the managed removal fails.")),
	), s.track("cleanup_workspace", s.handleCleanupWorkspace()))

	s.server.AddTool(gomcp.NewTool("list_workspaces",
		gomcp.WithDescription("List all managed worktrees."),
		gomcp.WithReadOnlyHintAnnotation(true),
	), s.track("list_workspaces", s.handleListWorkspaces()))

	s.server.AddTool(gomcp.NewTool("get_system_status",
		gomcp.WithDescription("Summarize workflow counts and queue depth."),
		gomcp.WithReadOnlyHintAnnotation(true),
	), s.track("get_system_status", s.handleGetSystemStatus()))

	s.server.AddTool(gomcp.NewTool("get_workflow_status",
		gomcp.WithDescription("Fetch one workflow and its handoff history."),
		gomcp.WithString("workflow_id", gomcp.Required()),
		gomcp.WithReadOnlyHintAnnotation(true),
	), s.track("get_workflow_status", s.handleGetWorkflowStatus()))

	s.server.AddTool(gomcp.NewTool("list_workflows",
		gomcp.WithDescription("List workflows, optionally filtered by status or agent type."),
		gomcp.WithString("status", gomcp.Description("Filter to one status.")),
		gomcp.WithString("agent_type", gomcp.Description("Filter to one agent type.")),
		gomcp.WithNumber("limit", gomcp.Description("Max rows, default 50.")),
		gomcp.WithNumber("offset", gomcp.Description("Row offset.")),
		gomcp.WithReadOnlyHintAnnotation(true),
	), s.track("list_workflows", s.handleListWorkflows()))

	s.server.AddTool(gomcp.NewTool("get_workflow_handoffs",
		gomcp.WithDescription("List a workflow's handoff history."),
		gomcp.WithString("workflow_id", gomcp.Required()),
		gomcp.WithBoolean("include_processed", gomcp.Description("Include already-processed handoffs.")),
		gomcp.WithReadOnlyHintAnnotation(true),
	), s.track("get_workflow_handoffs", s.handleGetWorkflowHandoffs()))

	s.server.AddTool(gomcp.NewTool("detect_stale_workflows",
		gomcp.WithDescription("Mark active workflows idle past threshold_minutes as stale."),
		gomcp.WithNumber("threshold_minutes", gomcp.Description("Default 30.")),
	), s.track("detect_stale_workflows", s.handleDetectStaleWorkflows()))

	s.server.AddTool(gomcp.NewTool("cleanup_stale_workflows",
		gomcp.WithDescription("Delete stale workflows older than retention_days."),
		gomcp.WithNumber("retention_days", gomcp.Description("Default 7.")),
	), s.track("cleanup_stale_workflows", s.handleCleanupStaleWorkflows()))
}

// Serve starts the MCP server over stdio, blocking until the transport closes.
func (s *Server) Serve() error {
	return mcpserver.ServeStdio(s.server)
}
