package rpc

import (
	"context"
	"encoding/json"
	"errors"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/rpcerr"
	"github.com/ironleaf/conductor/workspace"
)

// errMissingParam is used internally by requireString; it never escapes a
// handler, which always converts it through rpcerr.Classify first.
var errMissingParam = errors.New("missing required parameter")

// requireString returns the named string argument, or errMissingParam if it
// is absent or empty.
func requireString(req gomcp.CallToolRequest, name string) (string, error) {
	v := req.GetString(name, "")
	if v == "" {
		return "", errMissingParam
	}
	return v, nil
}

// textResult marshals v to JSON and wraps it as a successful tool result,
// or falls back to an UNEXPECTED_ERROR result if v cannot be marshaled.
func textResult(tool string, v any) (*gomcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return gomcp.NewToolResultError(rpcerr.Unexpected(tool, err).JSON()), nil
	}
	return gomcp.NewToolResultText(string(data)), nil
}

func errResult(e *rpcerr.Error) (*gomcp.CallToolResult, error) {
	return gomcp.NewToolResultError(e.JSON()), nil
}

func (s *Server) handleLaunchAgent() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		agentType, err := requireString(req, "agent_type")
		if err != nil {
			return errResult(rpcerr.Classify("launch_agent", err))
		}
		specifications, err := requireString(req, "specifications")
		if err != nil {
			return errResult(rpcerr.Classify("launch_agent", err))
		}

		lreq := engine.LaunchRequest{
			AgentType:      agentType,
			Specifications: specifications,
			WorkflowID:     req.GetString("workflow_id", ""),
			WorkflowName:   req.GetString("workflow_name", ""),
		}
		if baseRef := req.GetString("base_ref", ""); baseRef != "" {
			lreq.Workspace = &engine.WorkspaceConfig{BaseRef: baseRef}
		}

		result, err := s.eng.LaunchAgent(ctx, lreq)
		if err != nil {
			return errResult(rpcerr.Classify("launch_agent", err))
		}
		return textResult("launch_agent", result)
	}
}

func (s *Server) handleGetPendingTasks() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		tasks := s.eng.GetPendingTasks(req.GetString("agent_type", ""))
		return textResult("get_pending_tasks", tasks)
	}
}

func (s *Server) handleSignalCompletion() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		agentID, err := requireString(req, "agent_id")
		if err != nil {
			return errResult(rpcerr.Classify("signal_completion", err))
		}

		args := req.GetArguments()
		var artifacts map[string]any
		if raw, ok := args["artifacts"].(map[string]any); ok {
			artifacts = raw
		}

		result, err := s.eng.SignalCompletion(ctx, engine.SignalCompletionRequest{
			AgentID:    agentID,
			WorkflowID: req.GetString("workflow_id", ""),
			Result:     req.GetString("result", ""),
			Artifacts:  artifacts,
		})
		if err != nil {
			return errResult(rpcerr.Classify("signal_completion", err))
		}
		return textResult("signal_completion", result)
	}
}

func (s *Server) handleCreateWorkspace() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		agentID, err := requireString(req, "agent_id")
		if err != nil {
			return errResult(rpcerr.Classify("create_workspace", err))
		}
		result, err := s.ws.Create(workspace.CreateRequest{
			AgentID: agentID,
			BaseRef: req.GetString("base_ref", ""),
		})
		if err != nil {
			return errResult(rpcerr.Classify("create_workspace", err))
		}
		return textResult("create_workspace", result)
	}
}

func (s *Server) handleCleanupWorkspace() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		agentID, err := requireString(req, "agent_id")
		if err != nil {
			return errResult(rpcerr.Classify("cleanup_workspace", err))
		}
		result, err := s.ws.Cleanup(agentID, req.GetBool("force", false))
		if err != nil {
			return errResult(rpcerr.Classify("cleanup_workspace", err))
		}
		return textResult("cleanup_workspace", result)
	}
}

func (s *Server) handleListWorkspaces() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		infos, err := s.ws.ListAll()
		if err != nil {
			return errResult(rpcerr.Classify("list_workspaces", err))
		}
		return textResult("list_workspaces", infos)
	}
}

func (s *Server) handleGetSystemStatus() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		status, err := s.eng.GetSystemStatus(ctx)
		if err != nil {
			return errResult(rpcerr.Classify("get_system_status", err))
		}
		stats, err := s.ws.GetStats()
		if err != nil {
			return errResult(rpcerr.Classify("get_system_status", err))
		}
		resp := map[string]any{
			"workflows_by_status": status.WorkflowsByStatus,
			"pending_task_count":  status.PendingTaskCount,
			"workspace_stats":     stats,
		}
		if s.persist != nil {
			if counts, err := s.persist.ToolUsageCounts(ctx); err == nil {
				resp["tool_usage_counts"] = counts
			}
		}
		return textResult("get_system_status", resp)
	}
}

func (s *Server) handleGetWorkflowStatus() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		workflowID, err := requireString(req, "workflow_id")
		if err != nil {
			return errResult(rpcerr.Classify("get_workflow_status", err))
		}
		status, err := s.eng.GetWorkflowStatus(ctx, workflowID)
		if err != nil {
			return errResult(rpcerr.Classify("get_workflow_status", err))
		}
		return textResult("get_workflow_status", status)
	}
}

func (s *Server) handleListWorkflows() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		filter := persistence.WorkflowFilter{
			Status:    req.GetString("status", ""),
			AgentType: req.GetString("agent_type", ""),
			Limit:     clampInt(intParam(req, "limit", 50), 1, 500),
			Offset:    clampInt(intParam(req, "offset", 0), 0, 1<<30),
		}
		workflows, err := s.eng.ListWorkflows(ctx, filter)
		if err != nil {
			return errResult(rpcerr.Classify("list_workflows", err))
		}
		return textResult("list_workflows", workflows)
	}
}

func (s *Server) handleGetWorkflowHandoffs() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		workflowID, err := requireString(req, "workflow_id")
		if err != nil {
			return errResult(rpcerr.Classify("get_workflow_handoffs", err))
		}
		handoffs, err := s.eng.GetWorkflowHandoffs(ctx, workflowID, req.GetBool("include_processed", false))
		if err != nil {
			return errResult(rpcerr.Classify("get_workflow_handoffs", err))
		}
		return textResult("get_workflow_handoffs", handoffs)
	}
}

func (s *Server) handleDetectStaleWorkflows() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		threshold := clampInt(intParam(req, "threshold_minutes", 30), 1, 1<<20)
		marked, err := s.eng.DetectStaleWorkflows(ctx, threshold)
		if err != nil {
			return errResult(rpcerr.Classify("detect_stale_workflows", err))
		}
		return textResult("detect_stale_workflows", map[string]any{"marked_stale": marked})
	}
}

func (s *Server) handleCleanupStaleWorkflows() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		retention := clampInt(intParam(req, "retention_days", 7), 1, 1<<20)
		deleted, err := s.eng.CleanupOldStaleWorkflows(ctx, retention)
		if err != nil {
			return errResult(rpcerr.Classify("cleanup_stale_workflows", err))
		}
		return textResult("cleanup_stale_workflows", map[string]any{"deleted": deleted})
	}
}

// intParam extracts a numeric tool argument, which mcp-go surfaces as
// float64, returning defaultVal if absent.
func intParam(req gomcp.CallToolRequest, name string, defaultVal int) int {
	if args := req.GetArguments(); args != nil {
		if v, ok := args[name].(float64); ok {
			return int(v)
		}
	}
	return defaultVal
}

// clampInt constrains v to the range [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
