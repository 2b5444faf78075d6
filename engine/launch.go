package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/scope"
	"github.com/ironleaf/conductor/workspace"
)

// WorkspaceConfig requests a worktree be created alongside the launched
// agent. Omitting it (leaving LaunchRequest.Workspace nil) skips workspace
// creation entirely: not every launched agent needs its own checkout.
type WorkspaceConfig struct {
	BaseRef   string
	Resources map[string]any
}

// LaunchRequest is launchAgent's argument bag.
type LaunchRequest struct {
	AgentType      string
	Specifications string
	WorkflowID     string // empty: a new workflow id is minted
	WorkflowName   string
	Workspace      *WorkspaceConfig
}

// LaunchResult is launchAgent's response.
type LaunchResult struct {
	Status           string // "queued" | "blocked" | "duplicate_blocked"
	WorkflowID       string
	TaskID           string
	AgentType        string
	ScopeConstraints scope.Constraints
	Violations       []scope.Violation
	Reason           string
	ExistingRoles    []string
}

// LaunchAgent implements the launchAgent algorithm: derive the workflow and
// task ids, run admission through scope control, enforce the one-active-
// role-per-workflow invariant, persist the workflow row, best-effort store
// the specification in memory, optionally create a workspace (fatal on
// failure), compose the role-scoped prompt, enqueue the task, and emit
// agent:launched.
func (e *Engine) LaunchAgent(ctx context.Context, req LaunchRequest) (*LaunchResult, error) {
	workflowID := req.WorkflowID
	if workflowID == "" {
		workflowID = newID()
	}
	taskID := req.AgentType + "-" + workflowID
	agentRole := deriveAgentRole(req.AgentType)

	admitted, taskScope, violations := e.scope.RegisterTask(taskID, workflowID, req.AgentType, req.Specifications)
	if !admitted {
		return &LaunchResult{
			Status:     "blocked",
			WorkflowID: workflowID,
			TaskID:     taskID,
			AgentType:  req.AgentType,
			Violations: violations,
			Reason:     "admission denied: blocking scope violation",
		}, nil
	}
	if len(violations) > 0 {
		e.Events.Emit(Event{
			Type:       EventScopeViolations,
			WorkflowID: workflowID,
			Data:       map[string]any{"task_id": taskID, "violations": violations},
		})
	}

	e.roleMu.Lock()
	existing, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil && err != persistence.ErrNotFound {
		e.roleMu.Unlock()
		e.scope.Complete(taskID)
		return nil, fmt.Errorf("engine: load workflow %s: %w", workflowID, err)
	}

	var roles []string
	if existing != nil {
		for _, r := range existing.Roles {
			if r == req.AgentType {
				e.roleMu.Unlock()
				e.scope.Complete(taskID)
				return &LaunchResult{
					Status:        "duplicate_blocked",
					WorkflowID:    workflowID,
					TaskID:        taskID,
					AgentType:     req.AgentType,
					Reason:        fmt.Sprintf("agent type %q already active on workflow %s", req.AgentType, workflowID),
					ExistingRoles: existing.Roles,
				}, nil
			}
		}
		roles = append(append([]string{}, existing.Roles...), req.AgentType)
	} else {
		roles = []string{req.AgentType}
	}

	now := time.Now()
	w := &persistence.Workflow{
		ID:             workflowID,
		Name:           req.WorkflowName,
		Status:         persistence.StatusActive,
		AgentType:      req.AgentType,
		AgentRole:      agentRole,
		Specifications: req.Specifications,
		Roles:          roles,
		UpdatedAt:      now,
	}
	if existing != nil {
		w.Name = existing.Name
		w.CreatedAt = existing.CreatedAt
		if w.Name == "" {
			w.Name = req.WorkflowName
		}
	} else {
		w.CreatedAt = now
	}
	if err := e.store.UpsertWorkflow(ctx, w); err != nil {
		e.roleMu.Unlock()
		e.scope.Complete(taskID)
		return nil, fmt.Errorf("engine: upsert workflow %s: %w", workflowID, err)
	}
	e.roleMu.Unlock()

	if _, err := e.mem.Store(ctx, memory.StoreInput{
		Content:    req.Specifications,
		Type:       "specification",
		WorkflowID: workflowID,
		Tags:       []string{req.AgentType},
	}); err != nil {
		logError(fmt.Sprintf("engine: store specification for %s", taskID), err)
	}

	var workspacePath string
	if req.Workspace != nil {
		result, err := e.ws.Create(workspace.CreateRequest{
			AgentID:   taskID,
			BaseRef:   req.Workspace.BaseRef,
			Resources: req.Workspace.Resources,
		})
		if err != nil {
			e.scope.Complete(taskID)
			return nil, fmt.Errorf("engine: create workspace for %s: %w", taskID, err)
		}
		workspacePath = result.WorkspacePath
	}

	scopedSpec := scope.GenerateScopedSpecifications(req.Specifications, taskScope.Constraints)
	prompt := composePrompt(workflowID, agentRole, scopedSpec)
	if workspacePath != "" {
		prompt += "\n\nworkspace: " + workspacePath
	}

	e.enqueue(&PendingTask{
		TaskID:           taskID,
		WorkflowID:       workflowID,
		AgentType:        req.AgentType,
		AgentRole:        agentRole,
		Prompt:           prompt,
		ScopeConstraints: taskScope.Constraints,
		CreatedAt:        now,
	})

	e.Events.Emit(Event{
		Type:       EventAgentLaunched,
		WorkflowID: workflowID,
		Data:       map[string]any{"task_id": taskID, "agent_type": req.AgentType},
	})

	return &LaunchResult{
		Status:           "queued",
		WorkflowID:       workflowID,
		TaskID:           taskID,
		AgentType:        req.AgentType,
		ScopeConstraints: taskScope.Constraints,
		Violations:       violations,
	}, nil
}
