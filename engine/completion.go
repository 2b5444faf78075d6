package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/persistence"
)

// SignalCompletionRequest is signalCompletion's argument bag. AgentID is
// the task id launchAgent minted (agent_type + "-" + workflow_id);
// WorkflowID may be supplied directly when the caller already knows it,
// otherwise it is recovered from the matching queued task.
type SignalCompletionRequest struct {
	AgentID    string
	WorkflowID string
	Result     string // "ok" or a failure summary
	Artifacts  map[string]any
	// Status overrides the derived terminal workflow status, for callers
	// that need something other than the ok-vs-failed default (e.g.
	// "approved" after a review handoff).
	Status string
}

// SignalCompletionResult is signalCompletion's response.
type SignalCompletionResult struct {
	Status      string
	TasksRemoved int
}

// SignalCompletion implements the signalCompletion algorithm: remove the
// matching queued task, set the workflow to its terminal status, release
// the agent's role from the workflow's active-role set, write a completion
// memory record, and emit agent:completed.
func (e *Engine) SignalCompletion(ctx context.Context, req SignalCompletionRequest) (*SignalCompletionResult, error) {
	workflowID := req.WorkflowID
	if workflowID == "" {
		e.pendingMu.Lock()
		for _, t := range e.pending {
			if t.TaskID == req.AgentID {
				workflowID = t.WorkflowID
				break
			}
		}
		e.pendingMu.Unlock()
	}
	if workflowID == "" {
		return nil, fmt.Errorf("engine: signal completion for %q: no workflow_id supplied and none queued under that id", req.AgentID)
	}

	removed := 0
	if t := e.dequeueForWorkflow(workflowID); t != nil {
		removed = 1
		e.scope.Complete(t.TaskID)
	}

	status := req.Status
	if status == "" {
		status = persistence.StatusCompleted
		if req.Result != "" && req.Result != "ok" {
			status = persistence.StatusFailed
		}
	}

	e.roleMu.Lock()
	w, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		e.roleMu.Unlock()
		if err == persistence.ErrNotFound {
			return nil, fmt.Errorf("engine: signal completion: workflow %s not found", workflowID)
		}
		return nil, fmt.Errorf("engine: load workflow %s: %w", workflowID, err)
	}

	agentType := strings.TrimSuffix(req.AgentID, "-"+workflowID)
	w.Roles = removeRole(w.Roles, agentType)
	w.Status = status
	w.UpdatedAt = time.Now()
	if err := e.store.UpsertWorkflow(ctx, w); err != nil {
		e.roleMu.Unlock()
		return nil, fmt.Errorf("engine: update workflow %s on completion: %w", workflowID, err)
	}
	e.roleMu.Unlock()

	content := req.Result
	if content == "" {
		content = "completed"
	}
	if _, err := e.mem.Store(ctx, memory.StoreInput{
		Content:    content,
		Type:       "completion",
		WorkflowID: workflowID,
		Tags:       []string{agentType},
		Metadata:   req.Artifacts,
	}); err != nil {
		logError(fmt.Sprintf("engine: store completion record for %s", req.AgentID), err)
	}

	e.Events.Emit(Event{
		Type:       EventAgentCompleted,
		WorkflowID: workflowID,
		Data:       map[string]any{"agent_id": req.AgentID, "status": status},
	})

	return &SignalCompletionResult{Status: status, TasksRemoved: removed}, nil
}

func removeRole(roles []string, role string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != role {
			out = append(out, r)
		}
	}
	return out
}
