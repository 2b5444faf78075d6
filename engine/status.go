package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ironleaf/conductor/persistence"
)

// WorkflowStatus bundles a workflow with its handoff history, the response
// shape for get_workflow_status.
type WorkflowStatus struct {
	Workflow       *persistence.Workflow
	HandoffHistory []*persistence.Handoff
}

// GetWorkflowStatus returns workflowID's row plus its full handoff history.
func (e *Engine) GetWorkflowStatus(ctx context.Context, workflowID string) (*WorkflowStatus, error) {
	w, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	handoffs, err := e.store.ListHandoffsByWorkflow(ctx, workflowID, true)
	if err != nil {
		return nil, fmt.Errorf("engine: load handoffs for %s: %w", workflowID, err)
	}
	return &WorkflowStatus{Workflow: w, HandoffHistory: handoffs}, nil
}

// ListWorkflows delegates to the persistence layer's filtered listing.
func (e *Engine) ListWorkflows(ctx context.Context, filter persistence.WorkflowFilter) ([]*persistence.Workflow, error) {
	return e.store.ListWorkflows(ctx, filter)
}

// UpdateWorkflowStatus sets workflowID's status directly, for callers (the
// hook dispatcher, review/approval flows) that transition state without
// going through launchAgent or signalCompletion.
func (e *Engine) UpdateWorkflowStatus(ctx context.Context, workflowID, status string) error {
	return e.store.UpdateWorkflowStatus(ctx, workflowID, status, time.Now())
}

// SystemStatus is the engine's part of get_system_status's response:
// workflow counts by status and the pending-task queue depth.
type SystemStatus struct {
	WorkflowsByStatus map[string]int
	PendingTaskCount  int
}

// GetSystemStatus summarizes workflow counts and queue depth.
func (e *Engine) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	counts, err := e.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: count workflows by status: %w", err)
	}
	return &SystemStatus{
		WorkflowsByStatus: counts,
		PendingTaskCount:  e.pendingCount(),
	}, nil
}
