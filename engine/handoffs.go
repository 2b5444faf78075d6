package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ironleaf/conductor/log"
	"github.com/ironleaf/conductor/persistence"
)

// CreateHandoffRequest is createHandoff's argument bag.
type CreateHandoffRequest struct {
	FromAgent   string
	ToAgent     string
	WorkflowID  string
	Type        string
	TaskDetails string
}

// CreateHandoff records a new, unprocessed handoff and emits
// handoff:created. The event processor sweep picks it up on its next run.
func (e *Engine) CreateHandoff(ctx context.Context, req CreateHandoffRequest) (*persistence.Handoff, error) {
	h := &persistence.Handoff{
		ID:          newID(),
		FromAgent:   req.FromAgent,
		ToAgent:     req.ToAgent,
		WorkflowID:  req.WorkflowID,
		Type:        req.Type,
		TaskDetails: req.TaskDetails,
		CreatedAt:   time.Now(),
	}
	if err := e.store.InsertHandoff(ctx, h); err != nil {
		return nil, fmt.Errorf("engine: create handoff: %w", err)
	}

	e.Events.Emit(Event{
		Type:       EventHandoffCreated,
		WorkflowID: req.WorkflowID,
		Data:       map[string]any{"handoff_id": h.ID, "from": req.FromAgent, "to": req.ToAgent, "type": req.Type},
	})
	return h, nil
}

// GetWorkflowHandoffs returns the handoff history for workflowID.
func (e *Engine) GetWorkflowHandoffs(ctx context.Context, workflowID string, includeProcessed bool) ([]*persistence.Handoff, error) {
	return e.store.ListHandoffsByWorkflow(ctx, workflowID, includeProcessed)
}

// ProcessPendingEvents is the event-processor sweep: it walks unprocessed
// handoffs in creation order and, for a task_assignment handed to an
// associate, launches that associate before marking the handoff processed.
// A handoff is only ever marked processed once its downstream launch (if
// any) has actually been enqueued, so a crash mid-sweep leaves it
// unprocessed and safely retried on the next sweep rather than silently
// dropping the launch.
func (e *Engine) ProcessPendingEvents(ctx context.Context) (int, error) {
	handoffs, err := e.store.ListUnprocessedHandoffs(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: list unprocessed handoffs: %w", err)
	}

	processed := 0
	for _, h := range handoffs {
		if err := e.processHandoff(ctx, h); err != nil {
			log.ErrorLog.Printf("engine: process handoff %s deferred to next sweep: %v", h.ID, err)
			continue
		}
		if err := e.store.MarkHandoffProcessed(ctx, h.ID); err != nil {
			log.ErrorLog.Printf("engine: mark handoff %s processed: %v", h.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (e *Engine) processHandoff(ctx context.Context, h *persistence.Handoff) error {
	if h.Type != persistence.HandoffTaskAssignment {
		return nil
	}
	if !isAssociate(h.ToAgent) {
		return nil
	}

	w, err := e.store.GetWorkflow(ctx, h.WorkflowID)
	if err != nil {
		return fmt.Errorf("load workflow %s: %w", h.WorkflowID, err)
	}

	_, err = e.LaunchAgent(ctx, LaunchRequest{
		AgentType:      h.ToAgent,
		Specifications: h.TaskDetails,
		WorkflowID:     h.WorkflowID,
		WorkflowName:   w.Name,
	})
	if err != nil {
		return fmt.Errorf("launch %s for workflow %s: %w", h.ToAgent, h.WorkflowID, err)
	}
	return nil
}

func isAssociate(agentType string) bool {
	return contains(agentType, "associate")
}
