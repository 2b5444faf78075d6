// Package hooks implements the engine-facing half of the hook dispatcher:
// given a detected transcript marker, it creates the corresponding
// handoff, transitions the originating workflow's status, auto-launches
// the next role where the marker calls for it, and drains the event
// processor. Transcript acquisition and marker scanning itself (DetectMarker)
// is the uninteresting half; this package's value is the state transition
// it drives in the engine.
package hooks

import (
	"context"
	"fmt"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/persistence"
)

// Dispatcher converts detected markers into engine calls.
type Dispatcher struct {
	eng *engine.Engine
}

// New constructs a Dispatcher over eng.
func New(eng *engine.Engine) *Dispatcher {
	return &Dispatcher{eng: eng}
}

// Event is one marker occurrence to dispatch.
type Event struct {
	Marker         Marker
	WorkflowID     string
	WorkflowName   string
	FromAgent      string
	Specifications string
}

// Handle processes ev: creates the handoff, launches the next role if the
// marker calls for it, then updates workflow status (after the launch, so
// the launch's own active status does not replace the marker's), schedules
// cleanup on integration approval, and finally drains the event processor
// so any handoff the caller's own processing left behind also advances.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	toAgent := swapRole(ev.FromAgent)

	handoffType, status, launchNext := classify(ev.Marker)

	if _, err := d.eng.CreateHandoff(ctx, engine.CreateHandoffRequest{
		FromAgent:   ev.FromAgent,
		ToAgent:     toAgent,
		WorkflowID:  ev.WorkflowID,
		Type:        handoffType,
		TaskDetails: ev.Specifications,
	}); err != nil {
		return fmt.Errorf("hooks: create handoff for %s: %w", ev.WorkflowID, err)
	}

	if launchNext {
		if _, err := d.eng.LaunchAgent(ctx, engine.LaunchRequest{
			AgentType:      toAgent,
			Specifications: ev.Specifications,
			WorkflowID:     ev.WorkflowID,
			WorkflowName:   ev.WorkflowName,
		}); err != nil {
			return fmt.Errorf("hooks: launch %s for workflow %s: %w", toAgent, ev.WorkflowID, err)
		}
	}

	if err := d.eng.UpdateWorkflowStatus(ctx, ev.WorkflowID, status); err != nil {
		return fmt.Errorf("hooks: update workflow %s status: %w", ev.WorkflowID, err)
	}

	if ev.Marker == MarkerApprovedForIntegration {
		if err := d.eng.ScheduleWorkspaceCleanup(ctx, ev.WorkflowID, engine.DefaultCleanupDelay); err != nil {
			return fmt.Errorf("hooks: schedule cleanup for workflow %s: %w", ev.WorkflowID, err)
		}
	}

	if _, err := d.eng.ProcessPendingEvents(ctx); err != nil {
		return fmt.Errorf("hooks: process pending events: %w", err)
	}
	return nil
}

// classify maps a marker to its handoff type, the resulting workflow
// status, and whether the dispatcher should immediately launch the
// counterpart role (as opposed to leaving it to the next event-processor
// sweep).
func classify(m Marker) (handoffType, status string, launchNext bool) {
	switch m {
	case MarkerTaskAssignment:
		return persistence.HandoffTaskAssignment, persistence.StatusDelegation, true
	case MarkerImplementationComplete:
		return persistence.HandoffReviewRequest, persistence.StatusAwaitingApproval, true
	case MarkerReviewRequired:
		return persistence.HandoffRevisionRequest, persistence.StatusRevisionRequired, true
	case MarkerApprovedForIntegration:
		return persistence.HandoffIntegrationReady, persistence.StatusApproved, false
	default:
		return persistence.HandoffTaskAssignment, persistence.StatusDelegation, false
	}
}
