package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ironleaf/conductor/log"
)

// ScheduleWorkspaceCleanup records a future workspace reclaim for
// workflowID, delay after now. Call sites typically pass DefaultCleanupDelay
// when a handoff reaches "Approved for Integration".
func (e *Engine) ScheduleWorkspaceCleanup(ctx context.Context, workflowID string, delay time.Duration) error {
	return e.store.ScheduleCleanup(ctx, newID(), workflowID, time.Now().Add(delay))
}

// ProcessScheduledCleanups runs the due-cleanup sweep: for every cleanup
// row whose scheduled_for has passed, reclaim the workspace for every
// agent_type still on that workflow's role registry, then mark the row
// processed regardless of whether the underlying workspace removal
// succeeded (a missing or already-removed workspace is not an error).
func (e *Engine) ProcessScheduledCleanups(ctx context.Context) (int, error) {
	due, err := e.store.DueCleanups(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("engine: list due cleanups: %w", err)
	}

	for _, row := range due {
		w, err := e.store.GetWorkflow(ctx, row.WorkflowID)
		if err != nil {
			log.WarningLog.Printf("engine: cleanup %s: workflow %s unavailable: %v", row.ID, row.WorkflowID, err)
		} else {
			for _, role := range w.Roles {
				taskID := role + "-" + row.WorkflowID
				if _, err := e.ws.Cleanup(taskID, false); err != nil {
					log.WarningLog.Printf("engine: cleanup workspace %s: %v", taskID, err)
				}
			}
		}
		if err := e.store.MarkCleanupProcessed(ctx, row.ID); err != nil {
			log.ErrorLog.Printf("engine: mark cleanup %s processed: %v", row.ID, err)
		}
	}
	return len(due), nil
}
