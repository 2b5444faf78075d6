package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ironleaf/conductor/persistence"
)

// DetectStaleWorkflows marks every StatusActive workflow whose updated_at
// predates now-thresholdMinutes as stale, and returns how many it marked.
func (e *Engine) DetectStaleWorkflows(ctx context.Context, thresholdMinutes int) (int, error) {
	cutoff := time.Now().Add(-time.Duration(thresholdMinutes) * time.Minute)
	candidates, err := e.store.ListActiveWorkflowsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("engine: list stale candidates: %w", err)
	}

	now := time.Now()
	marked := 0
	for _, w := range candidates {
		if err := e.store.UpdateWorkflowStatus(ctx, w.ID, persistence.StatusStale, now); err != nil {
			logError(fmt.Sprintf("engine: mark workflow %s stale", w.ID), err)
			continue
		}
		marked++
	}
	return marked, nil
}

// CleanupOldStaleWorkflows deletes StatusStale workflow rows whose
// updated_at predates now-retentionDays, and returns how many it removed.
func (e *Engine) CleanupOldStaleWorkflows(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	n, err := e.store.DeleteStaleWorkflowsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("engine: delete stale workflows: %w", err)
	}
	return n, nil
}
