package persistence

import (
	"context"
	"fmt"
	"time"
)

// CleanupScheduleRow is a scheduled workspace-cleanup entry for a workflow.
type CleanupScheduleRow struct {
	ID           string
	WorkflowID   string
	ScheduledFor time.Time
	Processed    bool
}

// ScheduleCleanup records a future cleanup for workflowID.
func (s *Store) ScheduleCleanup(ctx context.Context, id, workflowID string, scheduledFor time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cleanup_schedule (id, workflow_id, scheduled_for, processed)
		VALUES (?, ?, ?, 0)
	`, id, workflowID, nowISO(scheduledFor))
	if err != nil {
		return fmt.Errorf("persistence: schedule cleanup %s: %w", workflowID, err)
	}
	return nil
}

// DueCleanups returns unprocessed cleanup rows whose scheduled_for is at or
// before now.
func (s *Store) DueCleanups(ctx context.Context, now time.Time) ([]*CleanupScheduleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, scheduled_for, processed FROM cleanup_schedule
		WHERE processed=0 AND scheduled_for <= ? ORDER BY scheduled_for ASC`, nowISO(now))
	if err != nil {
		return nil, fmt.Errorf("persistence: list due cleanups: %w", err)
	}
	defer rows.Close()

	var out []*CleanupScheduleRow
	for rows.Next() {
		var r CleanupScheduleRow
		var scheduledFor string
		var processed int
		if err := rows.Scan(&r.ID, &r.WorkflowID, &scheduledFor, &processed); err != nil {
			return nil, err
		}
		if r.ScheduledFor, err = parseISO(scheduledFor); err != nil {
			return nil, fmt.Errorf("persistence: parse scheduled_for: %w", err)
		}
		r.Processed = processed != 0
		out = append(out, &r)
	}
	return out, rows.Err()
}

// MarkCleanupProcessed flips processed to true for id, regardless of
// whether the underlying workspace cleanup succeeded (failures are logged
// by the caller, never re-raised here).
func (s *Store) MarkCleanupProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE cleanup_schedule SET processed=1 WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("persistence: mark cleanup processed %s: %w", id, err)
	}
	return nil
}
