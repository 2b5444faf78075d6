package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Handoff types, per the data model.
const (
	HandoffTaskAssignment   = "task_assignment"
	HandoffReviewRequest    = "review_request"
	HandoffIntegrationReady = "integration_ready"
	HandoffRevisionRequest  = "revision_request"
)

// Handoff is a recorded intent to transition control between agent roles
// within a workflow. Once Processed is true it is never mutated again.
type Handoff struct {
	ID          string
	FromAgent   string
	ToAgent     string
	WorkflowID  string
	Type        string
	TaskDetails string
	CreatedAt   time.Time
	Processed   bool
}

// InsertHandoff records a new, unprocessed handoff.
func (s *Store) InsertHandoff(ctx context.Context, h *Handoff) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO handoffs (id, from_agent, to_agent, workflow_id, type, task_details, created_at, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.FromAgent, h.ToAgent, h.WorkflowID, h.Type, h.TaskDetails, nowISO(h.CreatedAt), boolToInt(h.Processed))
	if err != nil {
		return fmt.Errorf("persistence: insert handoff %s: %w", h.ID, err)
	}
	return nil
}

// MarkHandoffProcessed flips processed to true. It is a no-op (not an
// error) if the handoff is already processed, preserving the
// never-false-again invariant under replay.
func (s *Store) MarkHandoffProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE handoffs SET processed=1 WHERE id=? AND processed=0`, id)
	if err != nil {
		return fmt.Errorf("persistence: mark handoff processed %s: %w", id, err)
	}
	return nil
}

// ListUnprocessedHandoffs returns unprocessed handoffs in creation order.
func (s *Store) ListUnprocessedHandoffs(ctx context.Context) ([]*Handoff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_agent, to_agent, workflow_id, type, task_details, created_at, processed
		FROM handoffs WHERE processed=0 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("persistence: list unprocessed handoffs: %w", err)
	}
	defer rows.Close()
	return scanHandoffs(rows)
}

// ListHandoffsByWorkflow returns handoffs for workflowID in creation order,
// optionally including already-processed ones.
func (s *Store) ListHandoffsByWorkflow(ctx context.Context, workflowID string, includeProcessed bool) ([]*Handoff, error) {
	query := `SELECT id, from_agent, to_agent, workflow_id, type, task_details, created_at, processed
		FROM handoffs WHERE workflow_id=?`
	if !includeProcessed {
		query += ` AND processed=0`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("persistence: list handoffs for %s: %w", workflowID, err)
	}
	defer rows.Close()
	return scanHandoffs(rows)
}

func scanHandoffs(rows *sql.Rows) ([]*Handoff, error) {
	var out []*Handoff
	for rows.Next() {
		var h Handoff
		var createdAt string
		var processed int
		if err := rows.Scan(&h.ID, &h.FromAgent, &h.ToAgent, &h.WorkflowID, &h.Type, &h.TaskDetails, &createdAt, &processed); err != nil {
			return nil, err
		}
		var err error
		if h.CreatedAt, err = parseISO(createdAt); err != nil {
			return nil, fmt.Errorf("persistence: parse handoff created_at: %w", err)
		}
		h.Processed = processed != 0
		out = append(out, &h)
	}
	return out, rows.Err()
}
