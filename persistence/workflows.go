package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Workflow statuses, per the data model's status enum.
const (
	StatusInitialized      = "initialized"
	StatusActive           = "active"
	StatusDelegation       = "delegation"
	StatusAwaitingApproval = "awaiting_approval"
	StatusRevisionRequired = "revision_required"
	StatusApproved         = "approved"
	StatusCompleted        = "completed"
	StatusFailed           = "failed"
	StatusStale            = "stale"
)

// Workflow is a named, persisted unit of work attributed to an agent role.
type Workflow struct {
	ID             string
	Name           string
	Status         string
	AgentType      string
	AgentRole      string
	Specifications string
	// Roles is the set of agent_type values currently active on this
	// workflow, used for the duplicate-role admission check.
	Roles     []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("persistence: not found")

// UpsertWorkflow inserts or replaces the workflow row for w.ID in a single
// statement. Callers set UpdatedAt before calling; CreatedAt is written only
// by the first insert, since the ON CONFLICT update never touches
// created_at, so the row keeps its original creation time.
func (s *Store) UpsertWorkflow(ctx context.Context, w *Workflow) error {
	roles, err := json.Marshal(w.Roles)
	if err != nil {
		return fmt.Errorf("persistence: marshal roles: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, status, agent_type, agent_role, specifications, roles, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			status=excluded.status,
			agent_type=excluded.agent_type,
			agent_role=excluded.agent_role,
			specifications=excluded.specifications,
			roles=excluded.roles,
			updated_at=excluded.updated_at
	`, w.ID, w.Name, w.Status, w.AgentType, w.AgentRole, w.Specifications, string(roles), nowISO(w.CreatedAt), nowISO(w.UpdatedAt))
	if err != nil {
		return fmt.Errorf("persistence: upsert workflow %s: %w", w.ID, err)
	}
	return nil
}

// UpdateWorkflowStatus sets status and updated_at for an existing workflow.
func (s *Store) UpdateWorkflowStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE workflows SET status=?, updated_at=? WHERE id=?`, status, nowISO(updatedAt), id)
	if err != nil {
		return fmt.Errorf("persistence: update workflow status %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetWorkflow returns the workflow row for id, or ErrNotFound.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, agent_type, agent_role, specifications, roles, created_at, updated_at
		FROM workflows WHERE id=?`, id)
	w, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

// WorkflowFilter narrows ListWorkflows; zero values are unfiltered.
type WorkflowFilter struct {
	Status    string
	AgentType string
	Limit     int
	Offset    int
}

// ListWorkflows returns workflows matching filter, newest-updated first.
func (s *Store) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	query := `SELECT id, name, status, agent_type, agent_role, specifications, roles, created_at, updated_at FROM workflows WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status=?`
		args = append(args, filter.Status)
	}
	if filter.AgentType != "" {
		query += ` AND agent_type=?`
		args = append(args, filter.AgentType)
	}
	query += ` ORDER BY updated_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("persistence: list workflows: %w", err)
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListActiveWorkflowsOlderThan returns workflows in StatusActive whose
// updated_at is before cutoff, for staleness detection.
func (s *Store) ListActiveWorkflowsOlderThan(ctx context.Context, cutoff time.Time) ([]*Workflow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, agent_type, agent_role, specifications, roles, created_at, updated_at
		FROM workflows WHERE status=? AND updated_at < ?`, StatusActive, nowISO(cutoff))
	if err != nil {
		return nil, fmt.Errorf("persistence: list stale candidates: %w", err)
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteStaleWorkflowsOlderThan removes StatusStale rows whose updated_at is
// before cutoff, and returns the number of rows deleted.
func (s *Store) DeleteStaleWorkflowsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE status=? AND updated_at < ?`, StatusStale, nowISO(cutoff))
	if err != nil {
		return 0, fmt.Errorf("persistence: delete stale workflows: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of workflows in each status, for
// get_system_status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM workflows GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("persistence: count by status: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*Workflow, error) {
	var w Workflow
	var rolesJSON, createdAt, updatedAt string
	if err := row.Scan(&w.ID, &w.Name, &w.Status, &w.AgentType, &w.AgentRole, &w.Specifications, &rolesJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rolesJSON), &w.Roles); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal roles: %w", err)
	}
	var err error
	if w.CreatedAt, err = parseISO(createdAt); err != nil {
		return nil, fmt.Errorf("persistence: parse created_at: %w", err)
	}
	if w.UpdatedAt, err = parseISO(updatedAt); err != nil {
		return nil, fmt.Errorf("persistence: parse updated_at: %w", err)
	}
	return &w, nil
}
