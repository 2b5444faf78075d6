package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MemoryRecord is the durable half of a memory store entry: the text,
// tags, and metadata. The vector embedding (if any) lives only in the
// memory package's chromem-go collection, keyed by the same ID.
type MemoryRecord struct {
	ID         string
	Content    string
	Type       string
	Tags       []string
	WorkflowID string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// InsertMemory stores a memory record.
func (s *Store) InsertMemory(ctx context.Context, m *MemoryRecord) error {
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("persistence: marshal tags: %w", err)
	}
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("persistence: marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, type, tags, workflow_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Content, m.Type, string(tags), m.WorkflowID, string(metadata), nowISO(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("persistence: insert memory %s: %w", m.ID, err)
	}
	return nil
}

// MemoryFilter narrows SearchMemoriesText; zero values are unfiltered.
type MemoryFilter struct {
	Type       string
	WorkflowID string
	Limit      int
}

// SearchMemoriesText performs a substring (LIKE) search over content,
// the text half of the hybrid retrieval contract.
func (s *Store) SearchMemoriesText(ctx context.Context, query string, filter MemoryFilter) ([]*MemoryRecord, error) {
	sqlQuery := `SELECT id, content, type, tags, workflow_id, metadata, created_at FROM memories WHERE content LIKE ?`
	args := []any{"%" + query + "%"}
	if filter.Type != "" {
		sqlQuery += ` AND type=?`
		args = append(args, filter.Type)
	}
	if filter.WorkflowID != "" {
		sqlQuery += ` AND workflow_id=?`
		args = append(args, filter.WorkflowID)
	}
	sqlQuery += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	sqlQuery += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("persistence: search memories: %w", err)
	}
	defer rows.Close()

	var out []*MemoryRecord
	for rows.Next() {
		var m MemoryRecord
		var tagsJSON, metadataJSON, createdAt string
		if err := rows.Scan(&m.ID, &m.Content, &m.Type, &tagsJSON, &m.WorkflowID, &metadataJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal tags: %w", err)
		}
		if err := json.Unmarshal([]byte(metadataJSON), &m.Metadata); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal metadata: %w", err)
		}
		if m.CreatedAt, err = parseISO(createdAt); err != nil {
			return nil, fmt.Errorf("persistence: parse memory created_at: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// GetMemory fetches a single memory record by ID.
func (s *Store) GetMemory(ctx context.Context, id string) (*MemoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, type, tags, workflow_id, metadata, created_at FROM memories WHERE id=?`, id)
	var m MemoryRecord
	var tagsJSON, metadataJSON, createdAt string
	if err := row.Scan(&m.ID, &m.Content, &m.Type, &tagsJSON, &m.WorkflowID, &metadataJSON, &createdAt); err != nil {
		return nil, fmt.Errorf("persistence: get memory %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &m.Metadata); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal metadata: %w", err)
	}
	var err error
	if m.CreatedAt, err = parseISO(createdAt); err != nil {
		return nil, fmt.Errorf("persistence: parse memory created_at: %w", err)
	}
	return &m, nil
}
