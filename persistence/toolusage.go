package persistence

import (
	"context"
	"fmt"
	"time"
)

// ToolUsageRow records a single RPC tool invocation, for usage accounting.
type ToolUsageRow struct {
	ID        string
	ToolName  string
	SessionID string
	Timestamp time.Time
}

// RecordToolUsage appends a tool_usage row. Failures here are non-fatal to
// the calling operation; callers log and continue.
func (s *Store) RecordToolUsage(ctx context.Context, id, toolName, sessionID string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_usage (id, tool_name, session_id, timestamp) VALUES (?, ?, ?, ?)
	`, id, toolName, sessionID, nowISO(ts))
	if err != nil {
		return fmt.Errorf("persistence: record tool usage %s: %w", toolName, err)
	}
	return nil
}

// ToolUsageCounts returns the number of invocations recorded per tool name.
func (s *Store) ToolUsageCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool_name, COUNT(*) FROM tool_usage GROUP BY tool_name`)
	if err != nil {
		return nil, fmt.Errorf("persistence: tool usage counts: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}
