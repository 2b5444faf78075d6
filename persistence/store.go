// Package persistence is the durable store backing the orchestrator: the
// workflows, handoffs, cleanup_schedule, tool_usage, and memories tables.
// It wraps database/sql over SQLite and exposes transactional single-row
// upserts and filtered scans; it owns no domain logic beyond that.
package persistence

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ironleaf/conductor/log"
)

// Store is the process-wide handle to the persistence database. It is safe
// for concurrent use from multiple goroutines; database/sql pools its own
// connections.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema idempotently. path's parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("persistence: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", path, err)
	}
	// SQLite allows only one writer at a time; serialize through a single
	// connection to avoid "database is locked" errors under concurrent
	// engine/runner access.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	log.InfoLog.Printf("persistence: opened %s", path)
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	status         TEXT NOT NULL,
	agent_type     TEXT NOT NULL,
	agent_role     TEXT NOT NULL,
	specifications TEXT NOT NULL,
	roles          TEXT NOT NULL DEFAULT '[]',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status);
CREATE INDEX IF NOT EXISTS idx_workflows_agent_type ON workflows(agent_type);

CREATE TABLE IF NOT EXISTS handoffs (
	id           TEXT PRIMARY KEY,
	from_agent   TEXT NOT NULL,
	to_agent     TEXT NOT NULL,
	workflow_id  TEXT NOT NULL,
	type         TEXT NOT NULL,
	task_details TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	processed    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_handoffs_workflow ON handoffs(workflow_id);
CREATE INDEX IF NOT EXISTS idx_handoffs_processed ON handoffs(processed);

CREATE TABLE IF NOT EXISTS memories (
	id          TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	type        TEXT NOT NULL,
	tags        TEXT NOT NULL DEFAULT '[]',
	workflow_id TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_workflow ON memories(workflow_id);
CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type);

CREATE TABLE IF NOT EXISTS cleanup_schedule (
	id            TEXT PRIMARY KEY,
	workflow_id   TEXT NOT NULL,
	scheduled_for TEXT NOT NULL,
	processed     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cleanup_due ON cleanup_schedule(processed, scheduled_for);

CREATE TABLE IF NOT EXISTS tool_usage (
	id         TEXT PRIMARY KEY,
	tool_name  TEXT NOT NULL,
	session_id TEXT NOT NULL,
	timestamp  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_usage_tool ON tool_usage(tool_name);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// nowISO formats t as the ISO-8601 UTC string the schema stores timestamps
// as.
func nowISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseISO(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
