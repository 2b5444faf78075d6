// Package engine implements the orchestration engine: the workflow/handoff
// state machine, the pending-task queue, and the event processor,
// scheduled-cleanup, and staleness sweeps. It owns the workflow, handoff,
// and pending-task state exclusively.
//
// The engine holds references to persistence, memory, workspace, and scope
// collaborators — never the reverse — keeping the dependency graph acyclic.
// State is mutated under short critical sections and events are emitted
// after unlocking, so no lock is held across an emit. roleMu is the one
// lock held across persistence I/O: it covers the workflow-row read and
// upsert so that the duplicate-role check and the role insert are atomic.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironleaf/conductor/log"
	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/scope"
	"github.com/ironleaf/conductor/workspace"
)

// MemoryStore is the subset of memory.Store the engine consumes. Defining
// it as an interface here (rather than importing the concrete type
// everywhere) keeps the engine testable against a fake.
type MemoryStore interface {
	Store(ctx context.Context, in memory.StoreInput) (*memory.StoreResult, error)
	Retrieve(ctx context.Context, in memory.RetrieveInput) (*memory.RetrieveResult, error)
}

// WorkspaceManager is the subset of workspace.Manager the engine consumes.
type WorkspaceManager interface {
	Create(req workspace.CreateRequest) (*workspace.CreateResult, error)
	Cleanup(agentID string, force bool) (*workspace.CleanupResult, error)
}

// DefaultCleanupDelay is the canonical "Approved for Integration" cleanup
// delay: long enough to let a reviewer pull the branch before the
// workspace is reclaimed.
const DefaultCleanupDelay = 15 * time.Minute

// Engine is the OrchestrationEngine. It is safe for concurrent use.
type Engine struct {
	store *persistence.Store
	mem   MemoryStore
	ws    WorkspaceManager
	scope *scope.Controller
	Events *EventBus

	// pendingMu guards pending, the in-memory, non-durable queue of
	// launch-agent tasks awaiting a runner poll.
	pendingMu sync.Mutex
	pending   []*PendingTask

	// roleMu serializes the duplicate-role check-then-insert against the
	// workflows table so two concurrent launches for the same workflow
	// and role can never both be admitted.
	roleMu sync.Mutex
}

// New constructs an Engine over its four collaborators.
func New(store *persistence.Store, mem MemoryStore, ws WorkspaceManager, scopeCtrl *scope.Controller) *Engine {
	return &Engine{
		store:  store,
		mem:    mem,
		ws:     ws,
		scope:  scopeCtrl,
		Events: NewEventBus(1000),
	}
}

func newID() string { return uuid.NewString() }

func deriveAgentRole(agentType string) string {
	lower := agentType
	switch {
	case contains(lower, "manager") || contains(lower, "lead"):
		return "manager"
	case contains(lower, "associate"):
		return "associate"
	default:
		return "specialist"
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

// equalFold is a tiny ASCII case-insensitive compare, avoiding a strings
// import just for this one helper used by deriveAgentRole's scan.
func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// logError is a tiny helper so call sites read as one line instead of a
// three-line if-err-log block for the many "this failure is logged, never
// raised" spots the completion and cleanup paths call for.
func logError(prefix string, err error) {
	if err != nil {
		log.ErrorLog.Printf("%s: %v", prefix, err)
	}
}
