package engine

import (
	"time"

	"github.com/ironleaf/conductor/scope"
)

// PendingTask is one queued launch-agent request awaiting a runner poll.
// The queue is in-memory and non-durable: a restart drops it, and nothing
// rebuilds it from the persisted workflow rows on startup.
type PendingTask struct {
	TaskID           string
	WorkflowID       string
	AgentType        string
	AgentRole        string
	Prompt           string
	ScopeConstraints scope.Constraints
	CreatedAt        time.Time
}

// GetPendingTasks returns queued tasks, optionally filtered to one
// agent type, oldest first.
func (e *Engine) GetPendingTasks(agentType string) []*PendingTask {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	if agentType == "" {
		out := make([]*PendingTask, len(e.pending))
		copy(out, e.pending)
		return out
	}
	var out []*PendingTask
	for _, t := range e.pending {
		if t.AgentType == agentType {
			out = append(out, t)
		}
	}
	return out
}

// dequeueForWorkflow removes and returns the first queued task for
// workflowID, or nil if none is queued. Used by signalCompletion.
func (e *Engine) dequeueForWorkflow(workflowID string) *PendingTask {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	for i, t := range e.pending {
		if t.WorkflowID == workflowID {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return t
		}
	}
	return nil
}

func (e *Engine) enqueue(t *PendingTask) {
	e.pendingMu.Lock()
	e.pending = append(e.pending, t)
	e.pendingMu.Unlock()
}

func (e *Engine) pendingCount() int {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	return len(e.pending)
}
