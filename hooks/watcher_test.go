package hooks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/runner"
)

func TestWatcherDispatchesMarkerOnceWhileTaskKeepsRunning(t *testing.T) {
	eng := newTestDispatcherEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	launch, err := eng.LaunchAgent(ctx, engine.LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "fix the specific bounded deliverable",
	})
	require.NoError(t, err)

	r := runner.New(eng, runner.Config{
		WorkerCommand: "/bin/sh",
		WorkerArgs:    []string{"-c", "echo Implementation Complete; sleep 0.6"},
		PollInterval:  20 * time.Millisecond,
		ScratchDir:    t.TempDir(),
	})
	r.Start(ctx)
	defer r.Shutdown()

	disp := New(eng)
	w := NewWatcher(eng, disp, r)
	w.Start(ctx, 20*time.Millisecond)
	defer w.Stop()

	require.Eventually(t, func() bool {
		status, err := eng.GetWorkflowStatus(ctx, launch.WorkflowID)
		return err == nil && status.Workflow.Status == persistence.StatusAwaitingApproval
	}, 2*time.Second, 10*time.Millisecond)

	// Give the watcher several more ticks while the worker is still
	// running and the marker still present in its transcript.
	time.Sleep(200 * time.Millisecond)

	handoffs, err := eng.GetWorkflowHandoffs(ctx, launch.WorkflowID, true)
	require.NoError(t, err)
	// The manager launched by the first dispatch runs the same worker
	// script and emits a marker of its own; only the associate's handoffs
	// are counted here.
	fromAssociate := 0
	for _, h := range handoffs {
		if h.FromAgent == "backend-developer-associate" {
			fromAssociate++
		}
	}
	assert.Equal(t, 1, fromAssociate, "the same marker must not be dispatched twice for a still-running task")
}
