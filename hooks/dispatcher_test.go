package hooks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/scope"
	"github.com/ironleaf/conductor/workspace"
)

type noopMemory struct{}

func (noopMemory) Store(context.Context, memory.StoreInput) (*memory.StoreResult, error) {
	return &memory.StoreResult{Status: "stored", ID: "x"}, nil
}

func (noopMemory) Retrieve(context.Context, memory.RetrieveInput) (*memory.RetrieveResult, error) {
	return &memory.RetrieveResult{}, nil
}

type noopWorkspace struct{}

func (noopWorkspace) Create(workspace.CreateRequest) (*workspace.CreateResult, error) {
	return &workspace.CreateResult{Status: "created"}, nil
}

func (noopWorkspace) Cleanup(string, bool) (*workspace.CleanupResult, error) {
	return &workspace.CleanupResult{Status: "cleaned"}, nil
}

func newTestDispatcherEngine(t *testing.T) *engine.Engine {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "conductor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return engine.New(store, noopMemory{}, noopWorkspace{}, scope.NewController())
}

func TestDispatcherHandleImplementationCompleteLaunchesManager(t *testing.T) {
	eng := newTestDispatcherEngine(t)
	ctx := context.Background()

	launch, err := eng.LaunchAgent(ctx, engine.LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "fix the specific bounded deliverable",
	})
	require.NoError(t, err)

	d := New(eng)
	err = d.Handle(ctx, Event{
		Marker:         MarkerImplementationComplete,
		WorkflowID:     launch.WorkflowID,
		FromAgent:      "backend-developer-associate",
		Specifications: "review the specific bounded deliverable",
	})
	require.NoError(t, err)

	status, err := eng.GetWorkflowStatus(ctx, launch.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusAwaitingApproval, status.Workflow.Status)

	pending := eng.GetPendingTasks("backend-developer-manager")
	assert.Len(t, pending, 1)

	handoffs, err := eng.GetWorkflowHandoffs(ctx, launch.WorkflowID, true)
	require.NoError(t, err)
	require.Len(t, handoffs, 1)
	assert.Equal(t, persistence.HandoffReviewRequest, handoffs[0].Type)
	assert.Equal(t, "backend-developer-manager", handoffs[0].ToAgent)
}

func TestDispatcherHandleApprovedForIntegrationSchedulesCleanupWithoutLaunch(t *testing.T) {
	eng := newTestDispatcherEngine(t)
	ctx := context.Background()

	launch, err := eng.LaunchAgent(ctx, engine.LaunchRequest{
		AgentType:      "tech-lead-manager",
		Specifications: "review the specific bounded deliverable",
	})
	require.NoError(t, err)

	d := New(eng)
	err = d.Handle(ctx, Event{
		Marker:     MarkerApprovedForIntegration,
		WorkflowID: launch.WorkflowID,
		FromAgent:  "tech-lead-manager",
	})
	require.NoError(t, err)

	status, err := eng.GetWorkflowStatus(ctx, launch.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusApproved, status.Workflow.Status)

	assert.Empty(t, eng.GetPendingTasks("tech-lead-associate"))
}

func TestDispatcherHandleReviewRequiredRoutesBackToAssociate(t *testing.T) {
	eng := newTestDispatcherEngine(t)
	ctx := context.Background()

	launch, err := eng.LaunchAgent(ctx, engine.LaunchRequest{
		AgentType:      "tech-lead-manager",
		Specifications: "review the specific bounded deliverable",
	})
	require.NoError(t, err)

	d := New(eng)
	err = d.Handle(ctx, Event{
		Marker:         MarkerReviewRequired,
		WorkflowID:     launch.WorkflowID,
		FromAgent:      "tech-lead-manager",
		Specifications: "address the review comments",
	})
	require.NoError(t, err)

	status, err := eng.GetWorkflowStatus(ctx, launch.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, persistence.StatusRevisionRequired, status.Workflow.Status)

	pending := eng.GetPendingTasks("tech-lead-associate")
	assert.Len(t, pending, 1)
}
