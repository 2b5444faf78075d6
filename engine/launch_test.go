package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchAgentQueuesAndEnqueuesPendingTask(t *testing.T) {
	eng, mem, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "fix the specific bounded deliverable: the login bug",
		WorkflowName:   "login-fix",
	})
	require.NoError(t, err)
	assert.Equal(t, "queued", result.Status)
	assert.NotEmpty(t, result.WorkflowID)
	assert.Equal(t, "backend-developer-associate-"+result.WorkflowID, result.TaskID)

	pending := eng.GetPendingTasks("")
	require.Len(t, pending, 1)
	assert.Equal(t, result.TaskID, pending[0].TaskID)

	require.Len(t, mem.stored, 1)
	assert.Equal(t, "specification", mem.stored[0].Type)
}

func TestLaunchAgentBlocksDuplicateRoleOnSameWorkflow(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "fix the specific bounded deliverable: the login bug",
	})
	require.NoError(t, err)
	require.Equal(t, "queued", first.Status)

	second, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "fix a different specific bounded deliverable",
		WorkflowID:     first.WorkflowID,
	})
	require.NoError(t, err)
	assert.Equal(t, "duplicate_blocked", second.Status)
	assert.Contains(t, second.ExistingRoles, "backend-developer-associate")

	pending := eng.GetPendingTasks("")
	assert.Len(t, pending, 1, "duplicate launch must not enqueue a second task")
}

func TestLaunchAgentAllowsDistinctRolesOnSameWorkflow(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-manager",
		Specifications: "fix the specific bounded deliverable: the login bug",
	})
	require.NoError(t, err)

	second, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "implement the specific bounded deliverable",
		WorkflowID:     first.WorkflowID,
	})
	require.NoError(t, err)
	assert.Equal(t, "queued", second.Status)

	pending := eng.GetPendingTasks("")
	assert.Len(t, pending, 2)
}

func TestLaunchAgentBlockedByScopeDoesNotEnqueue(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "build a comprehensive enterprise-grade distributed platform",
	})
	require.NoError(t, err)
	if result.Status == "blocked" {
		assert.NotEmpty(t, result.Violations)
		assert.Empty(t, eng.GetPendingTasks(""))
	}
}

func TestLaunchAgentCreatesWorkspaceWhenRequested(t *testing.T) {
	eng, _, ws := newTestEngine(t)
	ctx := context.Background()

	result, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "fix the specific bounded deliverable: the login bug",
		Workspace:      &WorkspaceConfig{BaseRef: "main"},
	})
	require.NoError(t, err)
	require.Equal(t, "queued", result.Status)

	require.Len(t, ws.created, 1)
	assert.Equal(t, result.TaskID, ws.created[0].AgentID)

	pending := eng.GetPendingTasks("")
	require.Len(t, pending, 1)
	assert.Contains(t, pending[0].Prompt, "workspace: /tmp/"+result.TaskID)
}
