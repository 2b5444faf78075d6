package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessScheduledCleanupsReclaimsDueWorkspaces(t *testing.T) {
	eng, _, ws := newTestEngine(t)
	ctx := context.Background()

	launch, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "fix the specific bounded deliverable",
	})
	require.NoError(t, err)

	require.NoError(t, eng.ScheduleWorkspaceCleanup(ctx, launch.WorkflowID, -time.Minute))

	n, err := eng.ProcessScheduledCleanups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, ws.cleaned, 1)
	assert.Equal(t, launch.TaskID, ws.cleaned[0])
}

func TestProcessScheduledCleanupsSkipsNotYetDue(t *testing.T) {
	eng, _, ws := newTestEngine(t)
	ctx := context.Background()

	launch, err := eng.LaunchAgent(ctx, LaunchRequest{
		AgentType:      "backend-developer-associate",
		Specifications: "fix the specific bounded deliverable",
	})
	require.NoError(t, err)

	require.NoError(t, eng.ScheduleWorkspaceCleanup(ctx, launch.WorkflowID, time.Hour))

	n, err := eng.ProcessScheduledCleanups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, ws.cleaned)
}
