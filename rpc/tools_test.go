package rpc

import (
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"testing"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/scope"
	"github.com/ironleaf/conductor/workspace"
)

// resultText extracts the sole text content of a successful tool result.
func resultText(t *testing.T, result *gomcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := gomcp.AsTextContent(result.Content[0])
	require.True(t, ok, "result content[0] is not TextContent: %T", result.Content[0])
	return tc.Text
}

func setupTestRepo(t *testing.T) string {
	t.Helper()
	repoPath := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoPath
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")
	run("commit", "--allow-empty", "-m", "initial commit")
	return repoPath
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "conductor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mem, err := memory.New(store, t.TempDir())
	require.NoError(t, err)

	ws, err := workspace.NewManager(setupTestRepo(t), t.TempDir())
	require.NoError(t, err)

	eng := engine.New(store, mem, ws, scope.NewController())
	return New(eng, ws, mem, store)
}

func argsRequest(args map[string]any) gomcp.CallToolRequest {
	req := gomcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestHandleLaunchAgentQueuesTask(t *testing.T) {
	s := newTestServer(t)
	handler := s.handleLaunchAgent()

	result, err := handler(context.Background(), argsRequest(map[string]any{
		"agent_type":     "backend-developer-associate",
		"specifications": "fix the specific bounded deliverable",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var decoded engine.LaunchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	assert.Equal(t, "queued", decoded.Status)
}

func TestHandleLaunchAgentMissingRequiredParam(t *testing.T) {
	s := newTestServer(t)
	handler := s.handleLaunchAgent()

	result, err := handler(context.Background(), argsRequest(map[string]any{
		"specifications": "fix the specific bounded deliverable",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "TOOL_EXECUTION_ERROR")
}

func TestHandleGetPendingTasksFiltersByAgentType(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleLaunchAgent()(context.Background(), argsRequest(map[string]any{
		"agent_type":     "backend-developer-associate",
		"specifications": "fix the specific bounded deliverable",
	}))
	require.NoError(t, err)

	result, err := s.handleGetPendingTasks()(context.Background(), argsRequest(map[string]any{
		"agent_type": "tech-lead-manager",
	}))
	require.NoError(t, err)
	assert.Equal(t, "null", resultText(t, result), "GetPendingTasks returns a nil slice when nothing matches the filter")
}

func TestHandleSignalCompletionRecoversWorkflowID(t *testing.T) {
	s := newTestServer(t)
	launchResult, err := s.handleLaunchAgent()(context.Background(), argsRequest(map[string]any{
		"agent_type":     "backend-developer-associate",
		"specifications": "fix the specific bounded deliverable",
	}))
	require.NoError(t, err)
	var launch engine.LaunchResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, launchResult)), &launch))

	result, err := s.handleSignalCompletion()(context.Background(), argsRequest(map[string]any{
		"agent_id": launch.TaskID,
		"result":   "ok",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var decoded engine.SignalCompletionResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	assert.Equal(t, persistence.StatusCompleted, decoded.Status)
}

func TestHandleCreateAndCleanupWorkspace(t *testing.T) {
	s := newTestServer(t)

	createResult, err := s.handleCreateWorkspace()(context.Background(), argsRequest(map[string]any{
		"agent_id": "agent-1",
	}))
	require.NoError(t, err)
	require.False(t, createResult.IsError)

	var created workspace.CreateResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, createResult)), &created))
	assert.Equal(t, "created", created.Status)

	cleanupResult, err := s.handleCleanupWorkspace()(context.Background(), argsRequest(map[string]any{
		"agent_id": "agent-1",
	}))
	require.NoError(t, err)
	require.False(t, cleanupResult.IsError)

	var cleaned workspace.CleanupResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, cleanupResult)), &cleaned))
	assert.Equal(t, "cleaned", cleaned.Status)
}

func TestHandleGetSystemStatusMergesEngineAndWorkspaceStats(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleGetSystemStatus()(context.Background(), argsRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	assert.Contains(t, decoded, "workflows_by_status")
	assert.Contains(t, decoded, "pending_task_count")
	assert.Contains(t, decoded, "workspace_stats")
}

func TestTrackRecordsToolUsageAndGetSystemStatusSurfacesCounts(t *testing.T) {
	s := newTestServer(t)

	tracked := s.track("launch_agent", s.handleLaunchAgent())
	_, err := tracked(context.Background(), argsRequest(map[string]any{
		"agent_type":     "backend-developer-associate",
		"specifications": "fix the specific bounded deliverable",
	}))
	require.NoError(t, err)
	_, err = tracked(context.Background(), argsRequest(map[string]any{
		"agent_type":     "backend-developer-associate",
		"specifications": "fix another specific bounded deliverable",
	}))
	require.NoError(t, err)

	result, err := s.handleGetSystemStatus()(context.Background(), argsRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	require.Contains(t, decoded, "tool_usage_counts")
	counts, ok := decoded["tool_usage_counts"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), counts["launch_agent"])
}

func TestTrackIsPassthroughWhenPersistIsNil(t *testing.T) {
	s := newTestServer(t)
	s.persist = nil

	tracked := s.track("launch_agent", s.handleLaunchAgent())
	result, err := tracked(context.Background(), argsRequest(map[string]any{
		"agent_type":     "backend-developer-associate",
		"specifications": "fix the specific bounded deliverable",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandleGetWorkflowStatusUnknownWorkflowIsError(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleGetWorkflowStatus()(context.Background(), argsRequest(map[string]any{
		"workflow_id": "does-not-exist",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListWorkflowsClampsLimit(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleListWorkflows()(context.Background(), argsRequest(map[string]any{
		"limit": float64(100000),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandleDetectAndCleanupStaleWorkflowsDefaultParams(t *testing.T) {
	s := newTestServer(t)

	detectResult, err := s.handleDetectStaleWorkflows()(context.Background(), argsRequest(nil))
	require.NoError(t, err)
	require.False(t, detectResult.IsError)

	var detected map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, detectResult)), &detected))
	assert.Contains(t, detected, "marked_stale")

	cleanupResult, err := s.handleCleanupStaleWorkflows()(context.Background(), argsRequest(nil))
	require.NoError(t, err)
	require.False(t, cleanupResult.IsError)

	var cleaned map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, cleanupResult)), &cleaned))
	assert.Contains(t, cleaned, "deleted")
}

func TestIntParamFallsBackToDefault(t *testing.T) {
	req := argsRequest(map[string]any{"threshold_minutes": "not-a-number"})
	assert.Equal(t, 30, intParam(req, "threshold_minutes", 30))
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, 1, clampInt(-5, 1, 500))
	assert.Equal(t, 500, clampInt(10000, 1, 500))
	assert.Equal(t, 50, clampInt(50, 1, 500))
}
