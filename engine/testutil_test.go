package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/scope"
	"github.com/ironleaf/conductor/workspace"
)

// fakeMemory is a minimal in-memory stand-in for MemoryStore, recording
// every Store call for assertions without touching a real vector index.
type fakeMemory struct {
	mu      sync.Mutex
	stored  []memory.StoreInput
	failNext bool
}

func (f *fakeMemory) Store(_ context.Context, in memory.StoreInput) (*memory.StoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, assertError("fakeMemory: forced store failure")
	}
	f.stored = append(f.stored, in)
	return &memory.StoreResult{Status: "stored", ID: "fake-id"}, nil
}

func (f *fakeMemory) Retrieve(_ context.Context, _ memory.RetrieveInput) (*memory.RetrieveResult, error) {
	return &memory.RetrieveResult{}, nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

// fakeWorkspace is a minimal in-memory stand-in for WorkspaceManager.
type fakeWorkspace struct {
	mu        sync.Mutex
	created   []workspace.CreateRequest
	cleaned   []string
	failCreate bool
}

func (f *fakeWorkspace) Create(req workspace.CreateRequest) (*workspace.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, assertError("fakeWorkspace: forced create failure")
	}
	f.created = append(f.created, req)
	return &workspace.CreateResult{Status: "created", WorkspacePath: "/tmp/" + req.AgentID}, nil
}

func (f *fakeWorkspace) Cleanup(agentID string, _ bool) (*workspace.CleanupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, agentID)
	return &workspace.CleanupResult{Status: "cleaned"}, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeMemory, *fakeWorkspace) {
	t.Helper()
	store, err := persistence.Open(filepath.Join(t.TempDir(), "conductor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mem := &fakeMemory{}
	ws := &fakeWorkspace{}
	eng := New(store, mem, ws, scope.NewController())
	return eng, mem, ws
}
