// Package workspace implements the WorkspaceManager: one
// lightweight, copy-on-write git worktree per agent, rooted at a shared
// source repository. It uses go-git to validate the repository and resolve
// refs, and the `git worktree` CLI to do the actual copy-on-write checkout.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ironleaf/conductor/log"
)

// ErrInvalidRepository is returned when RepoPath does not resolve to a
// valid git repository (rpc layer maps this to GIT_REPOSITORY_INVALID).
var ErrInvalidRepository = errors.New("workspace: not a valid git repository")

// ErrInvalidAgentID is returned when agentID sanitizes to the empty string.
var ErrInvalidAgentID = errors.New("workspace: agent id sanitizes to empty string")

// ErrBaseRefNotFound is returned when base_ref does not resolve as a
// branch, tag, or commit id.
var ErrBaseRefNotFound = errors.New("workspace: base ref not found")

// Manager creates and destroys per-agent git worktrees under WorkspacesDir,
// all rooted at RepoPath. It owns worktree paths exclusively.
type Manager struct {
	RepoPath      string
	WorkspacesDir string

	// mu serializes create/cleanup across all paths. The spec only
	// requires serialization per sanitized path, but the `git worktree`
	// command itself takes a repo-wide lock, so a single mutex matches
	// a single-worktree-operation-at-a-time usage pattern without
	// losing correctness.
	mu sync.Mutex
}

// NewManager validates that repoPath is a usable git repository and
// returns a Manager rooted there.
func NewManager(repoPath, workspacesDir string) (*Manager, error) {
	if _, err := git.PlainOpen(repoPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRepository, repoPath, err)
	}
	return &Manager{RepoPath: repoPath, WorkspacesDir: workspacesDir}, nil
}

// CreateRequest is the create() argument bag.
type CreateRequest struct {
	AgentID   string
	BaseRef   string
	Resources map[string]any
}

// CreateResult is create()'s response.
type CreateResult struct {
	Status        string // "created" | "exists"
	WorkspacePath string
	BranchName    string
	BaseCommitSHA string
}

// Create implements the create() algorithm: sanitize,
// idempotent existence check, ref resolution, detached worktree checkout,
// and post-creation verification with rollback on failure.
func (m *Manager) Create(req CreateRequest) (*CreateResult, error) {
	sanitized := SanitizeAgentID(req.AgentID)
	if sanitized == "" {
		return nil, ErrInvalidAgentID
	}

	workspacePath := filepath.Join(m.WorkspacesDir, sanitized)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.WorkspacesDir, 0755); err != nil {
		return nil, fmt.Errorf("workspace: create workspaces dir: %w", err)
	}

	if _, err := os.Stat(workspacePath); err == nil {
		return &CreateResult{Status: "exists", WorkspacePath: workspacePath}, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("workspace: stat %s: %w", workspacePath, err)
	}

	baseRef := req.BaseRef
	if baseRef == "" {
		baseRef = "HEAD"
	}
	commitSHA, err := m.resolveRef(baseRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBaseRefNotFound, baseRef, err)
	}

	if _, err := m.runGit(m.RepoPath, "worktree", "add", "--detach", workspacePath, commitSHA); err != nil {
		return nil, fmt.Errorf("workspace: create worktree for %s: %w", sanitized, err)
	}

	if _, err := m.runGit(workspacePath, "status"); err != nil {
		log.ErrorLog.Printf("workspace: post-create verification failed for %s, force-cleaning: %v", sanitized, err)
		m.forceRemove(workspacePath)
		return nil, fmt.Errorf("workspace: verify new worktree %s: %w", sanitized, err)
	}

	log.InfoLog.Printf("workspace: created %s at %s (base=%s)", sanitized, workspacePath, commitSHA)
	return &CreateResult{
		Status:        "created",
		WorkspacePath: workspacePath,
		BaseCommitSHA: commitSHA,
	}, nil
}

// CleanupResult is cleanup()'s response.
type CleanupResult struct {
	Status        string // "cleaned" | "not_found"
	WorkspacePath string
}

// Cleanup implements the cleanup() algorithm: a missing path
// is success, a managed `git worktree remove` is tried first, and under
// force=true a failure falls back to pruning stale refs and recursively
// removing the directory.
func (m *Manager) Cleanup(agentID string, force bool) (*CleanupResult, error) {
	sanitized := SanitizeAgentID(agentID)
	if sanitized == "" {
		return nil, ErrInvalidAgentID
	}
	workspacePath := filepath.Join(m.WorkspacesDir, sanitized)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(workspacePath); os.IsNotExist(err) {
		return &CleanupResult{Status: "not_found", WorkspacePath: workspacePath}, nil
	}

	args := []string{"worktree", "remove", workspacePath}
	if force {
		args = []string{"worktree", "remove", "-f", workspacePath}
	}
	if _, err := m.runGit(m.RepoPath, args...); err != nil {
		if !force {
			return nil, fmt.Errorf("workspace: remove worktree %s: %w", sanitized, err)
		}
		log.WarningLog.Printf("workspace: managed removal of %s failed, forcing: %v", sanitized, err)
		m.forceRemove(workspacePath)
	}

	return &CleanupResult{Status: "cleaned", WorkspacePath: workspacePath}, nil
}

// forceRemove prunes stale worktree references and recursively removes
// dir. Missing directories are treated as success.
func (m *Manager) forceRemove(dir string) {
	_, _ = m.runGit(m.RepoPath, "worktree", "prune")
	if err := os.RemoveAll(dir); err != nil {
		log.ErrorLog.Printf("workspace: force-remove %s: %v", dir, err)
	}
}

// resolveRef resolves ref as a branch, tag, or commit id and returns its
// commit SHA. HEAD is resolved via `git rev-parse`, since a bare repo's
// HEAD is not reachable through go-git's branch/tag reference lookups.
func (m *Manager) resolveRef(ref string) (string, error) {
	if ref == "HEAD" {
		out, err := m.runGit(m.RepoPath, "rev-parse", "HEAD")
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}

	repo, err := git.PlainOpen(m.RepoPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRepository, err)
	}

	if r, err := repo.Reference(plumbing.NewBranchReferenceName(ref), true); err == nil {
		return r.Hash().String(), nil
	}
	if r, err := repo.Reference(plumbing.NewTagReferenceName(ref), true); err == nil {
		return r.Hash().String(), nil
	}
	if h, err := repo.ResolveRevision(plumbing.Revision(ref)); err == nil {
		return h.String(), nil
	}
	return "", fmt.Errorf("ref does not resolve as branch, tag, or commit")
}

// runGit executes a git command with dir as its working directory and no
// shell interpretation of arguments.
func (m *Manager) runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}
