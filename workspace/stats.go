package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// WorktreeInfo is one entry of `git worktree list --porcelain`, parsed for
// ListAll/GetStats.
type WorktreeInfo struct {
	Path       string
	Branch     string
	HeadCommit string
	Bare       bool
}

// ListAll parses `git worktree list --porcelain` into structured tuples.
func (m *Manager) ListAll() ([]WorktreeInfo, error) {
	out, err := m.runGit(m.RepoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

func parseWorktreeList(out string) []WorktreeInfo {
	var infos []WorktreeInfo
	var cur *WorktreeInfo
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur != nil {
				infos = append(infos, *cur)
			}
			cur = &WorktreeInfo{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			if cur != nil {
				cur.HeadCommit = strings.TrimPrefix(line, "HEAD ")
			}
		case strings.HasPrefix(line, "branch "):
			if cur != nil {
				cur.Branch = strings.TrimPrefix(line, "branch ")
			}
		case line == "bare":
			if cur != nil {
				cur.Bare = true
			}
		}
	}
	if cur != nil {
		infos = append(infos, *cur)
	}
	return infos
}

// Stats is GetStats()'s response.
type Stats struct {
	WorktreeCount int
	TotalBytes    int64
}

// GetStats counts local subdirectories of WorkspacesDir and sums their
// on-disk size.
func (m *Manager) GetStats() (*Stats, error) {
	entries, err := os.ReadDir(m.WorkspacesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Stats{}, nil
		}
		return nil, err
	}

	stats := &Stats{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		stats.WorktreeCount++
		size, err := dirSize(filepath.Join(m.WorkspacesDir, e.Name()))
		if err != nil {
			continue
		}
		stats.TotalBytes += size
	}
	return stats, nil
}

// dirSize recursively sums file sizes under root.
func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
