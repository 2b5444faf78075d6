package workspace

import (
	"regexp"
	"strings"
)

var illegalLeafChar = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// maxLeafLength bounds a sanitized agent id, keeping worktree leaf names
// invariant 3.
const maxLeafLength = 100

// SanitizeAgentID turns agentID into a filesystem-safe worktree leaf:
// characters outside [A-Za-z0-9._-] become underscores, leading dots are
// stripped (so the result can never be treated as a hidden file or a "."/
// ".." traversal component), the result is truncated to 100 chars and
// trimmed of surrounding whitespace.
//
// This sanitizes agent ids rather than branch names, so it is not a reuse of
// it: branch names tolerate '/' and are case-folded, worktree leaves must
// not contain '/' at all and case carries meaning for per-agent identity.
func SanitizeAgentID(agentID string) string {
	s := strings.TrimSpace(agentID)
	s = illegalLeafChar.ReplaceAllString(s, "_")
	s = strings.TrimLeft(s, ".")
	if len(s) > maxLeafLength {
		s = s[:maxLeafLength]
	}
	return strings.TrimSpace(s)
}
