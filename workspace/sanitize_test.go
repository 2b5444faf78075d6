package workspace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeAgentID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain id unchanged", "backend-developer-associate-wf1", "backend-developer-associate-wf1"},
		{"illegal chars become underscores", "agent/../../etc", "agent_.._.._etc"},
		{"leading dots stripped", "...hidden-agent", "hidden-agent"},
		{"surrounding whitespace trimmed", "  agent-1  ", "agent-1"},
		{"slashes cannot survive", "a/b/c", "a_b_c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeAgentID(tt.input)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "/")
			assert.False(t, strings.HasPrefix(got, "."))
		})
	}
}

func TestSanitizeAgentIDTruncatesToMaxLength(t *testing.T) {
	input := strings.Repeat("a", maxLeafLength+50)
	got := SanitizeAgentID(input)
	assert.Len(t, got, maxLeafLength)
}

func TestSanitizeAgentIDAllDotsSanitizesToEmpty(t *testing.T) {
	assert.Equal(t, "", SanitizeAgentID("..."))
	assert.Equal(t, "", SanitizeAgentID("   "))
}
