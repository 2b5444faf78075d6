package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposePromptManagerFraming(t *testing.T) {
	out := composePrompt("wf-1", "manager", "scoped spec text")
	assert.Contains(t, out, "manager for workflow wf-1")
	assert.Contains(t, out, "scoped spec text")
	assert.Contains(t, out, "Do not implement application code yourself")
}

func TestComposePromptAssociateFraming(t *testing.T) {
	out := composePrompt("wf-1", "associate", "scoped spec text")
	assert.Contains(t, out, "associate implementing workflow wf-1")
	assert.Contains(t, out, "scoped spec text")
	assert.Contains(t, out, `"Implementation Complete"`)
}

func TestComposePromptDefaultsToAssociateForUnknownRole(t *testing.T) {
	out := composePrompt("wf-1", "specialist", "scoped spec text")
	assert.Contains(t, out, "associate implementing workflow wf-1")
}
