package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashEmbedIsUnitLength(t *testing.T) {
	vec := hashEmbed("launch the backend developer agent")

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
	assert.Len(t, vec, embedDimensions)
}

func TestHashEmbedIsDeterministic(t *testing.T) {
	a := hashEmbed("fix the login bug")
	b := hashEmbed("fix the login bug")
	assert.Equal(t, a, b)
}

func TestHashEmbedEmptyTextIsZeroVector(t *testing.T) {
	vec := hashEmbed("")
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}
}

func TestHashEmbedDiffersForDifferentText(t *testing.T) {
	a := hashEmbed("launch backend developer")
	b := hashEmbed("cleanup stale workflows")
	assert.NotEqual(t, a, b)
}
