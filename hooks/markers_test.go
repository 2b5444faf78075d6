package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMarkerReturnsLastOccurring(t *testing.T) {
	transcript := "Task Assignment\n...\nImplementation Complete\n...\nReview Required"
	marker, found := DetectMarker(transcript)
	assert.True(t, found)
	assert.Equal(t, MarkerReviewRequired, marker)
}

func TestDetectMarkerNoneFound(t *testing.T) {
	_, found := DetectMarker("nothing interesting here")
	assert.False(t, found)
}

func TestDetectMarkerSingleOccurrence(t *testing.T) {
	marker, found := DetectMarker("build done.\nApproved for Integration\n")
	assert.True(t, found)
	assert.Equal(t, MarkerApprovedForIntegration, marker)
}

func TestSwapRoleManagerToAssociate(t *testing.T) {
	assert.Equal(t, "backend-developer-associate", swapRole("backend-developer-manager"))
}

func TestSwapRoleAssociateToManager(t *testing.T) {
	assert.Equal(t, "tech-lead-manager", swapRole("tech-lead-associate"))
}

func TestSwapRoleLeavesUnsuffixedUnchanged(t *testing.T) {
	assert.Equal(t, "product-owner", swapRole("product-owner"))
}
