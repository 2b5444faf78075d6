package hooks

import "strings"

// Marker is one of the four literal transcript markers the dispatcher
// recognizes.
type Marker string

const (
	MarkerTaskAssignment         Marker = "Task Assignment"
	MarkerImplementationComplete Marker = "Implementation Complete"
	MarkerReviewRequired         Marker = "Review Required"
	MarkerApprovedForIntegration Marker = "Approved for Integration"
)

var markerOrder = []Marker{
	MarkerTaskAssignment,
	MarkerImplementationComplete,
	MarkerReviewRequired,
	MarkerApprovedForIntegration,
}

// DetectMarker returns the last recognized marker appearing in transcript,
// or ("", false) if none is present. "Last" matters because a transcript
// accumulates over a worker's whole run; only the most recent marker
// reflects its current state.
func DetectMarker(transcript string) (Marker, bool) {
	var found Marker
	bestIdx := -1
	for _, m := range markerOrder {
		if idx := strings.LastIndex(transcript, string(m)); idx > bestIdx {
			bestIdx = idx
			found = m
		}
	}
	if bestIdx < 0 {
		return "", false
	}
	return found, true
}

// swapRole flips the trailing "-manager"/"-associate" role suffix of
// agentType, deriving the counterpart role a handoff addresses. Agent
// types without either suffix are returned unchanged.
func swapRole(agentType string) string {
	switch {
	case strings.HasSuffix(agentType, "-manager"):
		return strings.TrimSuffix(agentType, "-manager") + "-associate"
	case strings.HasSuffix(agentType, "-associate"):
		return strings.TrimSuffix(agentType, "-associate") + "-manager"
	default:
		return agentType
	}
}
