package engine

import "strings"

// managerPromptTemplate and associatePromptTemplate give launched agents a
// role-appropriate framing around their scoped specification. Managers are
// told to delegate and review; associates are told to implement and hand
// back. Both are followed by the scope-constraints banner scope.
// GenerateScopedSpecifications appends.
const managerPromptTemplate = `You are the manager for workflow %s.

Break the specification below into bounded units of work, delegate each to
an associate, and review their output against the completion criteria.
Do not implement application code yourself beyond what is needed to
delegate and review.

%s`

const associatePromptTemplate = `You are an associate implementing workflow %s.

Implement exactly what the specification below describes, mark
"Implementation Complete" when done, and request review. Do not expand
scope beyond what is written.

%s`

// composePrompt builds the final prompt an agent receives: a role-specific
// framing wrapped around the scoped specification.
func composePrompt(workflowID, agentRole, scopedSpec string) string {
	template := associatePromptTemplate
	if agentRole == "manager" {
		template = managerPromptTemplate
	}
	out := strings.Replace(template, "%s", workflowID, 1)
	out = strings.Replace(out, "%s", scopedSpec, 1)
	return out
}
