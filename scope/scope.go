// Package scope is the orchestrator's admission and runtime guard against
// runaway agent work. It is pure in-memory state: no persistence, workspace,
// or memory-store imports, keeping the dependency graph acyclic.
package scope

import (
	"strings"
	"sync"
	"time"
)

// Complexity classifies a task's estimated scope.
type Complexity string

const (
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
)

// Severity is the weight of a Violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	// SeverityBlocking is reserved: no built-in rule emits it today, but
	// registerTask treats any blocking violation as admission-denying.
	SeverityBlocking Severity = "blocking"
)

// Violation is a single scope-control finding against a task.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Constraints are the immutable limits attached to a task at admission,
// keyed by Complexity.
type Constraints struct {
	MaxWorkspaceSizeBytes      int64         `json:"max_workspace_size_bytes"`
	MaxExecutionTime           time.Duration `json:"max_execution_time"`
	MaxAgentCount              int           `json:"max_agent_count"`
	MaxFileCount               int           `json:"max_file_count"`
	MaxTeamSize                int           `json:"max_team_size"`
	MaxDirectoryDepth          int           `json:"max_directory_depth"`
	MaxSpecLength              int           `json:"max_spec_length"`
	MaxDelegationDepth         int           `json:"max_delegation_depth"`
	MaxConcurrentTasks         int           `json:"max_concurrent_tasks"`
	RequiresApproval           bool          `json:"requires_approval"`
	AutoStopOnOverengineering  bool          `json:"auto_stop_on_overengineering"`
}

const mib = 1024 * 1024

var constraintsByComplexity = map[Complexity]Constraints{
	Simple: {
		MaxWorkspaceSizeBytes:     1 * mib,
		MaxExecutionTime:          5 * time.Minute,
		MaxAgentCount:             1,
		MaxFileCount:              10,
		MaxTeamSize:               1,
		MaxDirectoryDepth:         4,
		MaxSpecLength:             2000,
		MaxDelegationDepth:        2,
		MaxConcurrentTasks:        2,
		RequiresApproval:          false,
		AutoStopOnOverengineering: true,
	},
	Moderate: {
		MaxWorkspaceSizeBytes:     5 * mib,
		MaxExecutionTime:          10 * time.Minute,
		MaxAgentCount:             2,
		MaxFileCount:              25,
		MaxTeamSize:               2,
		MaxDirectoryDepth:         4,
		MaxSpecLength:             2000,
		MaxDelegationDepth:        2,
		MaxConcurrentTasks:        2,
		RequiresApproval:          false,
		AutoStopOnOverengineering: true,
	},
	Complex: {
		MaxWorkspaceSizeBytes:     15 * mib,
		MaxExecutionTime:          20 * time.Minute,
		MaxAgentCount:             4,
		MaxFileCount:              75,
		MaxTeamSize:               4,
		MaxDirectoryDepth:         4,
		MaxSpecLength:             2000,
		MaxDelegationDepth:        2,
		MaxConcurrentTasks:        2,
		RequiresApproval:          true,
		AutoStopOnOverengineering: true,
	},
}

// ConstraintsFor returns the immutable constraints table entry for c.
func ConstraintsFor(c Complexity) Constraints {
	return constraintsByComplexity[c]
}

// TaskScope is the in-memory record tracking an admitted, active task.
type TaskScope struct {
	ID                  string
	WorkflowID          string
	AgentType            string
	Specifications       string
	Constraints          Constraints
	StartTime            time.Time
	EstimatedComplexity   Complexity
	SuccessCriteria       []string
	Boundaries            []string

	violations []Violation
}

// Controller owns the TaskScope map exclusively (no other component
// rule) and implements the classification/validation/monitoring/auto-stop
// operations. It performs no I/O.
type Controller struct {
	mu     sync.Mutex
	scopes map[string]*TaskScope
}

// NewController creates an empty Controller.
func NewController() *Controller {
	return &Controller{scopes: make(map[string]*TaskScope)}
}

var simpleKeywords = []string{
	"fix", "update", "add comment", "rename", "format", "lint",
	"single file", "quick", "minor", "small change", "typo",
}

var complexKeywords = []string{
	"system", "architecture", "framework", "database", "api", "auth",
	"complete", "full", "comprehensive", "enterprise", "scalable",
	"microservice", "distributed", "production", "deployment",
}

// ProhibitedKeywords is the keyword list ValidateSpecifications rejects;
// DetectOverEngineering uses its own infrastructure-indicator list.
var ProhibitedKeywords = []string{
	"comprehensive", "enterprise-grade", "production-ready", "scalable",
	"microservices", "distributed", "full-stack", "complete system",
	"authentication system", "user management", "advanced features",
}

// AnalyzeComplexity classifies specs for agentType per the keyword rules
// and manager bias.
func AnalyzeComplexity(specs, agentType string) Complexity {
	lower := strings.ToLower(specs)
	managerBias := strings.Contains(strings.ToLower(agentType), "manager") ||
		strings.Contains(strings.ToLower(agentType), "lead")

	simpleHits := countMatches(lower, simpleKeywords)
	complexHits := countMatches(lower, complexKeywords)

	if managerBias {
		return Complex
	}
	if simpleHits > 0 && complexHits == 0 {
		return Simple
	}
	if complexHits >= 2 {
		return Complex
	}
	return Moderate
}

func countMatches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// completionCriteriaHints are the tokens validateSpecifications looks for
// before warning that a spec lacks a concrete completion criterion.
var completionCriteriaHints = []string{
	"deliverable", "specific", "bounded", "tests", "function", "component", "for the",
}

// ValidateSpecifications runs the length/prohibited-keyword/completion-
// criteria checks against specs under constraints.
func ValidateSpecifications(specs string, constraints Constraints) []Violation {
	var violations []Violation
	lower := strings.ToLower(specs)

	if len(specs) > constraints.MaxSpecLength {
		violations = append(violations, Violation{
			Rule:     "specification_length",
			Severity: SeverityWarning,
			Message:  "specification exceeds max_spec_length",
		})
	}

	var matched []string
	for _, kw := range ProhibitedKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) > 0 {
		violations = append(violations, Violation{
			Rule:     "prohibited_keywords",
			Severity: SeverityCritical,
			Message:  "prohibited keywords found: " + strings.Join(matched, ", "),
		})
	}

	hasHint := false
	for _, hint := range completionCriteriaHints {
		if strings.Contains(lower, hint) {
			hasHint = true
			break
		}
	}
	if !hasHint {
		violations = append(violations, Violation{
			Rule:     "completion_criteria",
			Severity: SeverityWarning,
			Message:  "specification contains no completion-criteria hint",
		})
	}

	return violations
}

// RegisterTask classifies and validates specs, stores the resulting
// TaskScope, and reports whether admission is granted (no blocking
// violation) along with the full violation list.
func (c *Controller) RegisterTask(id, workflowID, agentType, specs string) (admitted bool, scope *TaskScope, violations []Violation) {
	complexity := AnalyzeComplexity(specs, agentType)
	constraints := ConstraintsFor(complexity)
	violations = ValidateSpecifications(specs, constraints)

	scope = &TaskScope{
		ID:                  id,
		WorkflowID:          workflowID,
		AgentType:           agentType,
		Specifications:      specs,
		Constraints:         constraints,
		StartTime:           time.Now(),
		EstimatedComplexity: complexity,
		violations:          violations,
	}

	admitted = true
	for _, v := range violations {
		if v.Severity == SeverityBlocking {
			admitted = false
			break
		}
	}

	if admitted {
		c.mu.Lock()
		c.scopes[id] = scope
		c.mu.Unlock()
	}

	return admitted, scope, violations
}

// Complete removes the TaskScope for id and returns it so the caller can
// inspect its accumulated violation history before it is discarded.
func (c *Controller) Complete(id string) *TaskScope {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.scopes[id]
	if !ok {
		return nil
	}
	delete(c.scopes, id)
	return s
}

// Get returns the active TaskScope for id, or nil if none is registered.
func (c *Controller) Get(id string) *TaskScope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scopes[id]
}

// ResourceStats is the observed-usage snapshot passed to MonitorResourceUsage.
type ResourceStats struct {
	TotalSizeBytes int64
	FileCount      int
	DirectoryDepth int
}

// MonitorResourceUsage compares stats against the task's constraints and
// elapsed time, returning any size/time/count violations.
func (c *Controller) MonitorResourceUsage(id string, stats ResourceStats) []Violation {
	c.mu.Lock()
	s, ok := c.scopes[id]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	var violations []Violation
	if stats.TotalSizeBytes > s.Constraints.MaxWorkspaceSizeBytes {
		violations = append(violations, Violation{
			Rule:     "workspace_size",
			Severity: SeverityCritical,
			Message:  "workspace size exceeds max_workspace_size",
		})
	}
	if time.Since(s.StartTime) > s.Constraints.MaxExecutionTime {
		violations = append(violations, Violation{
			Rule:     "execution_time",
			Severity: SeverityCritical,
			Message:  "execution time exceeds max_execution_time",
		})
	}
	if stats.FileCount > s.Constraints.MaxFileCount {
		violations = append(violations, Violation{
			Rule:     "file_count",
			Severity: SeverityWarning,
			Message:  "file count exceeds max_file_count",
		})
	}

	c.mu.Lock()
	s.violations = append(s.violations, violations...)
	c.mu.Unlock()

	return violations
}

var infrastructureIndicators = []string{
	"framework", "architecture", "microservice", "api gateway",
	"load balancer", "database schema", "authentication system",
	"user management", "role-based access", "middleware",
}

// DetectOverEngineering scans agent log lines for infrastructure-inflation
// and component-count indicators.
func (c *Controller) DetectOverEngineering(id string, logLines []string) []Violation {
	joined := strings.ToLower(strings.Join(logLines, "\n"))

	infraHits := countMatches(joined, infrastructureIndicators)
	componentHits := len(componentInflationRe.FindAllString(joined, -1)) +
		len(implementingRe.FindAllString(joined, -1)) +
		len(buildingRe.FindAllString(joined, -1))

	var violations []Violation
	if infraHits >= 3 {
		violations = append(violations, Violation{
			Rule:     "infrastructure_complexity",
			Severity: SeverityCritical,
			Message:  "agent output shows signs of unscoped infrastructure work",
		})
	}
	if componentHits >= 2 {
		violations = append(violations, Violation{
			Rule:     "component_count",
			Severity: SeverityWarning,
			Message:  "agent output shows signs of component-count inflation",
		})
	}

	if len(violations) > 0 {
		c.mu.Lock()
		if s, ok := c.scopes[id]; ok {
			s.violations = append(s.violations, violations...)
		}
		c.mu.Unlock()
	}

	return violations
}

// ShouldAutoStop reports whether id's task should be halted: any critical
// resource violation or any critical over-engineering violation, gated
// on the task's AutoStopOnOverengineering flag.
func (c *Controller) ShouldAutoStop(id string, stats ResourceStats, logLines []string) (shouldStop bool, reason string) {
	c.mu.Lock()
	s, ok := c.scopes[id]
	c.mu.Unlock()
	if !ok || !s.Constraints.AutoStopOnOverengineering {
		return false, ""
	}

	for _, v := range c.MonitorResourceUsage(id, stats) {
		if v.Severity == SeverityCritical {
			return true, v.Message
		}
	}
	for _, v := range c.DetectOverEngineering(id, logLines) {
		if v.Severity == SeverityCritical {
			return true, v.Message
		}
	}
	return false, ""
}

// GenerateScopedSpecifications appends the fixed constraints banner (size,
// time, team size, auto-stop conditions, success criteria) to specs.
func GenerateScopedSpecifications(specs string, constraints Constraints) string {
	var b strings.Builder
	b.WriteString(specs)
	b.WriteString("\n\n--- SCOPE CONSTRAINTS ---\n")
	b.WriteString(fmtLine("max_workspace_size", fmtMiB(constraints.MaxWorkspaceSizeBytes)))
	b.WriteString(fmtLine("max_execution_time", fmtMinutes(constraints.MaxExecutionTime)))
	b.WriteString(fmtLine("max_team_size", fmtAgents(constraints.MaxTeamSize)))
	b.WriteString(fmtLine("max_file_count", itoa(constraints.MaxFileCount)))
	b.WriteString(fmtLine("requires_approval", boolWord(constraints.RequiresApproval)))
	b.WriteString("auto_stop conditions: critical resource violation (size/time) or " +
		"critical over-engineering signal (infrastructure keywords, component-count inflation).\n")
	b.WriteString("success criteria: stay within the limits above; do not introduce " +
		"infrastructure, frameworks, or systems beyond what the specification names.\n")
	return b.String()
}

func fmtLine(key, value string) string {
	return key + ": " + value + "\n"
}
