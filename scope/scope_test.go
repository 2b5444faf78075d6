package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeComplexity(t *testing.T) {
	tests := []struct {
		name      string
		specs     string
		agentType string
		want      Complexity
	}{
		{"simple keyword wins", "fix the typo in readme", "backend-developer-associate", Simple},
		{"complex keyword pair forces complex", "build a distributed microservice api", "backend-developer-associate", Complex},
		{"manager bias overrides keywords", "fix a typo", "backend-developer-manager", Complex},
		{"lead bias overrides keywords", "fix a typo", "tech-lead-associate", Complex},
		{"no signal defaults to moderate", "implement the thing we discussed", "backend-developer-associate", Moderate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnalyzeComplexity(tt.specs, tt.agentType))
		})
	}
}

func TestValidateSpecifications(t *testing.T) {
	constraints := ConstraintsFor(Simple)

	t.Run("prohibited keyword is critical", func(t *testing.T) {
		violations := ValidateSpecifications("build a comprehensive enterprise-grade system", constraints)
		require.NotEmpty(t, violations)
		var found bool
		for _, v := range violations {
			if v.Rule == "prohibited_keywords" {
				found = true
				assert.Equal(t, SeverityCritical, v.Severity)
			}
		}
		assert.True(t, found, "expected a prohibited_keywords violation")
	})

	t.Run("missing completion criteria warns", func(t *testing.T) {
		violations := ValidateSpecifications("do some stuff", constraints)
		var found bool
		for _, v := range violations {
			if v.Rule == "completion_criteria" {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("clean spec with a completion hint has no violations", func(t *testing.T) {
		violations := ValidateSpecifications("fix the specific bounded deliverable: the login bug", constraints)
		assert.Empty(t, violations)
	})

	t.Run("over-length spec warns", func(t *testing.T) {
		long := make([]byte, constraints.MaxSpecLength+1)
		for i := range long {
			long[i] = 'a'
		}
		violations := ValidateSpecifications(string(long)+" deliverable", constraints)
		var found bool
		for _, v := range violations {
			if v.Rule == "specification_length" {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestControllerRegisterTaskAdmitsWithoutBlockingViolations(t *testing.T) {
	c := NewController()
	admitted, ts, violations := c.RegisterTask("task-1", "wf-1", "backend-developer-associate",
		"fix a specific bounded deliverable")
	require.True(t, admitted)
	require.NotNil(t, ts)
	assert.Empty(t, violations)
	assert.Equal(t, Simple, ts.EstimatedComplexity)
	assert.Same(t, ts, c.Get("task-1"))
}

func TestControllerCompleteRemovesScope(t *testing.T) {
	c := NewController()
	c.RegisterTask("task-1", "wf-1", "backend-developer-associate", "fix a specific bounded deliverable")

	removed := c.Complete("task-1")
	require.NotNil(t, removed)
	assert.Equal(t, "task-1", removed.ID)
	assert.Nil(t, c.Get("task-1"))
	assert.Nil(t, c.Complete("task-1"))
}

func TestMonitorResourceUsageFlagsSizeAndTime(t *testing.T) {
	c := NewController()
	c.RegisterTask("task-1", "wf-1", "backend-developer-associate", "fix a specific bounded deliverable")

	ts := c.Get("task-1")
	ts.StartTime = time.Now().Add(-ts.Constraints.MaxExecutionTime - time.Minute)

	violations := c.MonitorResourceUsage("task-1", ResourceStats{
		TotalSizeBytes: ts.Constraints.MaxWorkspaceSizeBytes + 1,
		FileCount:      0,
	})

	var rules []string
	for _, v := range violations {
		rules = append(rules, v.Rule)
	}
	assert.Contains(t, rules, "workspace_size")
	assert.Contains(t, rules, "execution_time")
}

func TestDetectOverEngineeringRequiresRepeatedSignal(t *testing.T) {
	c := NewController()
	c.RegisterTask("task-1", "wf-1", "backend-developer-associate", "fix a specific bounded deliverable")

	violations := c.DetectOverEngineering("task-1", []string{"touched one file"})
	assert.Empty(t, violations)

	violations = c.DetectOverEngineering("task-1", []string{
		"adding a framework and an api gateway behind a load balancer",
	})
	assert.NotEmpty(t, violations)
}

func TestShouldAutoStopOnCriticalResourceViolation(t *testing.T) {
	c := NewController()
	c.RegisterTask("task-1", "wf-1", "backend-developer-associate", "fix a specific bounded deliverable")
	ts := c.Get("task-1")

	stop, reason := c.ShouldAutoStop("task-1", ResourceStats{
		TotalSizeBytes: ts.Constraints.MaxWorkspaceSizeBytes + 1,
	}, nil)
	assert.True(t, stop)
	assert.NotEmpty(t, reason)
}

func TestGenerateScopedSpecificationsAppendsBanner(t *testing.T) {
	out := GenerateScopedSpecifications("do the thing", ConstraintsFor(Simple))
	assert.Contains(t, out, "do the thing")
	assert.Contains(t, out, "SCOPE CONSTRAINTS")
	assert.Contains(t, out, "max_workspace_size")
}
