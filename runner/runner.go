// Package runner implements the agent runner: it drains the engine's
// pending-task queue under a concurrency cap, spawns external worker
// subprocesses inside a pty via github.com/creack/pty, revalidates
// workflow liveness immediately before each spawn, and signals completion
// on exit.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/log"
	"github.com/ironleaf/conductor/persistence"
)

// DefaultMaxConcurrent is the default concurrency cap.
const DefaultMaxConcurrent = 3

// DefaultPollInterval is the recommended poll-cycle tick.
const DefaultPollInterval = 10 * time.Second

// DefaultShutdownTimeout bounds the wait for graceful subprocess exit
// during Shutdown before survivors are force-killed.
const DefaultShutdownTimeout = 10 * time.Second

// Config configures a Runner.
type Config struct {
	// WorkerCommand is the executable spawned for every task (e.g. the
	// path to a worker CLI). WorkerArgs is appended after it; the prompt
	// file path is appended last.
	WorkerCommand   string
	WorkerArgs      []string
	MaxConcurrent   int
	PollInterval    time.Duration
	ScratchDir      string
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ScratchDir == "" {
		c.ScratchDir = "."
	}
	return c
}

// runningTask is one live worker subprocess.
type runningTask struct {
	taskID     string
	workflowID string
	agentType  string
	startTime  time.Time
	transcript *transcriptBuffer
	cancel     func()
	done       chan struct{}
}

// Runner is the agent runner. It is safe for concurrent use.
type Runner struct {
	eng *engine.Engine
	cfg Config

	mu      sync.Mutex
	running map[string]*runningTask

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Runner over eng with the given configuration.
func New(eng *engine.Engine, cfg Config) *Runner {
	return &Runner{
		eng:     eng,
		cfg:     cfg.withDefaults(),
		running: make(map[string]*runningTask),
		stopCh:  make(chan struct{}),
	}
}

// Start runs the poll loop until ctx is cancelled or Shutdown is called.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.pollOnce(ctx)
			}
		}
	}()
}

// RunningCount reports how many worker subprocesses are currently live.
func (r *Runner) RunningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// Transcript returns the accumulated pty output for taskID while it is
// running; once the worker has exited it returns false.
func (r *Runner) Transcript(taskID string) (string, bool) {
	r.mu.Lock()
	t, ok := r.running[taskID]
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	return t.transcript.Snapshot(), true
}

// RunningTaskRef identifies one live worker subprocess, for a marker
// watcher that needs to know which transcripts to scan without reaching
// into the runner's internal bookkeeping.
type RunningTaskRef struct {
	TaskID     string
	WorkflowID string
	AgentType  string
}

// RunningTasks snapshots the currently live tasks.
func (r *Runner) RunningTasks() []RunningTaskRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunningTaskRef, 0, len(r.running))
	for _, t := range r.running {
		out = append(out, RunningTaskRef{TaskID: t.taskID, WorkflowID: t.workflowID, AgentType: t.agentType})
	}
	return out
}

func (r *Runner) pollOnce(ctx context.Context) {
	r.mu.Lock()
	available := r.cfg.MaxConcurrent - len(r.running)
	excluded := make(map[string]bool, len(r.running))
	for id := range r.running {
		excluded[id] = true
	}
	r.mu.Unlock()
	if available <= 0 {
		return
	}

	candidates := r.eng.GetPendingTasks("")
	spawned := 0
	for _, task := range candidates {
		if spawned >= available {
			break
		}
		if excluded[task.TaskID] {
			continue
		}
		if !r.revalidate(ctx, task) {
			continue
		}
		if err := r.spawn(ctx, task); err != nil {
			log.ErrorLog.Printf("runner: spawn %s: %v", task.TaskID, err)
			continue
		}
		spawned++
	}
}

// revalidate re-checks workflow liveness immediately before spawn. A
// status-check error fails open (the spawn proceeds) since a transient
// persistence hiccup should not silently strand a queued task forever.
func (r *Runner) revalidate(ctx context.Context, task *engine.PendingTask) bool {
	status, err := r.eng.GetWorkflowStatus(ctx, task.WorkflowID)
	if err != nil {
		if err == persistence.ErrNotFound {
			log.WarningLog.Printf("runner: skip %s: workflow %s missing", task.TaskID, task.WorkflowID)
			return false
		}
		log.WarningLog.Printf("runner: workflow status check failed for %s, spawning anyway: %v", task.TaskID, err)
		return true
	}
	switch status.Workflow.Status {
	case persistence.StatusFailed, persistence.StatusCompleted, persistence.StatusStale, persistence.StatusApproved:
		log.InfoLog.Printf("runner: skip %s: workflow %s is %s", task.TaskID, task.WorkflowID, status.Workflow.Status)
		return false
	default:
		return true
	}
}

// Shutdown stops the poll loop, asks every running worker to terminate
// gracefully, waits up to the configured timeout, then force-kills any
// survivors.
func (r *Runner) Shutdown() {
	close(r.stopCh)
	r.wg.Wait()

	r.mu.Lock()
	tasks := make([]*runningTask, 0, len(r.running))
	for _, t := range r.running {
		tasks = append(tasks, t)
	}
	r.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}

	deadline := time.Now().Add(r.cfg.ShutdownTimeout)
	for _, t := range tasks {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		timer := time.NewTimer(remaining)
		select {
		case <-t.done:
			timer.Stop()
		case <-timer.C:
			log.WarningLog.Printf("runner: %s did not exit within shutdown timeout, force-killing", t.taskID)
		}
	}
}
