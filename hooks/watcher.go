package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/log"
	"github.com/ironleaf/conductor/runner"
)

// Watcher polls a Runner's live transcripts for completion markers and
// dispatches each one exactly once per occurrence: a task whose transcript
// still shows the same marker on the next poll (the common case, since a
// worker keeps running after emitting one) is not redispatched.
type Watcher struct {
	eng    *engine.Engine
	disp   *Dispatcher
	runner *runner.Runner

	mu   sync.Mutex
	seen map[string]Marker // task id -> last dispatched marker

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWatcher constructs a Watcher over r's live transcripts.
func NewWatcher(eng *engine.Engine, disp *Dispatcher, r *runner.Runner) *Watcher {
	return &Watcher{
		eng:    eng,
		disp:   disp,
		runner: r,
		seen:   make(map[string]Marker),
		stopCh: make(chan struct{}),
	}
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context, interval time.Duration) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.pollOnce(ctx)
			}
		}
	}()
}

// Stop ends the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Watcher) pollOnce(ctx context.Context) {
	for _, t := range w.runner.RunningTasks() {
		transcript, ok := w.runner.Transcript(t.TaskID)
		if !ok {
			continue
		}
		marker, found := DetectMarker(transcript)
		if !found {
			continue
		}

		w.mu.Lock()
		if w.seen[t.TaskID] == marker {
			w.mu.Unlock()
			continue
		}
		w.seen[t.TaskID] = marker
		w.mu.Unlock()

		status, err := w.eng.GetWorkflowStatus(ctx, t.WorkflowID)
		if err != nil {
			log.WarningLog.Printf("hooks: watcher: load workflow %s for %s: %v", t.WorkflowID, t.TaskID, err)
			continue
		}

		if err := w.disp.Handle(ctx, Event{
			Marker:         marker,
			WorkflowID:     t.WorkflowID,
			WorkflowName:   status.Workflow.Name,
			FromAgent:      t.AgentType,
			Specifications: status.Workflow.Specifications,
		}); err != nil {
			log.ErrorLog.Printf("hooks: watcher: dispatch %s for %s: %v", marker, t.TaskID, err)
		}
	}
}
