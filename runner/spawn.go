package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/log"
)

// spawn materializes task's prompt to a scratch file, starts the worker
// command under a pty, registers it, and arranges for signalCompletion to
// run on exit.
func (r *Runner) spawn(ctx context.Context, task *engine.PendingTask) error {
	promptPath, err := r.writePromptFile(task)
	if err != nil {
		return fmt.Errorf("runner: write prompt file: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	args := append(append([]string{}, r.cfg.WorkerArgs...), promptPath)
	cmd := exec.CommandContext(runCtx, r.cfg.WorkerCommand, args...)
	cmd.Env = append(os.Environ(),
		"WORKFLOW_ID="+task.WorkflowID,
		"AGENT_TYPE="+task.AgentType,
	)
	// Cancelling runCtx sends SIGTERM; a worker still running
	// ShutdownTimeout later is killed.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = r.cfg.ShutdownTimeout

	ptmx, err := pty.Start(cmd)
	if err != nil {
		cancel()
		return fmt.Errorf("runner: start pty: %w", err)
	}

	rt := &runningTask{
		taskID:     task.TaskID,
		workflowID: task.WorkflowID,
		agentType:  task.AgentType,
		startTime:  time.Now(),
		transcript: newTranscriptBuffer(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	r.running[task.TaskID] = rt
	r.mu.Unlock()

	go func() { _, _ = io.Copy(rt.transcript, ptmx) }()

	go func() {
		defer ptmx.Close()
		defer close(rt.done)
		defer cancel()

		waitErr := cmd.Wait()
		duration := time.Since(rt.startTime)

		r.mu.Lock()
		delete(r.running, task.TaskID)
		r.mu.Unlock()

		result := "ok"
		if waitErr != nil {
			result = describeExit(waitErr)
		}

		if _, err := r.eng.SignalCompletion(runCtx, engine.SignalCompletionRequest{
			AgentID:    task.TaskID,
			WorkflowID: task.WorkflowID,
			Result:     result,
			Artifacts:  map[string]any{"duration_seconds": duration.Seconds()},
		}); err != nil {
			log.ErrorLog.Printf("runner: signal completion for %s: %v", task.TaskID, err)
		}
	}()

	return nil
}

func describeExit(err error) string {
	if exitErr, ok := err.(*exec.ExitError); ok {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return fmt.Sprintf("terminated by signal %s", status.Signal())
			}
			return fmt.Sprintf("exit code %d", status.ExitStatus())
		}
	}
	return err.Error()
}

func (r *Runner) writePromptFile(task *engine.PendingTask) (string, error) {
	dir := filepath.Join(r.cfg.ScratchDir, task.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte(task.Prompt), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
