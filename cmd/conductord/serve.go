package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironleaf/conductor/config"
	"github.com/ironleaf/conductor/engine"
	"github.com/ironleaf/conductor/hooks"
	"github.com/ironleaf/conductor/log"
	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/persistence"
	"github.com/ironleaf/conductor/rpc"
	"github.com/ironleaf/conductor/runner"
	"github.com/ironleaf/conductor/scope"
	"github.com/ironleaf/conductor/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the orchestrator and serve the RPC surface over stdio",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load(rootFlag)
	if err := log.Initialize(cfg.LogsDir(), cfg.LogFile, true); err != nil {
		return fmt.Errorf("conductord: initialize logging: %w", err)
	}
	defer log.Close()

	store, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("conductord: open persistence store: %w", err)
	}
	defer store.Close()

	mem, err := memory.New(store, cfg.Root)
	if err != nil {
		return fmt.Errorf("conductord: open memory store: %w", err)
	}

	ws, err := workspace.NewManager(cfg.RepoPath, cfg.WorkspacesDir)
	if err != nil {
		return fmt.Errorf("conductord: open workspace manager: %w", err)
	}

	scopeCtrl := scope.NewController()
	eng := engine.New(store, mem, ws, scopeCtrl)

	rn := runner.New(eng, runner.Config{
		WorkerCommand: cfg.WorkerCommand,
		WorkerArgs:    cfg.WorkerArgs,
		MaxConcurrent: cfg.MaxAgents,
		ScratchDir:    cfg.Root + "/scratch",
	})

	dispatcher := hooks.New(eng)
	watcher := hooks.NewWatcher(eng, dispatcher, rn)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rn.Start(ctx)
	watcher.Start(ctx, runner.DefaultPollInterval)
	startCleanupLoop(ctx, eng, cfg)

	log.InfoLog.Printf("conductord: serving (root=%s repo=%s)", cfg.Root, cfg.RepoPath)

	server := rpc.New(eng, ws, mem, store)
	serveErr := server.Serve()

	watcher.Stop()
	rn.Shutdown()

	if serveErr != nil {
		log.ErrorLog.Printf("conductord: rpc server exited: %v", serveErr)
		return serveErr
	}
	return nil
}

// startCleanupLoop periodically runs the scheduled-cleanup sweep and the
// stale-workflow detection/retention sweeps, at the configured interval.
func startCleanupLoop(ctx context.Context, eng *engine.Engine, cfg *config.Config) {
	interval := time.Duration(cfg.CleanupIntervalMinutes) * time.Minute
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := eng.ProcessScheduledCleanups(ctx); err != nil {
					log.ErrorLog.Printf("conductord: scheduled cleanup sweep: %v", err)
				} else if n > 0 {
					log.InfoLog.Printf("conductord: cleaned up %d workflow(s)", n)
				}
				if n, err := eng.DetectStaleWorkflows(ctx, 30); err != nil {
					log.ErrorLog.Printf("conductord: stale detection sweep: %v", err)
				} else if n > 0 {
					log.InfoLog.Printf("conductord: marked %d workflow(s) stale", n)
				}
				if n, err := eng.CleanupOldStaleWorkflows(ctx, 7); err != nil {
					log.ErrorLog.Printf("conductord: stale retention sweep: %v", err)
				} else if n > 0 {
					log.InfoLog.Printf("conductord: deleted %d stale workflow(s)", n)
				}
			}
		}
	}()
}
