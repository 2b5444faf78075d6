// Package config loads the orchestrator's configuration from disk and the
// environment as plain JSON, with environment-variable overrides.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironleaf/conductor/log"
)

const configFileName = "config.json"

// Config is the orchestrator's runtime configuration. It is loaded once at
// startup (see Load) and never mutated afterwards; packages that need a
// value read it off the Config value passed to their constructor.
type Config struct {
	// Root is the base directory under which data/, workspaces/, and logs/
	// live. Defaults to ~/.conductor.
	Root string `json:"root"`

	// DatabasePath is the SQLite file backing the persistence package.
	// Overridden by DATABASE_PATH.
	DatabasePath string `json:"database_path"`

	// WorkspacesDir is the root directory under which per-agent worktrees
	// are created. Overridden by WORKSPACES_DIR.
	WorkspacesDir string `json:"workspaces_dir"`

	// RepoPath is the git repository worktrees are checked out from.
	// Overridden by REPO_PATH; defaults to the current directory.
	RepoPath string `json:"repo_path"`

	// WorkerCommand and WorkerArgs describe the external worker subprocess
	// the agent runner spawns for every task, with the prompt file path
	// appended last. Overridden by WORKER_COMMAND / WORKER_ARGS (the
	// latter space-separated).
	WorkerCommand string   `json:"worker_command"`
	WorkerArgs    []string `json:"worker_args"`

	// MaxWorkflows is a soft cap on concurrently tracked workflows. It is
	// loaded but neither enforced nor reported by get_system_status.
	// Overridden by MAX_WORKFLOWS.
	MaxWorkflows int `json:"max_workflows"`

	// CleanupIntervalMinutes is the scheduled-cleanup sweep interval.
	// Overridden by CLEANUP_INTERVAL_MINUTES.
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes"`

	// MaxAgents bounds the agent runner's concurrent subprocess count.
	// Overridden by MAX_AGENTS.
	MaxAgents int `json:"max_agents"`

	// LogLevel is advisory; the log package only distinguishes
	// debug-enabled/disabled today. Overridden by LOG_LEVEL.
	LogLevel string `json:"log_level"`

	// LogFile is the log file name under Root/logs. Overridden by LOG_FILE.
	LogFile string `json:"log_file"`
}

// DefaultConfig returns the built-in defaults, before any file or
// environment override is applied.
func DefaultConfig() *Config {
	root := defaultRoot()
	return &Config{
		Root:                   root,
		DatabasePath:           filepath.Join(root, "data", "conductor.db"),
		WorkspacesDir:          filepath.Join(root, "workspaces"),
		RepoPath:               ".",
		WorkerCommand:          "claude",
		WorkerArgs:             []string{"-p"},
		MaxWorkflows:           500,
		CleanupIntervalMinutes: 5,
		MaxAgents:              3,
		LogLevel:               "info",
		LogFile:                "conductor.log",
	}
}

func defaultRoot() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".conductor"
	}
	return filepath.Join(homeDir, ".conductor")
}

// ConfigDir returns the directory config.json lives in.
func ConfigDir(root string) string {
	return root
}

// Load reads config.json under root (writing a default one out if missing),
// then applies the environment-variable overrides. root, if
// empty, defaults to DefaultConfig().Root.
func Load(root string) *Config {
	cfg := DefaultConfig()
	if root != "" {
		cfg.Root = root
		cfg.DatabasePath = filepath.Join(root, "data", "conductor.db")
		cfg.WorkspacesDir = filepath.Join(root, "workspaces")
	}

	path := filepath.Join(ConfigDir(cfg.Root), configFileName)
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg Config
		if err := json.Unmarshal(data, &fileCfg); err != nil {
			log.WarningLog.Printf("config: failed to parse %s: %v", path, err)
		} else {
			cfg = &fileCfg
		}
	} else if os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			log.WarningLog.Printf("config: failed to write default config: %v", err)
		}
	} else {
		log.WarningLog.Printf("config: failed to read %s: %v", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg
}

// Save writes cfg to <root>/config.json.
func Save(cfg *Config) error {
	dir := ConfigDir(cfg.Root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(filepath.Join(dir, configFileName), data, 0644)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("WORKSPACES_DIR"); v != "" {
		cfg.WorkspacesDir = v
	}
	if v := os.Getenv("REPO_PATH"); v != "" {
		cfg.RepoPath = v
	}
	if v := os.Getenv("WORKER_COMMAND"); v != "" {
		cfg.WorkerCommand = v
	}
	if v := os.Getenv("WORKER_ARGS"); v != "" {
		cfg.WorkerArgs = strings.Fields(v)
	}
	if v := os.Getenv("MAX_WORKFLOWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxWorkflows = n
		}
	}
	if v := os.Getenv("CLEANUP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CleanupIntervalMinutes = n
		}
	}
	if v := os.Getenv("MAX_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxAgents = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

// LogsDir returns <root>/logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Root, "logs")
}
