// Command conductord runs the orchestrator as a long-lived process: it
// wires config, persistence, memory, workspace, scope, engine, runner, and
// hooks together and serves the RPC surface over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootFlag string

var rootCmd = &cobra.Command{
	Use:   "conductord",
	Short: "conductord is the autonomous multi-agent orchestrator daemon",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "base directory for data/workspaces/logs (default ~/.conductor)")
	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
