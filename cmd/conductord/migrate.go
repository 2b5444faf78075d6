package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironleaf/conductor/config"
	"github.com/ironleaf/conductor/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "apply the persistence schema and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load(rootFlag)
	store, err := persistence.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("conductord: migrate: %w", err)
	}
	defer store.Close()
	fmt.Printf("conductord: schema applied at %s\n", cfg.DatabasePath)
	return nil
}
