package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wliao/retaildw/internal/warehouse"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/database"
	"github.com/wliao/retaildw/pkg/logger"
)

// initdbCmd represents the initdb command
var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the warehouse schema",
	Long: `Creates the staging, dimension, fact and report tables if they do
not exist. Safe to run repeatedly.

Example:
  go run ./cmd/retaildw initdb`,
	RunE: runInitDB,
}

func init() {
	rootCmd.AddCommand(initdbCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)
	ctx := context.Background()

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	store := warehouse.NewPostgres(db.Pool, cfg.Pipeline.BatchSize, log)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	fmt.Printf("Warehouse schema ready in %s\n", cfg.Database.Name)
	return nil
}
