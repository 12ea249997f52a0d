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

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired staging rows",
	Long: `Deletes staging rows older than the retention window. The fact
table is the durable record; staging only carries rows between loads.

Example:
  go run ./cmd/retaildw cleanup
  go run ./cmd/retaildw cleanup --retention-days 14`,
	RunE: runCleanup,
}

var cleanupRetentionDays int

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().IntVar(&cleanupRetentionDays, "retention-days", 0, "retention window in days (default from config)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	retention := cfg.Pipeline.RetentionDays
	if cleanupRetentionDays > 0 {
		retention = cleanupRetentionDays
	}

	log := logger.New(cfg)
	ctx := context.Background()

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	store := warehouse.NewPostgres(db.Pool, cfg.Pipeline.BatchSize, log)
	deleted, err := store.Staging().Cleanup(ctx, retention)
	if err != nil {
		return fmt.Errorf("cleanup staging: %w", err)
	}

	fmt.Printf("Deleted %d staging rows older than %d days\n", deleted, retention)
	return nil
}
