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

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show warehouse status",
	Long: `Shows warehouse connection health, pool statistics and row counts
for the staging, dimension and fact tables.

Example:
  go run ./cmd/retaildw status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	health, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	fmt.Println("=== Warehouse Status ===")
	fmt.Printf("Database:  %s (healthy=%v, ping %s)\n", cfg.Database.Name, health.Healthy, health.ResponseTime)
	fmt.Printf("Pool:      %d/%d connections (%d idle)\n",
		health.Stats.AcquiredConns, health.Stats.MaxConns, health.Stats.IdleConns)

	store := warehouse.NewPostgres(db.Pool, cfg.Pipeline.BatchSize, log)
	summary, err := store.Summarize(ctx)
	if err != nil {
		return fmt.Errorf("summarize warehouse: %w", err)
	}

	fmt.Println()
	fmt.Printf("Staging rows:  %d\n", summary.StagingRows)
	fmt.Printf("Fact rows:     %d\n", summary.FactRows)
	fmt.Printf("Customers:     %d\n", summary.Customers)
	fmt.Printf("Products:      %d\n", summary.Products)
	fmt.Printf("Countries:     %d\n", summary.Countries)
	fmt.Printf("Dates:         %d (%s .. %s)\n", summary.Dates,
		summary.DateRangeStart.Format("2006-01-02"), summary.DateRangeEnd.Format("2006-01-02"))
	fmt.Printf("Revenue:       %s\n", summary.TotalRevenue)
	fmt.Printf("Returns:       %s (%.2f%% of fact rows)\n", summary.TotalReturns, summary.ReturnRatePercent)

	return nil
}
