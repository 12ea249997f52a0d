package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wliao/retaildw/internal/warehouse"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/database"
	"github.com/wliao/retaildw/pkg/logger"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the latest quality report",
	Long: `Prints the most recent stored quality report.

Sections are printed in their fixed order: daily metrics, customer
completeness, return rates, product quality, overall summary, anomalies
and monthly trends.

Example:
  go run ./cmd/retaildw report
  go run ./cmd/retaildw report --json
  go run ./cmd/retaildw report --list`,
	RunE: runReport,
}

var (
	reportJSON bool
	reportList bool
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit the raw report JSON")
	reportCmd.Flags().BoolVar(&reportList, "list", false, "list stored runs instead of printing the latest report")
}

func runReport(cmd *cobra.Command, args []string) error {
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

	if reportList {
		runs, err := store.ListReports(ctx, 30)
		if err != nil {
			return fmt.Errorf("list reports: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No quality reports stored yet.")
			return nil
		}
		fmt.Println("Run Date     Score    Passed")
		for _, r := range runs {
			fmt.Printf("%s   %.4f   %v\n", r.RunDate.Format("2006-01-02"), r.OverallScore, r.Passed)
		}
		return nil
	}

	report, err := store.LatestReport(ctx)
	if err != nil {
		return fmt.Errorf("load latest report: %w", err)
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("=== Quality Report — run %s ===\n", report.RunDate.Format("2006-01-02"))
	fmt.Printf("Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Overall:   %.4f  passed=%v\n", report.OverallScore, report.Passed)

	for _, section := range report.Sections {
		fmt.Printf("\n[%s]\n", section.Name)
		if len(section.Rows) == 0 {
			fmt.Println("  (empty)")
			continue
		}
		for _, col := range section.Columns {
			fmt.Printf("%-22s", col)
		}
		fmt.Println()
		for _, row := range section.Rows {
			for _, cell := range row {
				fmt.Printf("%-22v", cell)
			}
			fmt.Println()
		}
	}

	return nil
}
