package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wliao/retaildw/internal/pipeline"
	"github.com/wliao/retaildw/internal/staging"
	"github.com/wliao/retaildw/internal/warehouse"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/database"
	"github.com/wliao/retaildw/pkg/logger"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run",
	Long: `Executes the full warehouse load over one batch of raw rows.

Input sources:
  --input FILE   stage a point-of-sale CSV export, then process it
  (no --input)   process the rows already in the staging table

The run is idempotent: repeating it over the same input inserts no new
facts and regenerates an identical quality report.

Example:
  go run ./cmd/retaildw run --input online_retail.csv
  go run ./cmd/retaildw run
  go run ./cmd/retaildw run --input sample.csv --dry-run`,
	RunE: runPipeline,
}

var (
	runInput  string
	runDryRun bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runInput, "input", "", "point-of-sale CSV export to stage and process")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "run against an in-memory store, write nothing")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runDryRun {
		return runInMemory(ctx, cfg, log)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	store := warehouse.NewPostgres(db.Pool, cfg.Pipeline.BatchSize, log)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	if runInput != "" {
		rows, err := staging.ReadCSV(runInput)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if _, err := store.Staging().SaveRaw(ctx, rows); err != nil {
			return fmt.Errorf("stage input rows: %w", err)
		}
	}

	rows, err := store.Staging().LoadRaw(ctx)
	if err != nil {
		return fmt.Errorf("load staging rows: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("staging table is empty; provide --input or stage rows first")
	}

	runner := pipeline.NewRunner(store.Dimensions(), store.Facts(), store.Reports(), cfg, log)
	result, runErr := runner.Run(ctx, rows)
	printRunResult(result)
	if runErr != nil {
		return runErr
	}

	if !result.Quality.Passed {
		return fmt.Errorf("quality gate failed: score %.4f below threshold %.2f",
			result.Quality.OverallScore, cfg.Quality.DQThreshold)
	}

	return nil
}

// runInMemory executes the pipeline against the in-memory store. Nothing
// touches the warehouse; useful for inspecting a file before loading it.
func runInMemory(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if runInput == "" {
		return fmt.Errorf("--dry-run requires --input")
	}

	rows, err := staging.ReadCSV(runInput)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	mem := warehouse.NewMemory()
	runner := pipeline.NewRunner(mem.Dimensions(), mem.Facts(), mem.Reports(), cfg, log)
	result, runErr := runner.Run(ctx, rows)
	printRunResult(result)
	if runErr != nil {
		return runErr
	}

	if !result.Quality.Passed {
		return fmt.Errorf("quality gate failed: score %.4f below threshold %.2f",
			result.Quality.OverallScore, cfg.Quality.DQThreshold)
	}

	return nil
}

func printRunResult(result *pipeline.RunResult) {
	if result == nil {
		return
	}

	n := result.Counts.Normalize
	fmt.Println("=== Pipeline Run ===")
	fmt.Printf("Rows in:            %d\n", n.RowsIn)
	fmt.Printf("Staged:             %d\n", n.RowsOut)
	fmt.Printf("Dropped:            %d\n", n.Dropped())
	fmt.Printf("Duplicates removed: %d\n", result.Counts.Duplicates)
	fmt.Printf("Facts inserted:     %d\n", result.Counts.Facts.Inserted)
	fmt.Printf("Facts skipped:      %d\n", result.Counts.Facts.SkippedDuplicate)
	fmt.Printf("Facts rejected:     %d\n", result.Counts.Facts.Rejected)
	fmt.Printf("Flagged suspicious: %d\n", result.Counts.Facts.Flagged)
	fmt.Printf("Elapsed:            %s\n", result.Elapsed)
	fmt.Println()

	fmt.Println("=== Quality Gate ===")
	for _, g := range result.Quality.Groups {
		mark := "PASS"
		if !g.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  %-14s %.4f  [%s]\n", g.Group, g.Score, mark)
	}
	fmt.Printf("Overall: %.4f  passed=%v  anomalies=%d\n",
		result.Quality.OverallScore, result.Quality.Passed, len(result.Quality.Anomalies))
}
