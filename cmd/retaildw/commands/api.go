package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wliao/retaildw/internal/api"
	"github.com/wliao/retaildw/internal/api/handlers"
	"github.com/wliao/retaildw/internal/warehouse"
	"github.com/wliao/retaildw/pkg/config"
	"github.com/wliao/retaildw/pkg/database"
	"github.com/wliao/retaildw/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the quality API server",
	Long: `Starts the read-only HTTP API over the warehouse.

Endpoints:
  GET /health              - Service and database health
  GET /api/quality/latest  - Latest quality report
  GET /api/quality/runs    - Stored run history
  GET /api/summary         - Warehouse row counts and totals

Example:
  go run ./cmd/retaildw api
  go run ./cmd/retaildw api --port 8090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from config)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	store := warehouse.NewPostgres(db.Pool, cfg.Pipeline.BatchSize, log)
	qualityHandler := handlers.NewQualityHandler(store, db, log)
	router := api.NewRouter(qualityHandler, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
