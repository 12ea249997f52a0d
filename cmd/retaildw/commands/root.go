package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "retaildw",
	Short: "Retail data warehouse ETL and quality pipeline",
	Long: `Retail Data Warehouse CLI

Batch ETL over point-of-sale exports: staging, dimension resolution,
fact loading and data-quality scoring against a Postgres star schema.

Usage:
  go run ./cmd/retaildw [command]

Examples:
  go run ./cmd/retaildw initdb
  go run ./cmd/retaildw run --input online_retail.csv
  go run ./cmd/retaildw report
  go run ./cmd/retaildw status
  go run ./cmd/retaildw api`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
