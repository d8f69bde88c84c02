package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tepantlatia/ingestor/pkg/log"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tepantlatia",
	Short: "Durable, distributed-safe ingestion worker",
	Long: `tepantlatia crawls a remote legal-thesis repository and a local
secondary corpus, enriches each item with a vector embedding, and
stores the enriched records in a document store behind a persistent,
fault-tolerant queue.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an optional YAML config overlay")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(seedCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
