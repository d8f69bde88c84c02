package main

import (
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tepantlatia/ingestor/pkg/config"
	"github.com/tepantlatia/ingestor/pkg/dashboard"
	"github.com/tepantlatia/ingestor/pkg/log"
	"github.com/tepantlatia/ingestor/pkg/storage"
)

var dashboardAddr string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run the read-only HTTP dashboard over the shared store",
	RunE:  runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardAddr, "addr", ":8090", "address to listen on")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.StoreURI, cfg.DBName, cfg.DeferInterval(), cfg.UnavailableBudget())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	d := dashboard.New(store)
	d.SetReady(true)

	log.WithComponent("dashboard").Info().Str("addr", dashboardAddr).Msg("dashboard starting")
	color.Green("tepantlatia dashboard listening on %s", dashboardAddr)

	return http.ListenAndServe(dashboardAddr, d.Router())
}
