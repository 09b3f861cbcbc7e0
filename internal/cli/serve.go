package cli

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dukaan-labs/dukaan/internal/api"
	"github.com/dukaan-labs/dukaan/internal/app/billing"
	"github.com/dukaan-labs/dukaan/internal/app/deals"
	"github.com/dukaan-labs/dukaan/internal/app/khata"
	"github.com/dukaan-labs/dukaan/internal/daemon"
	"github.com/dukaan-labs/dukaan/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Override listen address (host:port)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dukaan HTTP server",
	Long:  `Start the backend HTTP server serving the POS and khata API.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := khata.NewEngine(db)
	bill := billing.NewService(db, engine)
	dl := deals.NewService(db, db)

	server := api.NewServer(db, bill, dl, engine)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}

	addr := cfg.API.Addr()
	if override, _ := cmd.Flags().GetString("addr"); override != "" {
		addr = override
	}

	log.Printf("dukaan: %s serving on http://%s (db %s)", cfg.Shop.Name, addr, cfg.Store.Path)
	return http.ListenAndServe(addr, server.Handler())
}
