package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukaan-labs/dukaan/internal/app/khata"
	"github.com/dukaan-labs/dukaan/internal/daemon"
	"github.com/dukaan-labs/dukaan/internal/domain"
	"github.com/dukaan-labs/dukaan/internal/infra/sqlite"
)

// ─── Khata CLI ──────────────────────────────────────────────────────────────
// Direct-to-database commands for the shop owner's terminal: inspect a
// customer's credit standing or force a recalculation without going
// through the HTTP API.

func init() {
	rootCmd.AddCommand(khataCmd)
	khataCmd.AddCommand(khataScoreCmd)
	khataCmd.AddCommand(khataRecalcCmd)
}

var khataCmd = &cobra.Command{
	Use:   "khata",
	Short: "Inspect and manage khata credit scores",
}

// ─── khata score ────────────────────────────────────────────────────────────

var khataScoreCmd = &cobra.Command{
	Use:   "score PHONE",
	Short: "Show a customer's credit status",
	Args:  cobra.ExactArgs(1),
	RunE:  runKhataScore,
}

func runKhataScore(cmd *cobra.Command, args []string) error {
	engine, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := engine.Status(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Customer:    %s\n", status.PhoneNumber)
	fmt.Fprintf(os.Stdout, "Score:       %d\n", status.Score)
	fmt.Fprintf(os.Stdout, "Limit:       %s\n", domain.Rupees(status.Limit))
	fmt.Fprintf(os.Stdout, "Outstanding: %s\n", domain.Rupees(status.Outstanding))
	fmt.Fprintf(os.Stdout, "Available:   %s\n", domain.Rupees(status.AvailableCredit))
	for _, reason := range status.Reasons {
		fmt.Fprintf(os.Stdout, "  • %s\n", reason)
	}
	return nil
}

// ─── khata recalc ───────────────────────────────────────────────────────────

var khataRecalcCmd = &cobra.Command{
	Use:   "recalc PHONE",
	Short: "Recalculate a customer's credit score",
	Args:  cobra.ExactArgs(1),
	RunE:  runKhataRecalc,
}

func runKhataRecalc(cmd *cobra.Command, args []string) error {
	engine, db, err := openEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	score, err := engine.Recalculate(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Score: %d (limit %s)\n", score, domain.Rupees(khata.CalculateLimit(score)))
	return nil
}

// openEngine opens the configured database and builds a score engine on it.
func openEngine() (*khata.Engine, *sqlite.DB, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return khata.NewEngine(db), db, nil
}
