// Package cli implements the dukaan command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the build version, overridden at link time.
var Version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dukaan",
	Short: "Kirana store backend with khata credit scoring",
	Long: `Dukaan is the backend for a kirana (neighborhood) store: point-of-sale
billing, inventory, group-buy deals, and a khata credit ledger with a
behavior-based credit score for every store-credit customer.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default ~/.dukaan/config.toml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dukaan version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "dukaan %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
