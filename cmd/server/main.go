package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"attendance-monitor/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Attendance and endpoint monitoring dashboard API",
	Long: `Serves the dashboard API that desktop agents report to: presence
heartbeats, attendance punches, activity logs and screenshots, and the
command queue agents poll for remote actions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		return nil
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
