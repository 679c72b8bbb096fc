package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/site-selection/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "site-selection",
	Short: "Barangay site-selection and sales dashboards",
	Long:  "Loads a scored barangay boundary layer, colors it by score class, overlays competitor and branch locations, and renders summary tables, map layers and monthly sales views.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
