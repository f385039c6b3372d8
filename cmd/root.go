package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/uncertainty-goals/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "uncertainty-goals",
	Short: "Clinical goal evaluation across plan uncertainty scenarios",
	Long:  "Scores a plan's clinical goals against the nominal dose and every uncertainty scenario dose, writes the results as JSON, CSV, HTML or XLSX, and builds voxel-wise min/max robust doses.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
