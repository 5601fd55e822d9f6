package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hireloop/resume-intake/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "resume-intake",
	Short: "Resume ingestion and candidate identity resolution pipeline",
	Long:  "Parses resume documents into typed sections, extracts contact identity with optional model escalation, and dedupes candidates behind versioned identity keys.",
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
