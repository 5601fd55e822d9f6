package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hireloop/resume-intake/internal/backfill"
)

var backfillApply bool

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Merge duplicate candidates and rewrite legacy identity keys",
	Long:  "Groups candidates by shared email or phone, merges each group into a canonical survivor, and rewrites identity keys to the current format. Runs as a dry run unless --apply is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		apply := backfillApply || cfg.Backfill.Apply
		report, err := backfill.New(st, zap.L(), apply).Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillApply, "apply", false, "apply changes instead of reporting what would change")
	rootCmd.AddCommand(backfillCmd)
}
