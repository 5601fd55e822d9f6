package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hireloop/resume-intake/internal/ingest"
)

var ingestConcurrency int

var ingestCmd = &cobra.Command{
	Use:   "ingest <directory>",
	Short: "Ingest every supported resume file under a directory",
	Long:  "Discovers supported files (md, txt, pdf), parses each into typed sections, resolves candidate identity, and persists deduplicated candidates and resumes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := svc.IngestDir(ctx, args[0], ingestConcurrency)
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stdout, report.Summary())
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", ingest.DefaultConcurrency, "number of documents ingested in parallel")
	rootCmd.AddCommand(ingestCmd)
}
