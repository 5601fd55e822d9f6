package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/store"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Inspect stored candidates",
	Long:  "Commands for listing and viewing deduplicated candidate records.",
}

// -- candidates list --

var candidatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		candidates, err := st.ListCandidates(ctx, store.CandidateFilter{Limit: limit, Offset: offset})
		if err != nil {
			return eris.Wrap(err, "candidates list")
		}

		if len(candidates) == 0 {
			fmt.Fprintln(os.Stderr, "No candidates found.")
			return nil
		}

		counts, err := st.ResumeCountsByCandidate(ctx)
		if err != nil {
			return eris.Wrap(err, "candidates list")
		}

		formatCandidatesList(os.Stdout, candidates, counts)
		return nil
	},
}

// -- candidates show --

var candidatesShowCmd = &cobra.Command{
	Use:   "show <candidate-id>",
	Short: "Show one candidate and its resumes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "candidates show: invalid id %q", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		candidate, err := st.GetCandidate(ctx, id)
		if err != nil {
			return eris.Wrap(err, "candidates show")
		}
		resumes, err := st.ListResumesByCandidate(ctx, id)
		if err != nil {
			return eris.Wrap(err, "candidates show")
		}

		out := struct {
			Candidate *model.Candidate `json:"candidate"`
			Resumes   []model.Resume   `json:"resumes"`
		}{candidate, resumes}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	candidatesListCmd.Flags().Int("limit", 50, "max number of candidates to display")
	candidatesListCmd.Flags().Int("offset", 0, "number of candidates to skip")

	candidatesCmd.AddCommand(candidatesListCmd)
	candidatesCmd.AddCommand(candidatesShowCmd)
	rootCmd.AddCommand(candidatesCmd)
}

// formatCandidatesList writes a tabular list of candidates to w.
func formatCandidatesList(out io.Writer, candidates []model.Candidate, counts map[int64]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE\tRESUMES\tIDENTITY_KEY")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-----\t-------\t------------")

	for _, c := range candidates {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			c.ID,
			truncateCell(c.Name, 30),
			truncateCell(c.Email, 30),
			c.Phone,
			counts[c.ID],
			truncateCell(c.IdentityKey, 44),
		)
	}
	_ = w.Flush()
}

// truncateCell shortens long values for compact display.
func truncateCell(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
