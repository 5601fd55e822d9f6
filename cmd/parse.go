package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hireloop/resume-intake/internal/identity"
	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/parser"
)

// parseOutput is the JSON payload printed by the parse command.
type parseOutput struct {
	Document model.ParsedDocument    `json:"document"`
	Identity model.IdentityCandidate `json:"identity"`
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a single resume without persisting it",
	Long:  "Loads one document, parses it into typed sections, and resolves identity with rules only. Prints the result as JSON. Useful for debugging parser and identity behavior.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ld, err := initLoader()
		if err != nil {
			return err
		}

		markdown, err := ld.ExtractMarkdown(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "parse")
		}

		doc := parser.New().Parse(markdown, filepath.Base(args[0]))
		ident := identity.NewExtractor(nil).Extract(ctx, doc)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(parseOutput{Document: doc, Identity: ident})
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
