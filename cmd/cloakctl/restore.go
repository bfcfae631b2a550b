package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cloak/internal/anonymize"
	"cloak/internal/redact"
)

var restoreSpansPath string

var restoreCmd = &cobra.Command{
	Use:   "restore [file|-]",
	Short: "Restore original entities into anonymized text",
	Long: `Reads anonymized text from the given file (or stdin) and replaces
placeholders with the original entity values recorded in the result JSON
produced by "cloakctl anonymize --json".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVar(&restoreSpansPath, "spans", "", "path to the anonymize result JSON (required)")
	_ = restoreCmd.MarkFlagRequired("spans")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(restoreSpansPath)
	if err != nil {
		return fmt.Errorf("read spans file: %w", err)
	}
	var result anonymize.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("parse spans file: %w", err)
	}

	var text string
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(raw)
	} else {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		text = string(raw)
	}

	cmd.Println(redact.Restore(text, result.Applied))
	return nil
}
