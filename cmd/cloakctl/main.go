package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cloakctl",
	Short: "Anonymize PII in text documents",
	Long: `cloakctl detects and replaces personally identifiable information
(names, organizations, locations, emails, phone numbers) in text documents,
keeping repeated entities consistent so anonymized output stays readable.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
