package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cloak/internal/models"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage NER model bundles",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models and their install state",
	RunE:  runModelsList,
}

var modelsInstallCmd = &cobra.Command{
	Use:   "install [name]",
	Short: "Download and install a model bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsInstall,
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsInstallCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModelsList(cmd *cobra.Command, _ []string) error {
	reg, err := models.LoadEmbeddedRegistry()
	if err != nil {
		return err
	}
	root, err := models.DefaultModelsRoot()
	if err != nil {
		return err
	}

	for _, m := range reg.Models {
		state := "not installed"
		if models.IsInstalled(root, m) {
			state = "installed"
		}
		marker := " "
		if m.Recommended {
			marker = "*"
		}
		cmd.Printf("%s %-14s %-9s %6.0f MB  %s\n", marker, m.Name, state, float64(m.SizeBytes)/1e6, m.DisplayName)
	}
	cmd.Println("\n* recommended")
	return nil
}

func runModelsInstall(cmd *cobra.Command, args []string) error {
	reg, err := models.LoadEmbeddedRegistry()
	if err != nil {
		return err
	}
	spec, ok := reg.Find(args[0])
	if !ok {
		return fmt.Errorf("unknown model %q, see \"cloakctl models list\"", args[0])
	}
	root, err := models.DefaultModelsRoot()
	if err != nil {
		return err
	}
	if models.IsInstalled(root, spec) {
		cmd.Printf("%s is already installed\n", spec.Name)
		return nil
	}

	cmd.Printf("downloading %s (%.0f MB)...\n", spec.Name, float64(spec.SizeBytes)/1e6)
	var lastPct int64 = -1
	err = models.NewDownloader().DownloadAndInstall(context.Background(), spec, root, func(p models.Progress) {
		if p.Total <= 0 {
			return
		}
		pct := p.Downloaded * 100 / p.Total
		if pct/10 > lastPct/10 {
			lastPct = pct
			cmd.Printf("  %d%%\n", pct)
		}
	})
	if err != nil {
		return err
	}
	cmd.Printf("installed %s into %s\n", spec.Name, models.InstallPath(root, spec.Name))
	return nil
}
