package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"text-extractor/internal/diagnostics"
)

var langsCmd = &cobra.Command{
	Use:   "langs",
	Short: "List configured recognition languages and their install state",
	Args:  cobra.NoArgs,
	RunE:  runLangs,
}

func init() {
	rootCmd.AddCommand(langsCmd)
}

func runLangs(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	checker := diagnostics.NewChecker(nil)
	installed, err := checker.InstalledLanguages(ctx, settings.OCRCommand)
	if err != nil {
		return fmt.Errorf("list installed languages: %w", err)
	}

	missing := map[string]bool{}
	for _, code := range diagnostics.MissingLanguages(settings.Languages, installed) {
		missing[code] = true
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configured:")
	for _, code := range settings.Languages {
		if missing[code] {
			fmt.Fprintf(out, "  %s %s\n", color.RedString("✗"), code)
			continue
		}
		fmt.Fprintf(out, "  %s %s\n", color.GreenString("✓"), code)
	}

	fmt.Fprintln(out, "Installed:")
	for _, code := range installed {
		fmt.Fprintf(out, "  %s\n", code)
	}
	return nil
}
