package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"text-extractor/internal/clipboard"
	"text-extractor/internal/diagnostics"
	"text-extractor/internal/domain"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the OCR engine, language data, temp dir and clipboard",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	backend := clipboard.NewSystemBackend()
	report := diagnostics.NewChecker(backend.Init).Run(settings)

	pass := color.New(color.FgGreen, color.Bold).SprintFunc()
	fail := color.New(color.FgRed, color.Bold).SprintFunc()
	hint := color.New(color.FgYellow).SprintFunc()

	out := cmd.OutOrStdout()
	for _, item := range report.Items {
		status := pass("PASS")
		if item.Status == domain.DiagnosticStatusFail {
			status = fail("FAIL")
		}
		fmt.Fprintf(out, "%s  %-22s %s\n", status, item.Name, item.Message)
		if item.Status == domain.DiagnosticStatusFail && item.Hint != "" {
			fmt.Fprintf(out, "      %s\n", hint(item.Hint))
		}
	}

	if report.HasFailures {
		return fmt.Errorf("%d check(s) failed", len(report.Failed()))
	}
	return nil
}
