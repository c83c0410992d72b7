package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"text-extractor/internal/config"
	"text-extractor/internal/domain"
	"text-extractor/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "text-extractor",
	Short: "Extract text from a clipboard image with Tesseract OCR",
	Long: `text-extractor reads an image from the clipboard, runs it through the
Tesseract OCR engine and replaces the clipboard with the recognized text.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "settings file (default ~/.text-extractor/settings.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadSettings reads persisted settings with .env and environment overrides.
func loadSettings() (domain.Settings, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("resolve user home: %w", err)
	}
	if err := config.LoadDotEnv(".env", filepath.Join(homeDir, ".text-extractor", ".env")); err != nil {
		return domain.Settings{}, err
	}

	path := cfgFile
	if path == "" {
		if path, err = config.DefaultSettingsPath(); err != nil {
			return domain.Settings{}, fmt.Errorf("resolve settings path: %w", err)
		}
	}

	store, err := config.NewEnvStore(config.NewJSONStore(path))
	if err != nil {
		return domain.Settings{}, err
	}
	settings, err := store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if logLevel != "" {
		settings.LogLevel = logLevel
	}
	return settings, nil
}

// newLogger builds the stderr logger for CLI runs.
func newLogger(settings domain.Settings) zerolog.Logger {
	return logging.New(logging.Options{
		Level:   settings.LogLevel,
		Output:  os.Stderr,
		Service: "text-extractor-cli",
	})
}
