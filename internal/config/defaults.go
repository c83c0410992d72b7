package config

import (
	"os"
	"path/filepath"

	"text-extractor/internal/domain"
)

const (
	DefaultOCRCommand          = "tesseract"
	DefaultOCRTimeoutSeconds   = 30
	DefaultNotificationDelayMS = 1000
	DefaultLogLevel            = "info"
)

// DefaultLanguages is the recognition profile passed to the OCR engine as a hint list.
var DefaultLanguages = []string{"eng", "tur", "aze", "jpn"}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		OCRCommand:          DefaultOCRCommand,
		Languages:           append([]string(nil), DefaultLanguages...),
		OCRTimeoutSeconds:   DefaultOCRTimeoutSeconds,
		NotificationDelayMS: DefaultNotificationDelayMS,
		LogLevel:            DefaultLogLevel,
	}
}

// DefaultSettingsPath is ~/.text-extractor/settings.json.
func DefaultSettingsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".text-extractor", "settings.json"), nil
}
