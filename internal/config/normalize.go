package config

import (
	"strings"

	"text-extractor/internal/domain"
)

// Normalize trims user inputs, drops duplicate or blank languages and applies
// defaults for every unset field.
func Normalize(settings domain.Settings) domain.Settings {
	settings.OCRCommand = strings.TrimSpace(settings.OCRCommand)
	if settings.OCRCommand == "" {
		settings.OCRCommand = DefaultOCRCommand
	}

	settings.Languages = normalizeLanguages(settings.Languages)
	if len(settings.Languages) == 0 {
		settings.Languages = append([]string(nil), DefaultLanguages...)
	}

	if settings.OCRTimeoutSeconds <= 0 {
		settings.OCRTimeoutSeconds = DefaultOCRTimeoutSeconds
	}
	if settings.NotificationDelayMS <= 0 {
		settings.NotificationDelayMS = DefaultNotificationDelayMS
	}

	settings.TempDir = strings.TrimSpace(settings.TempDir)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}
	return settings
}

// normalizeLanguages splits "eng+jpn" style entries and keeps first occurrences.
func normalizeLanguages(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, code := range strings.Split(entry, "+") {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}
