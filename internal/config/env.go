package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"text-extractor/internal/domain"
)

// EnvOverrides holds TEXT_EXTRACTOR_* variables. Zero values leave the stored
// setting untouched.
type EnvOverrides struct {
	OCRCommand          string   `env:"TEXT_EXTRACTOR_OCR_COMMAND"`
	Languages           []string `env:"TEXT_EXTRACTOR_LANGUAGES" envSeparator:"+"`
	OCRTimeoutSeconds   int      `env:"TEXT_EXTRACTOR_OCR_TIMEOUT"`
	NotificationDelayMS int      `env:"TEXT_EXTRACTOR_NOTIFICATION_DELAY_MS"`
	TempDir             string   `env:"TEXT_EXTRACTOR_TEMP_DIR"`
	LogLevel            string   `env:"TEXT_EXTRACTOR_LOG_LEVEL"`
}

// LoadDotEnv loads variables from the given .env files. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ParseEnvOverrides reads overrides from the process environment.
func ParseEnvOverrides() (EnvOverrides, error) {
	var overrides EnvOverrides
	if err := env.Parse(&overrides); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse environment: %w", err)
	}
	return overrides, nil
}

// Apply layers non-zero overrides on top of settings.
func (o EnvOverrides) Apply(settings domain.Settings) domain.Settings {
	if o.OCRCommand != "" {
		settings.OCRCommand = o.OCRCommand
	}
	if len(o.Languages) > 0 {
		settings.Languages = append([]string(nil), o.Languages...)
	}
	if o.OCRTimeoutSeconds > 0 {
		settings.OCRTimeoutSeconds = o.OCRTimeoutSeconds
	}
	if o.NotificationDelayMS > 0 {
		settings.NotificationDelayMS = o.NotificationDelayMS
	}
	if o.TempDir != "" {
		settings.TempDir = o.TempDir
	}
	if o.LogLevel != "" {
		settings.LogLevel = o.LogLevel
	}
	return Normalize(settings)
}

// EnvStore wraps a Store and applies environment overrides on every Load.
// Save persists what the caller passes, never the overrides.
type EnvStore struct {
	Store
	overrides EnvOverrides
}

// NewEnvStore parses the environment once and wraps store.
func NewEnvStore(store Store) (*EnvStore, error) {
	overrides, err := ParseEnvOverrides()
	if err != nil {
		return nil, err
	}
	return &EnvStore{Store: store, overrides: overrides}, nil
}

// Load returns stored settings with overrides applied.
func (s *EnvStore) Load() (domain.Settings, error) {
	settings, err := s.Store.Load()
	if err != nil {
		return domain.Settings{}, err
	}
	return s.overrides.Apply(settings), nil
}
