package bootstrap

import (
	"context"
	"fmt"
	goruntime "runtime"
	"strings"
	"time"

	"text-extractor/internal/config"
	"text-extractor/internal/domain"
)

// languagePackCatalog lists recognition languages offered for one-click install.
var languagePackCatalog = []domain.LanguagePackOption{
	newLanguagePack("eng", "English", "english"),
	newLanguagePack("tur", "Turkish", "turkish"),
	newLanguagePack("aze", "Azerbaijani", "azerbaijani"),
	newLanguagePack("jpn", "Japanese", "japanese"),
	newLanguagePack("deu", "German", "german"),
	newLanguagePack("fra", "French", "french"),
	newLanguagePack("spa", "Spanish", "spanish"),
	newLanguagePack("rus", "Russian", "russian"),
	newLanguagePack("ara", "Arabic", "arabic"),
	newLanguagePack("kor", "Korean", "korean"),
	newLanguagePack("chi_sim", "Chinese (Simplified)", "chinese_simplified"),
}

// newLanguagePack derives per-manager package names from a tesseract
// language code. English ships with the Homebrew formula itself.
func newLanguagePack(code, name, suseName string) domain.LanguagePackOption {
	brew := "tesseract-lang"
	if code == "eng" {
		brew = ""
	}

	packages := map[string]string{
		"apt-get": "tesseract-ocr-" + strings.ReplaceAll(code, "_", "-"),
		"dnf":     "tesseract-langpack-" + code,
		"pacman":  "tesseract-data-" + code,
		"brew":    brew,
	}
	if suseName != "" {
		packages["zypper"] = "tesseract-ocr-traineddata-" + suseName
	}

	return domain.LanguagePackOption{
		Code:     code,
		Name:     name,
		Packages: packages,
	}
}

// lookupLanguagePack returns the catalog entry for code or a derived one.
func lookupLanguagePack(code string) domain.LanguagePackOption {
	for _, pack := range languagePackCatalog {
		if pack.Code == code {
			return pack
		}
	}
	return newLanguagePack(code, code, "")
}

// GetLanguagePacks returns the catalog marked with installed and enabled state.
func (a *App) GetLanguagePacks() []domain.LanguagePackOption {
	packs := make([]domain.LanguagePackOption, len(languagePackCatalog))
	copy(packs, languagePackCatalog)

	settings := a.currentSettings()
	var installed []string
	if a.checker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		langs, err := a.checker.InstalledLanguages(ctx, settings.OCRCommand)
		if err != nil {
			a.log.Debug().Err(err).Msg("list installed languages")
		}
		installed = langs
	}

	return markLanguagePacks(packs, installed, settings.Languages)
}

// InstallLanguagePack installs one language pack and enables it in settings.
func (a *App) InstallLanguagePack(code string) (domain.Settings, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Settings{}, fmt.Errorf("language code is required")
	}
	if !isCatalogLanguage(code) {
		return domain.Settings{}, fmt.Errorf("unknown language code: %s", code)
	}
	if a.Store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	options, err := languageInstallOptions(goruntime.GOOS, []string{code})
	if err != nil {
		return domain.Settings{}, err
	}
	if err := runFirstSuccessfulInstall(options); err != nil {
		return domain.Settings{}, fmt.Errorf("install language %s: %w", code, err)
	}

	settings = enableLanguage(settings, code)
	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(settings)
	return settings, nil
}

func isCatalogLanguage(code string) bool {
	for _, pack := range languagePackCatalog {
		if pack.Code == code {
			return true
		}
	}
	return false
}

// enableLanguage appends code to the configured languages once.
func enableLanguage(settings domain.Settings, code string) domain.Settings {
	for _, existing := range settings.Languages {
		if existing == code {
			return settings
		}
	}
	settings.Languages = append(append([]string(nil), settings.Languages...), code)
	return config.Normalize(settings)
}

func markLanguagePacks(packs []domain.LanguagePackOption, installed, enabled []string) []domain.LanguagePackOption {
	installedSet := make(map[string]struct{}, len(installed))
	for _, code := range installed {
		installedSet[code] = struct{}{}
	}
	enabledSet := make(map[string]struct{}, len(enabled))
	for _, code := range enabled {
		enabledSet[code] = struct{}{}
	}

	for i := range packs {
		_, packs[i].Installed = installedSet[packs[i].Code]
		_, packs[i].Enabled = enabledSet[packs[i].Code]
	}
	return packs
}
