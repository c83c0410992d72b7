package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"text-extractor/internal/diagnostics"
	"text-extractor/internal/domain"
)

const installCommandTimeout = 20 * time.Minute

// windowsTesseractDir is where the UB Mannheim installer puts tesseract.exe.
const windowsTesseractDir = `C:\Program Files\Tesseract-OCR`

type installOption struct {
	manager  string
	commands [][]string
}

// InstallOrFixDiagnostic applies an OS-specific remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.ToolItemID(settings.OCRCommand):
		fixErr = installTesseractForCurrentOS(settings.OCRCommand)
	case diagnostics.ItemLanguages:
		fixErr = a.installMissingLanguages(settings)
	case diagnostics.ItemTempDir:
		settings, settingsChanged, fixErr = installOrFixTempDir(settings)
	case diagnostics.ItemClipboard:
		fixErr = fmt.Errorf("clipboard access cannot be repaired automatically; start a graphical session")
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		a.log.Warn().Str("check", id).Err(fixErr).Msg("diagnostic fix failed")
		return report, fixErr
	}
	return report, nil
}

// installMissingLanguages installs packs for configured but absent languages.
func (a *App) installMissingLanguages(settings domain.Settings) error {
	if a.checker == nil {
		return fmt.Errorf("diagnostics checker is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	installed, err := a.checker.InstalledLanguages(ctx, settings.OCRCommand)
	if err != nil {
		return fmt.Errorf("list installed languages: %w", err)
	}

	missing := diagnostics.MissingLanguages(settings.Languages, installed)
	if len(missing) == 0 {
		return nil
	}

	options, err := languageInstallOptions(goruntime.GOOS, missing)
	if err != nil {
		return err
	}
	if err := runFirstSuccessfulInstall(options); err != nil {
		return fmt.Errorf("install language packs %s: %w", strings.Join(missing, ", "), err)
	}
	return nil
}

func installTesseractForCurrentOS(command string) error {
	if err := runFirstSuccessfulInstall(tesseractInstallOptions(goruntime.GOOS)); err != nil {
		return fmt.Errorf("install tesseract: %w", err)
	}
	if goruntime.GOOS == "windows" {
		if err := ensureDirOnPATH(windowsTesseractDir); err != nil {
			return fmt.Errorf("add tesseract to PATH: %w", err)
		}
	}
	if err := requireToolsOnPath(command); err != nil {
		return fmt.Errorf("verify tesseract on PATH: %w", err)
	}
	return nil
}

// tesseractInstallOptions lists package manager commands per OS, in order of preference.
func tesseractInstallOptions(goos string) []installOption {
	switch goos {
	case "windows":
		return []installOption{
			{
				manager: "winget",
				commands: [][]string{
					{"winget", "install", "--id", "UB-Mannheim.TesseractOCR", "--exact", "--accept-source-agreements", "--accept-package-agreements"},
				},
			},
			{
				manager:  "choco",
				commands: [][]string{{"choco", "install", "tesseract", "-y"}},
			},
			{
				manager:  "scoop",
				commands: [][]string{{"scoop", "install", "tesseract"}},
			},
		}
	case "darwin":
		return []installOption{
			{
				manager:  "brew",
				commands: [][]string{{"brew", "install", "tesseract"}},
			},
		}
	default:
		return []installOption{
			{
				manager: "apt-get",
				commands: [][]string{
					{"apt-get", "update"},
					{"apt-get", "install", "-y", "tesseract-ocr"},
				},
			},
			{
				manager:  "dnf",
				commands: [][]string{{"dnf", "install", "-y", "tesseract"}},
			},
			{
				manager:  "pacman",
				commands: [][]string{{"pacman", "-Sy", "--noconfirm", "tesseract"}},
			},
			{
				manager:  "zypper",
				commands: [][]string{{"zypper", "install", "-y", "tesseract-ocr"}},
			},
			{
				manager:  "brew",
				commands: [][]string{{"brew", "install", "tesseract"}},
			},
		}
	}
}

// languageInstallOptions builds one install option per package manager that
// ships a package for every requested language.
func languageInstallOptions(goos string, codes []string) ([]installOption, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("no languages requested")
	}

	var managers []string
	switch goos {
	case "windows":
		return nil, fmt.Errorf("language data ships with the Windows installer; rerun it and select the languages")
	case "darwin":
		managers = []string{"brew"}
	default:
		managers = []string{"apt-get", "dnf", "pacman", "zypper", "brew"}
	}

	options := make([]installOption, 0, len(managers))
	for _, manager := range managers {
		packages, ok := packagesForManager(manager, codes)
		if !ok {
			continue
		}

		var commands [][]string
		switch manager {
		case "apt-get":
			commands = [][]string{
				{"apt-get", "update"},
				append([]string{"apt-get", "install", "-y"}, packages...),
			}
		case "pacman":
			commands = [][]string{append([]string{"pacman", "-Sy", "--noconfirm"}, packages...)}
		case "brew":
			commands = [][]string{append([]string{"brew", "install"}, packages...)}
		default:
			commands = [][]string{append([]string{manager, "install", "-y"}, packages...)}
		}
		options = append(options, installOption{manager: manager, commands: commands})
	}

	if len(options) == 0 {
		return nil, fmt.Errorf("no package manager provides all of: %s", strings.Join(codes, ", "))
	}
	return options, nil
}

// packagesForManager maps language codes to de-duplicated package names.
func packagesForManager(manager string, codes []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(codes))
	packages := make([]string, 0, len(codes))
	for _, code := range codes {
		pack := lookupLanguagePack(code)
		name, ok := pack.Packages[manager]
		if !ok {
			return nil, false
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		packages = append(packages, name)
	}
	if len(packages) == 0 {
		return nil, false
	}
	return packages, true
}

func installOrFixTempDir(settings domain.Settings) (domain.Settings, bool, error) {
	tempDir := strings.TrimSpace(settings.TempDir)
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	if err := os.MkdirAll(tempDir, 0o755); err == nil {
		return settings, false, nil
	} else if settings.TempDir == "" {
		return settings, false, fmt.Errorf("create temporary directory %s: %w", tempDir, err)
	}

	// Fall back to the OS default when the configured directory is unusable.
	settings.TempDir = ""
	return settings, true, nil
}

func ensureDirOnPATH(dir string) error {
	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(dir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", dir)
	}
	return os.Setenv("PATH", dir+string(os.PathListSeparator)+current)
}

func runFirstSuccessfulInstall(options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured for OS %s", goruntime.GOOS)
	}

	errorsByManager := make([]string, 0, len(options))
	atLeastOneManager := false

	for _, option := range options {
		if !commandAvailable(option.manager) {
			continue
		}
		atLeastOneManager = true
		if err := runInstallCommands(option.commands); err == nil {
			return nil
		} else {
			errorsByManager = append(errorsByManager, fmt.Sprintf("%s: %v", option.manager, err))
		}
	}

	if !atLeastOneManager {
		return fmt.Errorf("no supported package manager found for %s", goruntime.GOOS)
	}
	return errors.New(strings.Join(errorsByManager, " | "))
}

func runInstallCommands(commands [][]string) error {
	for _, command := range commands {
		if err := runCommandWithPossibleElevation(command); err != nil {
			return err
		}
	}
	return nil
}

func runCommandWithPossibleElevation(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}

	candidates := [][]string{command}
	if goruntime.GOOS == "linux" && requiresElevation(command[0]) {
		if commandAvailable("pkexec") {
			candidates = append(candidates, append([]string{"pkexec"}, command...))
		}
		if commandAvailable("sudo") {
			candidates = append(candidates, append([]string{"sudo", "-n"}, command...))
		}
	}

	attemptErrors := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if err := runCommand(candidate[0], candidate[1:]...); err == nil {
			return nil
		} else {
			attemptErrors = append(attemptErrors, err.Error())
		}
	}

	return errors.New(strings.Join(attemptErrors, " | "))
}

func runCommand(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", formatCommand(name, args), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", formatCommand(name, args), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", formatCommand(name, args), err, trimmed)
}

func formatCommand(name string, args []string) string {
	parts := append([]string{name}, args...)
	return strings.Join(parts, " ")
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	default:
		return false
	}
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func requireToolsOnPath(names ...string) error {
	missing := make([]string, 0, len(names))
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
