package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"text-extractor/internal/domain"
)

// Diagnostic item IDs that are not derived from the OCR command name.
const (
	ItemLanguages = "languages"
	ItemTempDir   = "temp_dir"
	ItemClipboard = "clipboard"
)

const listLangsTimeout = 10 * time.Second

// Checker validates the OCR executable, its language data, the temp
// directory and clipboard access.
type Checker struct {
	lookPath      func(string) (string, error)
	listLangs     func(ctx context.Context, command string) (string, error)
	mkdirAll      func(string, os.FileMode) error
	createTemp    func(string, string) (*os.File, error)
	remove        func(string) error
	clipboardInit func() error
}

// NewChecker builds a checker using real OS dependencies. clipboardInit may
// be nil when no clipboard backend is wired.
func NewChecker(clipboardInit func() error) *Checker {
	return &Checker{
		lookPath:      exec.LookPath,
		listLangs:     execListLangs,
		mkdirAll:      os.MkdirAll,
		createTemp:    os.CreateTemp,
		remove:        os.Remove,
		clipboardInit: clipboardInit,
	}
}

// ToolItemID returns the diagnostic ID for the OCR executable check.
func ToolItemID(command string) string {
	return "tool_" + command
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	tool := c.checkTool(settings.OCRCommand)
	items := []domain.DiagnosticItem{
		tool,
		c.checkLanguages(settings.OCRCommand, settings.Languages, tool.Status == domain.DiagnosticStatusPass),
		c.checkTempDir(settings.TempDir),
		c.checkClipboard(),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// InstalledLanguages asks the OCR executable which language data it has.
func (c *Checker) InstalledLanguages(ctx context.Context, command string) ([]string, error) {
	out, err := c.listLangs(ctx, command)
	if err != nil {
		return nil, err
	}
	return ParseLanguageList(out), nil
}

// checkTool verifies the OCR executable is on PATH.
func (c *Checker) checkTool(name string) domain.DiagnosticItem {
	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      ToolItemID(name),
			Name:    name,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    "Please install Tesseract OCR: sudo apt install tesseract-ocr",
			Fixable: true,
		}
	}

	return domain.DiagnosticItem{
		ID:      ToolItemID(name),
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkLanguages verifies every configured language has installed data.
func (c *Checker) checkLanguages(command string, wanted []string, toolFound bool) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemLanguages,
		Name: "Recognition languages",
	}

	if !toolFound {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Cannot list languages until the OCR tool is installed."
		item.Hint = "Fix the OCR tool check first."
		return item
	}

	ctx, cancel := context.WithTimeout(context.Background(), listLangsTimeout)
	defer cancel()

	installed, err := c.InstalledLanguages(ctx, command)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot list installed languages: %v", err)
		item.Hint = "Run the OCR tool with --list-langs to inspect its data directory."
		return item
	}

	missing := MissingLanguages(wanted, installed)
	if len(missing) > 0 {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Missing language data: %s", strings.Join(missing, ", "))
		item.Hint = "Install the language packs or remove them from settings."
		item.Fixable = true
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Installed: %s", strings.Join(wanted, "+"))
	return item
}

// checkTempDir validates the temp directory exists and is writable.
func (c *Checker) checkTempDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemTempDir,
		Name: "Temporary directory",
	}

	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create temporary directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		item.Fixable = true
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Temporary directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory for intermediate images."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// checkClipboard verifies the clipboard backend can be opened.
func (c *Checker) checkClipboard() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemClipboard,
		Name: "Clipboard",
	}

	if c.clipboardInit == nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No clipboard backend configured."
		return item
	}
	if err := c.clipboardInit(); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Clipboard unavailable: %v", err)
		item.Hint = "A graphical session is required. On Linux install the X11 development libraries."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = "Clipboard is accessible"
	return item
}

// ParseLanguageList extracts language codes from --list-langs output. The
// header line and the orientation-only "osd" model are skipped.
func ParseLanguageList(output string) []string {
	var langs []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of available languages") || line == "osd" {
			continue
		}
		if strings.ContainsAny(line, " \t:") {
			continue
		}
		langs = append(langs, line)
	}
	return langs
}

// MissingLanguages returns wanted codes absent from installed, in order.
func MissingLanguages(wanted, installed []string) []string {
	have := make(map[string]struct{}, len(installed))
	for _, code := range installed {
		have[code] = struct{}{}
	}

	var missing []string
	for _, code := range wanted {
		if _, ok := have[code]; !ok {
			missing = append(missing, code)
		}
	}
	return missing
}

// execListLangs runs "<command> --list-langs". Older releases print the list
// on stderr, so both streams are combined.
func execListLangs(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, command, "--list-langs").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s --list-langs: %w", command, err)
	}
	return string(out), nil
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	listLangs func(ctx context.Context, command string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	clipboardInit func() error,
) *Checker {
	return &Checker{
		lookPath:      lookPath,
		listLangs:     listLangs,
		mkdirAll:      mkdirAll,
		createTemp:    createTemp,
		remove:        remove,
		clipboardInit: clipboardInit,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
