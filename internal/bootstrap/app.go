package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"text-extractor/internal/clipboard"
	"text-extractor/internal/config"
	"text-extractor/internal/diagnostics"
	"text-extractor/internal/domain"
	"text-extractor/internal/extract"
	"text-extractor/internal/jobs"
	"text-extractor/internal/logging"
	"text-extractor/internal/panel"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runtime event names pushed to the frontend.
const (
	EventPanelRegister       = "panel:register"
	EventPanelUnregister     = "panel:unregister"
	EventNotificationShow    = "notification:show"
	EventNotificationDismiss = "notification:dismiss"
	EventInvocation          = "invocation:event"
)

// ErrNotEnabled is returned when the panel button is not registered.
var ErrNotEnabled = errors.New("extension is not enabled")

// panelRegistration is the payload of EventPanelRegister.
type panelRegistration struct {
	Role  string `json:"role"`
	Label string `json:"label"`
}

// App wires configuration, diagnostics, the panel extension and the Wails
// runtime. It is the status-area host and the notification surface.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Diagnostics domain.DiagnosticReport
	Extension   *panel.Extension
	assets      fs.FS
	checker     *diagnostics.Checker
	log         zerolog.Logger
	newPipeline func(settings domain.Settings) panel.Runner
	emit        func(ctx context.Context, name string, data ...interface{})

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
	registered map[string]*panel.Button
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := config.LoadDotEnv(".env", filepath.Join(homeDir, ".text-extractor", ".env")); err != nil {
		return nil, err
	}

	settingsPath, err := config.DefaultSettingsPath()
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	jsonStore := config.NewJSONStore(settingsPath)
	store, err := config.NewEnvStore(jsonStore)
	if err != nil {
		return nil, err
	}
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	log := logging.New(logging.Options{Level: settings.LogLevel})
	log.Info().Str("path", jsonStore.Path()).Msg("settings loaded")
	backend := clipboard.NewSystemBackend()
	checker := diagnostics.NewChecker(backend.Init)
	report := checker.Run(settings)
	for _, item := range report.Failed() {
		log.Warn().Str("check", item.ID).Msg(item.Message)
	}

	clip := clipboard.New(backend)
	app := &App{
		Settings:    settings,
		Store:       store,
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		log:         log,
		newPipeline: func(settings domain.Settings) panel.Runner {
			return NewPipeline(settings, clip, log)
		},
		emit:   wailsruntime.EventsEmit,
		events: jobs.NewEventBus(1000),
	}
	app.Extension = panel.NewExtension(app.newButton)
	return app, nil
}

// NewPipeline builds the extraction pipeline for the given settings.
func NewPipeline(settings domain.Settings, clip *clipboard.Clipboard, log zerolog.Logger) *extract.Pipeline {
	return extract.NewPipeline(PipelineOptions(settings, log), clip, clip)
}

// PipelineOptions maps persisted settings to pipeline options.
func PipelineOptions(settings domain.Settings, log zerolog.Logger) extract.Options {
	return extract.Options{
		OCRCommand: settings.OCRCommand,
		Languages:  settings.Languages,
		Timeout:    time.Duration(settings.OCRTimeoutSeconds) * time.Second,
		TempDir:    settings.TempDir,
		Logger:     logging.Component(log, "extract"),
	}
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Text Extractor",
		Width:       420,
		Height:      560,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores the Wails runtime context and enables the extension.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	if err := a.Extension.Enable(a); err != nil {
		a.log.Error().Err(err).Msg("enable extension")
	}
}

// Shutdown disables the extension and drops the runtime context.
func (a *App) Shutdown(ctx context.Context) {
	a.Extension.Disable()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = nil
}

// AddToStatusArea registers button under role and announces it to the frontend.
func (a *App) AddToStatusArea(role string, button *panel.Button) error {
	a.mu.Lock()
	if a.registered == nil {
		a.registered = make(map[string]*panel.Button)
	}
	if _, exists := a.registered[role]; exists {
		a.mu.Unlock()
		return fmt.Errorf("status area role already taken: %s", role)
	}
	a.registered[role] = button
	a.mu.Unlock()

	a.emitEvent(EventPanelRegister, panelRegistration{Role: role, Label: button.Label()})
	return nil
}

// RemoveFromStatusArea unregisters the button under role.
func (a *App) RemoveFromStatusArea(role string) {
	a.mu.Lock()
	delete(a.registered, role)
	a.mu.Unlock()

	a.emitEvent(EventPanelUnregister, panelRegistration{Role: role})
}

// Show pushes a notification to the frontend.
func (a *App) Show(notification domain.Notification) {
	a.emitEvent(EventNotificationShow, notification)
}

// Dismiss asks the frontend to remove a notification.
func (a *App) Dismiss(notification domain.Notification) {
	a.emitEvent(EventNotificationDismiss, notification)
}

// Click forwards a pointer press from the frontend to the panel button. It
// reports whether the event was consumed.
func (a *App) Click(button int) (bool, error) {
	b := a.Extension.Button()
	if b == nil {
		return false, ErrNotEnabled
	}
	return b.Click(panel.MouseButton(button)) == panel.EventStop, nil
}

// CurrentInvocation returns the latest invocation snapshot.
func (a *App) CurrentInvocation() domain.Invocation {
	b := a.Extension.Button()
	if b == nil {
		return domain.Invocation{Status: domain.InvocationStatusIdle}
	}
	return b.Current()
}

// InvocationEvents returns all events with sequence greater than sinceSeq.
func (a *App) InvocationEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// InvocationHistory returns the retained events of one invocation.
func (a *App) InvocationHistory(id string) []jobs.Event {
	b := a.Extension.Button()
	if b == nil {
		return nil
	}
	return b.InvocationEvents(id)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// The next extraction picks them up.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// newButton builds the panel button. The pipeline is rebuilt from the
// current settings on every click.
func (a *App) newButton() *panel.Button {
	a.mu.Lock()
	delay := time.Duration(a.Settings.NotificationDelayMS) * time.Millisecond
	a.mu.Unlock()

	return panel.NewButton(panel.ButtonOptions{
		Pipeline: settingsPipeline{app: a},
		Sink:     a,
		Delay:    delay,
		Events:   a.events,
		OnEvent:  a.publishInvocationEvent,
		Logger:   logging.Component(a.log, "panel"),
	})
}

// currentSettings returns a snapshot of the active settings.
func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	settings := a.Settings
	settings.Languages = append([]string(nil), a.Settings.Languages...)
	return settings
}

// publishInvocationEvent emits one stored invocation event to the frontend.
func (a *App) publishInvocationEvent(event jobs.Event) {
	a.emitEvent(EventInvocation, event)
}

// emitEvent sends a runtime push event once the frontend is attached.
func (a *App) emitEvent(name string, data interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	emit := a.emit
	a.mu.Unlock()
	if ctx != nil && emit != nil {
		emit(ctx, name, data)
	}
}

// settingsPipeline resolves the pipeline from the app settings per run.
type settingsPipeline struct {
	app *App
}

// Run builds a pipeline for the current settings and runs it.
func (p settingsPipeline) Run(ctx context.Context, req extract.Request) (extract.Result, error) {
	return p.app.newPipeline(p.app.currentSettings()).Run(ctx, req)
}
