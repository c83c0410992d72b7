package panel

import (
	"fmt"
	"sync"
)

// StatusAreaRole is the key the button is registered under.
const StatusAreaRole = "textExtractor"

// Host is the desktop shell status area that owns the button's widget.
type Host interface {
	AddToStatusArea(role string, button *Button) error
	RemoveFromStatusArea(role string)
}

// Extension pairs exactly one Button creation with each Enable and one
// destruction with each Disable.
type Extension struct {
	mu      sync.Mutex
	factory func() *Button
	host    Host
	button  *Button
}

// NewExtension creates an extension that builds buttons with factory.
func NewExtension(factory func() *Button) *Extension {
	return &Extension{factory: factory}
}

// Enable creates the button and registers it with host. Enabling an already
// enabled extension is a no-op.
func (e *Extension) Enable(host Host) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.button != nil {
		return nil
	}

	button := e.factory()
	if err := host.AddToStatusArea(StatusAreaRole, button); err != nil {
		button.Destroy()
		return fmt.Errorf("register status area button: %w", err)
	}

	e.host = host
	e.button = button
	return nil
}

// Disable tears down the button and drops every reference. Safe to call
// more than once and before Enable.
func (e *Extension) Disable() {
	e.mu.Lock()
	button, host := e.button, e.host
	e.button, e.host = nil, nil
	e.mu.Unlock()

	if button == nil {
		return
	}
	button.Destroy()
	if host != nil {
		host.RemoveFromStatusArea(StatusAreaRole)
	}
}

// Button returns the live button, or nil when disabled.
func (e *Extension) Button() *Button {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.button
}
