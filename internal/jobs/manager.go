package jobs

import (
	"errors"
	"fmt"
	"sync"

	"text-extractor/internal/domain"
)

// ErrInvocationRunning is returned when a click arrives while an extraction
// is in flight. The policy is reject-while-busy: at most one invocation runs.
var ErrInvocationRunning = errors.New("extraction already running")

// ErrNoRunningInvocation is returned when Finish is called with nothing in flight.
var ErrNoRunningInvocation = errors.New("no running extraction")

// Manager tracks the single allowed active invocation and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Invocation
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Invocation{
			Status: domain.InvocationStatusIdle,
		},
	}
}

// Start claims the manager for a new invocation and moves it to checking.
func (m *Manager) Start(invocationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrInvocationRunning
	}

	m.current = domain.Invocation{
		ID:     invocationID,
		Status: domain.InvocationStatusChecking,
	}
	return nil
}

// Transition validates and applies state transitions for current invocation.
func (m *Manager) Transition(status domain.InvocationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.InvocationStatusIdle {
		return fmt.Errorf("cannot transition without an active invocation")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current invocation.
func (m *Manager) Current() domain.Invocation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether an invocation is in flight.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// Finish ends the active invocation with a terminal status, whatever stage
// it reached. It is the only way the busy guard is released.
func (m *Manager) Finish(status domain.InvocationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isTerminal(status) {
		return fmt.Errorf("not a terminal status: %s", status)
	}
	if !isRunning(m.current.Status) {
		return ErrNoRunningInvocation
	}
	m.current.Status = status
	return nil
}

// isTerminal reports whether status ends an invocation.
func isTerminal(status domain.InvocationStatus) bool {
	switch status {
	case domain.InvocationStatusSucceeded,
		domain.InvocationStatusFailed,
		domain.InvocationStatusCancelled:
		return true
	default:
		return false
	}
}

// isRunning checks if a status represents an in-flight stage.
func isRunning(status domain.InvocationStatus) bool {
	switch status {
	case domain.InvocationStatusChecking,
		domain.InvocationStatusReading,
		domain.InvocationStatusWriting,
		domain.InvocationStatusRecognize,
		domain.InvocationStatusCopying:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the extraction state machine edges. Every
// running stage may fail or be cancelled; only copying may succeed.
func isValidTransition(from, to domain.InvocationStatus) bool {
	if isRunning(from) && (to == domain.InvocationStatusFailed || to == domain.InvocationStatusCancelled) {
		return true
	}

	switch from {
	case domain.InvocationStatusIdle:
		return to == domain.InvocationStatusChecking
	case domain.InvocationStatusChecking:
		return to == domain.InvocationStatusReading
	case domain.InvocationStatusReading:
		return to == domain.InvocationStatusWriting
	case domain.InvocationStatusWriting:
		return to == domain.InvocationStatusRecognize
	case domain.InvocationStatusRecognize:
		return to == domain.InvocationStatusCopying
	case domain.InvocationStatusCopying:
		return to == domain.InvocationStatusSucceeded
	case domain.InvocationStatusSucceeded, domain.InvocationStatusFailed, domain.InvocationStatusCancelled:
		return to == domain.InvocationStatusChecking || to == domain.InvocationStatusIdle
	default:
		return false
	}
}
