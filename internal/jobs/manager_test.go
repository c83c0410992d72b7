package jobs

import (
	"testing"

	"text-extractor/internal/domain"
)

// TestManagerLifecycle verifies normal progression to succeeded state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("inv-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}

	for _, status := range []domain.InvocationStatus{
		domain.InvocationStatusReading,
		domain.InvocationStatusWriting,
		domain.InvocationStatusRecognize,
		domain.InvocationStatusCopying,
		domain.InvocationStatusSucceeded,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	current := m.Current()
	if current.Status != domain.InvocationStatusSucceeded || current.ID != "inv-1" {
		t.Fatalf("current = %+v", current)
	}
	if m.IsRunning() {
		t.Fatal("terminal state must not count as running")
	}
}

// TestManagerRejectsSecondStart checks the reject-while-busy policy.
func TestManagerRejectsSecondStart(t *testing.T) {
	m := NewManager()
	if err := m.Start("inv-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("inv-2"); err != ErrInvocationRunning {
		t.Fatalf("second start error = %v, want %v", err, ErrInvocationRunning)
	}
	if m.Current().ID != "inv-1" {
		t.Fatalf("current id = %s, want inv-1", m.Current().ID)
	}

	if err := m.Transition(domain.InvocationStatusFailed); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := m.Start("inv-2"); err != nil {
		t.Fatalf("start after failure: %v", err)
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Start("inv-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Transition(domain.InvocationStatusSucceeded); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if err := m.Transition(domain.InvocationStatusRecognize); err == nil {
		t.Fatal("skipping stages must be rejected")
	}
}

// TestManagerAnyStageMayFail checks failure edges from every stage.
func TestManagerAnyStageMayFail(t *testing.T) {
	stages := []domain.InvocationStatus{
		domain.InvocationStatusReading,
		domain.InvocationStatusWriting,
		domain.InvocationStatusRecognize,
		domain.InvocationStatusCopying,
	}
	for i := range stages {
		m := NewManager()
		if err := m.Start("inv"); err != nil {
			t.Fatalf("start: %v", err)
		}
		for _, status := range stages[:i+1] {
			if err := m.Transition(status); err != nil {
				t.Fatalf("transition to %s: %v", status, err)
			}
		}
		if err := m.Transition(domain.InvocationStatusFailed); err != nil {
			t.Fatalf("fail from %s: %v", stages[i], err)
		}
	}
}

// TestManagerFinishFromAnyStage checks terminal statuses release the guard
// even when stages were skipped.
func TestManagerFinishFromAnyStage(t *testing.T) {
	for _, terminal := range []domain.InvocationStatus{
		domain.InvocationStatusSucceeded,
		domain.InvocationStatusFailed,
		domain.InvocationStatusCancelled,
	} {
		m := NewManager()
		if err := m.Start("inv-1"); err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := m.Finish(terminal); err != nil {
			t.Fatalf("finish %s from checking: %v", terminal, err)
		}
		if m.IsRunning() {
			t.Fatalf("finished with %s but still running", terminal)
		}
		if err := m.Start("inv-2"); err != nil {
			t.Fatalf("start after %s: %v", terminal, err)
		}
	}
}

// TestManagerFinishRejectsIdleAndNonTerminal checks Finish preconditions.
func TestManagerFinishRejectsIdleAndNonTerminal(t *testing.T) {
	m := NewManager()
	if err := m.Finish(domain.InvocationStatusSucceeded); err != ErrNoRunningInvocation {
		t.Fatalf("finish on idle = %v, want %v", err, ErrNoRunningInvocation)
	}

	if err := m.Start("inv-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Finish(domain.InvocationStatusReading); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
	if err := m.Finish(domain.InvocationStatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := m.Finish(domain.InvocationStatusCancelled); err != ErrNoRunningInvocation {
		t.Fatalf("second finish = %v, want %v", err, ErrNoRunningInvocation)
	}
}
