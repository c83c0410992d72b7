package extract

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// String renders the command line for debug logs.
func (l CommandLog) String() string {
	parts := make([]string, 0, len(l.Args)+1)
	parts = append(parts, l.Command)
	for _, arg := range l.Args {
		if strings.ContainsAny(arg, " \t\"") {
			arg = `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// commandResult is the raw outcome of one process execution. ExitCode is -1
// when the process could not be started or did not exit normally.
type commandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code. The
// process is killed when ctx is done.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// isSpawnFailure reports whether the process never ran: an error without an
// exit status.
func isSpawnFailure(result commandResult, err error) bool {
	if err == nil || result.ExitCode >= 0 {
		return false
	}
	var exitErr *exec.ExitError
	return !errors.As(err, &exitErr)
}
