// Package sandbox manages remote execution environments for agents: the
// provider client, the per-agent lifecycle manager, and the command executor.
// Sandboxes are ephemeral; the backup store is the source of truth and a lost
// sandbox is recreated and refilled from it.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sandbox is one live remote environment.
type Sandbox interface {
	// ID returns the provider's identifier for this sandbox.
	ID() string

	// List returns the paths of all files under root, recursively.
	List(ctx context.Context, root string) ([]string, error)

	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error

	// MakeDirs creates the directory and any missing parents.
	MakeDirs(ctx context.Context, dir string) error

	// RunCommand executes a shell command and returns its combined result.
	// The timeout bounds remote execution, independent of ctx.
	RunCommand(ctx context.Context, command, cwd string, timeout time.Duration) (*RunResult, error)
}

// RunResult is the raw outcome of a remote command.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Provider creates and reconnects sandboxes.
type Provider interface {
	Create(ctx context.Context) (Sandbox, error)
	Connect(ctx context.Context, id string) (Sandbox, error)
}

// GoneError marks a sandbox as unrecoverable: paused, expired, or deleted by
// the provider. Callers must not retry against the same sandbox.
type GoneError struct {
	SandboxID string
	Err       error
}

func (e *GoneError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sandbox %s gone: %v", e.SandboxID, e.Err)
	}
	return fmt.Sprintf("sandbox %s gone", e.SandboxID)
}

func (e *GoneError) Unwrap() error {
	return e.Err
}

// goneMarkers classify errors from providers that do not tag GoneError
// themselves. Kept as a fallback only; the HTTP provider tags at the boundary.
var goneMarkers = []string{
	"paused",
	"not found",
	"does not exist",
	"not running",
}

// IsGone reports whether err means the sandbox is gone for good.
func IsGone(err error) bool {
	if err == nil {
		return false
	}

	var gone *GoneError
	if errors.As(err, &gone) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range goneMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
