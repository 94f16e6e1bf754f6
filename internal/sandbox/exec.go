package sandbox

import (
	"context"
	stderrors "errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hpungsan/burrow/internal/errors"
)

// NoOutputSentinel replaces an empty combined output so tool layers always
// have text to show.
const NoOutputSentinel = "(no output)"

const truncationMarker = "\n... [output truncated]"

// ExecResult is the caller-facing outcome of a command run.
type ExecResult struct {
	Output    string `json:"output"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Executor runs commands in an agent's sandbox, acquiring one lazily.
type Executor struct {
	manager        *Manager
	defaultTimeout time.Duration
	maxOutputBytes int
}

// NewExecutor builds an executor over the manager.
func NewExecutor(manager *Manager, defaultTimeout time.Duration, maxOutputBytes int) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 60 * time.Second
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = 50000
	}
	return &Executor{
		manager:        manager,
		defaultTimeout: defaultTimeout,
		maxOutputBytes: maxOutputBytes,
	}
}

// Execute runs a shell command for an agent. A gone sandbox is recreated and
// the command retried exactly once; a second loss is reported as a failed
// result rather than an error. Caller cancellation never triggers recreation.
func (e *Executor) Execute(ctx context.Context, agentNorm, agentRaw, command, cwd string, timeout time.Duration) (*ExecResult, error) {
	if strings.TrimSpace(command) == "" {
		return &ExecResult{Output: "[stderr] empty command", ExitCode: 1}, nil
	}
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	for attempt := 0; attempt < 2; attempt++ {
		h, err := e.manager.Acquire(ctx, agentNorm, agentRaw)
		if err != nil {
			return nil, err
		}

		res, err := h.Sandbox.RunCommand(ctx, command, cwd, timeout)
		if err == nil {
			return e.format(res), nil
		}

		// The caller going away is not a sandbox failure. Never recreate
		// on cancellation.
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("command execution")
		}
		if errors.Is(err, errors.ErrCommandTimeout) {
			return nil, err
		}

		if IsGone(err) {
			e.manager.MarkLost(agentNorm, h.ID)
			if attempt == 0 {
				continue
			}
			return &ExecResult{
				Output:   "[stderr] sandbox was lost twice while running the command",
				ExitCode: 1,
			}, nil
		}

		var structured *errors.BurrowError
		if stderrors.As(err, &structured) {
			return nil, err
		}
		return nil, errors.NewSandboxUnavailable(err.Error())
	}

	// Unreachable: the loop always returns.
	return nil, errors.NewInternal(stderrors.New("execute fell through"))
}

// format assembles stdout and stderr into one text block, stderr lines
// prefixed so interleaved output stays attributable.
func (e *Executor) format(res *RunResult) *ExecResult {
	var b strings.Builder
	b.WriteString(res.Stdout)

	if res.Stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(res.Stdout, "\n") {
			b.WriteString("\n")
		}
		for _, line := range strings.Split(strings.TrimRight(res.Stderr, "\n"), "\n") {
			b.WriteString("[stderr] ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	output := b.String()
	truncated := false
	if len(output) > e.maxOutputBytes {
		// Back the cut up to a rune boundary so a multi-byte character is
		// never split.
		cut := e.maxOutputBytes
		for cut > 0 && !utf8.RuneStart(output[cut]) {
			cut--
		}
		output = output[:cut] + truncationMarker
		truncated = true
	}
	if strings.TrimSpace(output) == "" {
		output = NoOutputSentinel
	}

	return &ExecResult{Output: output, ExitCode: res.ExitCode, Truncated: truncated}
}
