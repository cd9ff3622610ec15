package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Runner launches the analysis engine CLI for one query and exposes its
// stream-JSON stdout. Timeout policy is the caller's concern; the runner only
// honors context cancellation.
type Runner struct {
	binaryPath   string
	systemPrompt string
	allowedTools []string
	extraEnv     []string
}

// Invocation describes one engine run.
type Invocation struct {
	Query           string
	ResumeSessionID string
}

// Process is a started engine run. Stdout must be drained before Wait.
type Process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
}

// Stdout is the engine's stream-JSON output.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

func NewRunner(binaryPath, systemPrompt string, allowedTools, extraEnv []string) *Runner {
	return &Runner{
		binaryPath:   strings.TrimSpace(binaryPath),
		systemPrompt: systemPrompt,
		allowedTools: allowedTools,
		extraEnv:     extraEnv,
	}
}

func (r *Runner) Start(ctx context.Context, inv Invocation) (*Process, error) {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--system-prompt", r.systemPrompt,
	}
	if len(r.allowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(r.allowedTools, ","))
	}
	if id := strings.TrimSpace(inv.ResumeSessionID); id != "" {
		args = append(args, "--resume", id)
	}
	args = append(args, inv.Query)

	cmd := exec.CommandContext(ctx, r.binaryPath, args...)
	cmd.Env = append(os.Environ(), r.extraEnv...)

	p := &Process{cmd: cmd}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout pipe: %w", err)
	}
	p.stdout = stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start engine %q: %w", r.binaryPath, err)
	}
	return p, nil
}

// Wait blocks until the engine exits. Context cancellation surfaces as the
// context error rather than "signal: killed".
func (p *Process) Wait(ctx context.Context) error {
	if err := p.cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errText := p.ErrOutput(); errText != "" {
			return fmt.Errorf("engine exited: %w: %s", err, errText)
		}
		return fmt.Errorf("engine exited: %w", err)
	}
	return nil
}

// ErrOutput returns everything the engine wrote to stderr so far. Non-empty
// stderr is a failure signal regardless of exit code.
func (p *Process) ErrOutput() string {
	return strings.TrimSpace(p.stderr.String())
}
