package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a host command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s %s failed: %w output=%s", name, strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return out.Bytes(), nil
}

// ExitCode extracts a process exit status from a Run error, or -1.
func ExitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// InitScripts controls services through the SysV `service` wrapper.
type InitScripts struct {
	runner Runner
}

func NewInitScripts(r Runner) *InitScripts {
	if r == nil {
		r = ExecRunner{}
	}
	return &InitScripts{runner: r}
}

func (s *InitScripts) Name() string { return "initscripts" }

func (s *InitScripts) Start(ctx context.Context, service string) error {
	_, err := s.runner.Run(ctx, "service", service, "start")
	return err
}

func (s *InitScripts) Stop(ctx context.Context, service string) error {
	_, err := s.runner.Run(ctx, "service", service, "stop")
	return err
}

func (s *InitScripts) Restart(ctx context.Context, service string) error {
	_, err := s.runner.Run(ctx, "service", service, "restart")
	return err
}

// Status classifies `service <name> status` output. The systemd-style
// "Active:" lines are checked first; otherwise the LSB exit code decides
// (0 running, 1-3 stopped, anything else unknown).
func (s *InitScripts) Status(ctx context.Context, service string) (Status, error) {
	out, err := s.runner.Run(ctx, "service", service, "status")
	if st := classifyStatusOutput(string(out)); st != StatusUnknown {
		return st, nil
	}
	if err == nil {
		return StatusRunning, nil
	}
	if ctx.Err() != nil {
		return StatusUnknown, ctx.Err()
	}
	switch ExitCode(err) {
	case 1, 2, 3:
		return StatusStopped, nil
	}
	return StatusUnknown, err
}

func classifyStatusOutput(out string) Status {
	switch {
	case strings.Contains(out, "Active: active (running)"):
		return StatusRunning
	case strings.Contains(out, "Active: activating"):
		return StatusStarting
	case strings.Contains(out, "Active: failed"):
		return StatusFailed
	case strings.Contains(out, "Active: inactive (dead)"):
		return StatusStopped
	case strings.Contains(out, "is running"):
		return StatusRunning
	case strings.Contains(out, "is not running"):
		return StatusStopped
	}
	return StatusUnknown
}

// Personal.AI order the ending
