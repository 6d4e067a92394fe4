package supervisor

import (
	"context"
	"fmt"
	"os"
	"strings"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/turtacn/apswitch/pkg/logger"
)

// unitConn is the slice of the systemd D-Bus API the backend uses.
type unitConn interface {
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	UnmaskUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]sddbus.UnmaskUnitFileChange, error)
	GetUnitPropertyContext(ctx context.Context, unit, propertyName string) (*sddbus.Property, error)
	Close()
}

// Systemd controls services as systemd units over D-Bus.
type Systemd struct {
	conn unitConn
}

// SystemdAvailable reports whether the host booted with systemd.
func SystemdAvailable() bool {
	_, err := os.Stat("/run/systemd/system")
	return err == nil
}

// NewSystemd connects to the system bus.
func NewSystemd(ctx context.Context) (*Systemd, error) {
	conn, err := sddbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &Systemd{conn: conn}, nil
}

func (s *Systemd) Name() string { return "systemd" }

// Close releases the bus connection.
func (s *Systemd) Close() { s.conn.Close() }

func unitName(service string) string {
	if strings.Contains(service, ".") {
		return service
	}
	return service + ".service"
}

// Start unmasks the unit first; hostapd ships masked on Raspberry Pi OS.
func (s *Systemd) Start(ctx context.Context, service string) error {
	unit := unitName(service)
	if changes, err := s.conn.UnmaskUnitFilesContext(ctx, []string{unit}, false); err != nil {
		logger.Log.Warn("Systemd: unmask failed", "unit", unit, "err", err)
	} else if len(changes) > 0 {
		logger.Log.Info("Systemd: unit unmasked", "unit", unit)
	}
	return s.runJob(ctx, unit, "start", s.conn.StartUnitContext)
}

func (s *Systemd) Stop(ctx context.Context, service string) error {
	return s.runJob(ctx, unitName(service), "stop", s.conn.StopUnitContext)
}

func (s *Systemd) Restart(ctx context.Context, service string) error {
	return s.runJob(ctx, unitName(service), "restart", s.conn.RestartUnitContext)
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

// runJob enqueues a job in "replace" mode and waits for systemd's result.
func (s *Systemd) runJob(ctx context.Context, unit, verb string, job jobFunc) error {
	done := make(chan string, 1)
	if _, err := job(ctx, unit, "replace", done); err != nil {
		return fmt.Errorf("%s %s: %w", verb, unit, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("%s %s: job %s", verb, unit, result)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s %s: %w", verb, unit, ctx.Err())
	}
}

func (s *Systemd) Status(ctx context.Context, service string) (Status, error) {
	prop, err := s.conn.GetUnitPropertyContext(ctx, unitName(service), "ActiveState")
	if err != nil {
		return StatusUnknown, err
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return StatusUnknown, fmt.Errorf("unexpected ActiveState value %v", prop.Value)
	}
	return activeStateStatus(state), nil
}

// activeStateStatus maps a systemd ActiveState to Status.
func activeStateStatus(state string) Status {
	switch state {
	case "active", "reloading":
		return StatusRunning
	case "activating":
		return StatusStarting
	case "inactive", "deactivating":
		return StatusStopped
	case "failed":
		return StatusFailed
	}
	return StatusUnknown
}

// Personal.AI order the ending
