package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/logger"
	"github.com/turtacn/apswitch/pkg/protocol"
)

// Status is the live state of one service as reported by the host.
type Status string

const (
	StatusRunning  Status = "running"
	StatusStarting Status = "starting"
	StatusStopped  Status = "stopped"
	StatusFailed   Status = "failed"
	StatusUnknown  Status = "unknown"
)

// Backend is one host service manager (systemd, initscripts). Every call is
// a single side-effecting request; nothing here retries.
type Backend interface {
	Name() string
	Start(ctx context.Context, service string) error
	Stop(ctx context.Context, service string) error
	Restart(ctx context.Context, service string) error
	Status(ctx context.Context, service string) (Status, error)
}

// ServiceManager drives host daemons through a Backend.
type ServiceManager struct {
	backend       Backend
	pollInterval  time.Duration
	statusTimeout time.Duration
	onPoll        func(service string, status Status)
}

// Option configures a ServiceManager.
type Option func(*ServiceManager)

// WithPollInterval sets the RestartAndWaitActive poll period.
func WithPollInterval(d time.Duration) Option {
	return func(sm *ServiceManager) { sm.pollInterval = d }
}

// WithStatusTimeout bounds each Status query.
func WithStatusTimeout(d time.Duration) Option {
	return func(sm *ServiceManager) { sm.statusTimeout = d }
}

// WithPollObserver is called with every status read while waiting.
func WithPollObserver(f func(service string, status Status)) Option {
	return func(sm *ServiceManager) { sm.onPoll = f }
}

// New creates a ServiceManager over backend.
func New(backend Backend, opts ...Option) *ServiceManager {
	sm := &ServiceManager{
		backend:       backend,
		pollInterval:  consts.DefaultPollInterval,
		statusTimeout: consts.DefaultStatusTimeout,
	}
	for _, o := range opts {
		o(sm)
	}
	return sm
}

// Backend returns the name of the service manager in use.
func (sm *ServiceManager) Backend() string {
	return sm.backend.Name()
}

// Start asks the host to start spec's service and surfaces a failure at once.
func (sm *ServiceManager) Start(ctx context.Context, spec protocol.DaemonSpec) error {
	logger.Log.Info("Supervisor: starting service", "service", spec.ServiceID, "backend", sm.backend.Name())
	if err := sm.backend.Start(ctx, spec.ServiceID); err != nil {
		return apperr.ForDaemon(apperr.ErrCodeStartFailed, "Start", spec.ServiceID, "service did not start", err)
	}
	return nil
}

// Stop asks the host to stop spec's service.
func (sm *ServiceManager) Stop(ctx context.Context, spec protocol.DaemonSpec) error {
	logger.Log.Info("Supervisor: stopping service", "service", spec.ServiceID, "backend", sm.backend.Name())
	if err := sm.backend.Stop(ctx, spec.ServiceID); err != nil {
		return apperr.ForDaemon(apperr.ErrCodeStopFailed, "Stop", spec.ServiceID, "service did not stop", err)
	}
	return nil
}

// Restart issues a restart without waiting for the service to settle.
func (sm *ServiceManager) Restart(ctx context.Context, spec protocol.DaemonSpec) error {
	logger.Log.Info("Supervisor: restarting service", "service", spec.ServiceID, "backend", sm.backend.Name())
	if err := sm.backend.Restart(ctx, spec.ServiceID); err != nil {
		return apperr.ForDaemon(apperr.ErrCodeStartFailed, "Restart", spec.ServiceID, "service did not restart", err)
	}
	return nil
}

// Status reads the service state, bounded by the status timeout.
func (sm *ServiceManager) Status(ctx context.Context, spec protocol.DaemonSpec) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, sm.statusTimeout)
	defer cancel()
	st, err := sm.backend.Status(ctx, spec.ServiceID)
	if err != nil {
		return StatusUnknown, err
	}
	return st, nil
}

// RestartAndWaitActive restarts spec's service once and polls its status
// every poll interval until it is running. It returns a Timeout error when
// timeout elapses first and StartFailed when the host reports the service
// failed. A status read that errors is treated as "not yet" and polling
// continues. Cancelling ctx stops the wait; the restart already issued keeps
// going on the host.
func (sm *ServiceManager) RestartAndWaitActive(ctx context.Context, spec protocol.DaemonSpec, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timedOut := func(st Status) error {
		if ctx.Err() != nil {
			return apperr.ForDaemon(apperr.ErrCodeTimeout, "RestartAndWaitActive", spec.ServiceID, "wait interrupted", ctx.Err())
		}
		return apperr.ForDaemon(apperr.ErrCodeTimeout, "RestartAndWaitActive", spec.ServiceID,
			"service not active after "+timeout.String()+" (last status "+string(st)+")", context.DeadlineExceeded)
	}

	logger.Log.Info("Supervisor: restarting service", "service", spec.ServiceID, "backend", sm.backend.Name(), "timeout", timeout)
	if err := sm.backend.Restart(waitCtx, spec.ServiceID); err != nil {
		if waitCtx.Err() != nil {
			return timedOut(StatusUnknown)
		}
		return apperr.ForDaemon(apperr.ErrCodeStartFailed, "RestartAndWaitActive", spec.ServiceID, "service did not restart", err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(sm.pollInterval)
	defer ticker.Stop()

	for {
		st, err := sm.Status(waitCtx, spec)
		if err != nil {
			logger.Log.Debug("Supervisor: status read failed while waiting", "service", spec.ServiceID, "err", err)
		}
		if sm.onPoll != nil {
			sm.onPoll(spec.ServiceID, st)
		}

		switch st {
		case StatusRunning:
			logger.Log.Info("Supervisor: service is active", "service", spec.ServiceID)
			return nil
		case StatusFailed:
			return apperr.ForDaemon(apperr.ErrCodeStartFailed, "RestartAndWaitActive", spec.ServiceID, "service reported failure", nil)
		}

		if !time.Now().Before(deadline) {
			return timedOut(st)
		}

		select {
		case <-waitCtx.Done():
			return timedOut(st)
		case <-ticker.C:
		}
	}
}

// IsTimeout reports whether err came from an expired RestartAndWaitActive.
func IsTimeout(err error) bool {
	return apperr.HasCode(err, apperr.ErrCodeTimeout) && !errors.Is(err, context.Canceled)
}

// Personal.AI order the ending
