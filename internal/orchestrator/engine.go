package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/turtacn/apswitch/internal/marker"
	"github.com/turtacn/apswitch/internal/monitor"
	"github.com/turtacn/apswitch/internal/render"
	"github.com/turtacn/apswitch/internal/supervisor"
	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/fsm"
	"github.com/turtacn/apswitch/pkg/logger"
	"github.com/turtacn/apswitch/pkg/protocol"
)

// Services is the service-manager surface the engine drives.
type Services interface {
	Start(ctx context.Context, spec protocol.DaemonSpec) error
	Stop(ctx context.Context, spec protocol.DaemonSpec) error
	Restart(ctx context.Context, spec protocol.DaemonSpec) error
	RestartAndWaitActive(ctx context.Context, spec protocol.DaemonSpec, timeout time.Duration) error
	Status(ctx context.Context, spec protocol.DaemonSpec) (supervisor.Status, error)
}

// ConfigWriter installs rendered daemon configs and the host's originals.
type ConfigWriter interface {
	Write(ctx context.Context, kind consts.DaemonKind, p protocol.NetworkProfile) (string, error)
	Backup() error
	Restore(iface string) error
}

// DependencyChecker short-circuits operations that cannot succeed.
type DependencyChecker interface {
	Require() error
}

// StateStore persists SystemState between invocations.
type StateStore interface {
	Save(rec marker.Record) error
}

const (
	evPrepare    fsm.Event = "prepare"
	evActivate   fsm.Event = "activate"
	evDeactivate fsm.Event = "deactivate"
	evSettle     fsm.Event = "settle"
)

// Options wires the engine's collaborators. Store, Metrics and Prober may be nil.
type Options struct {
	Initial  consts.NetworkState
	Services Services
	Writer   ConfigWriter
	Deps     DependencyChecker
	Store    StateStore
	Metrics  *monitor.Metrics
	Prober   Prober
}

// Engine is the daemon orchestration state machine for one interface.
type Engine struct {
	cfg      *protocol.Config
	fsm      *fsm.StateMachine
	services Services
	writer   ConfigWriter
	deps     DependencyChecker
	store    StateStore
	metrics  *monitor.Metrics
	prober   Prober
	log      logger.Logger
}

func NewEngine(cfg *protocol.Config, opts Options) *Engine {
	initial := opts.Initial
	if initial == "" || initial == consts.StateDeactivated {
		initial = consts.StateIdle
	}
	e := &Engine{
		cfg:      cfg,
		fsm:      fsm.New(fsm.State(initial)),
		services: opts.Services,
		writer:   opts.Writer,
		deps:     opts.Deps,
		store:    opts.Store,
		metrics:  opts.Metrics,
		prober:   opts.Prober,
		log:      logger.Log.With("interface", cfg.Profile.Interface),
	}
	e.setupFSM()
	return e
}

func (e *Engine) setupFSM() {
	idle := fsm.State(consts.StateIdle)
	prepared := fsm.State(consts.StatePrepared)
	active := fsm.State(consts.StateActive)
	deactivated := fsm.State(consts.StateDeactivated)

	// Prepare: the slow dhcpcd restart. Repeats are no-ops.
	e.fsm.AddTransition(idle, prepared, evPrepare, e.onPrepare)
	e.fsm.AddTransition(prepared, prepared, evPrepare, nil)
	e.fsm.AddTransition(active, active, evPrepare, nil)

	// Activate: hostapd then dnsmasq. Re-activation only rewrites configs.
	e.fsm.AddTransition(prepared, active, evActivate, e.onActivate)
	e.fsm.AddTransition(active, active, evActivate, e.onReactivate)

	// Deactivate: tear everything down from either sub-state, then settle.
	e.fsm.AddTransition(active, deactivated, evDeactivate, e.onDeactivate)
	e.fsm.AddTransition(prepared, deactivated, evDeactivate, e.onDeactivate)
	e.fsm.AddTransition(deactivated, idle, evSettle, nil)
	e.fsm.AddTransition(idle, idle, evDeactivate, nil)

	e.fsm.Observe(func(from, to fsm.State, event fsm.Event, err error) {
		result := "ok"
		if err != nil {
			result = "error"
		}
		if e.metrics != nil {
			e.metrics.TransitionTotal.WithLabelValues(string(event), result).Inc()
		}
		e.log.Debug("Transition", "event", event, "from", from, "to", to, "result", result)
	})
}

// State returns the current orchestration state.
func (e *Engine) State() consts.NetworkState {
	return consts.NetworkState(e.fsm.Current())
}

// SystemState is the persisted view of the current state.
func (e *Engine) SystemState() marker.Record {
	st := e.State()
	return marker.Record{
		Interface:          e.cfg.Profile.Interface,
		State:              st,
		DhcpClientPrepared: st == consts.StatePrepared || st == consts.StateActive,
		APActive:           st == consts.StateActive,
	}
}

// Prepare restarts dhcpcd with the AP stanza and waits for it to come back.
// On timeout the state stays IDLE so a retry is safe.
func (e *Engine) Prepare(ctx context.Context) (err error) {
	defer e.observe("prepare", time.Now(), &err)

	if e.State() == consts.StateIdle {
		if err := e.deps.Require(); err != nil {
			return err
		}
	}
	if err := e.fsm.Fire(ctx, evPrepare); err != nil {
		return err
	}
	e.persist()
	return nil
}

// Activate starts hostapd and dnsmasq. It never prepares implicitly: from
// IDLE it fails with NotPrepared and leaves the state alone.
func (e *Engine) Activate(ctx context.Context) (err error) {
	defer e.observe("activate", time.Now(), &err)

	switch e.State() {
	case consts.StateIdle:
		return apperr.New(apperr.ErrCodeNotPrepared, "Activate", "dhcp client is not prepared; run prepare first", nil)
	case consts.StatePrepared:
		if err := e.deps.Require(); err != nil {
			return err
		}
	}
	if err := e.fsm.Fire(ctx, evActivate); err != nil {
		return err
	}
	e.persist()
	return nil
}

// Deactivate stops every daemon and restores the host configs. From IDLE it
// is a successful no-op.
func (e *Engine) Deactivate(ctx context.Context) (err error) {
	defer e.observe("deactivate", time.Now(), &err)

	if err := e.fsm.Fire(ctx, evDeactivate); err != nil {
		return err
	}
	if e.State() == consts.StateDeactivated {
		if err := e.fsm.Fire(ctx, evSettle); err != nil {
			return err
		}
	}
	e.persist()
	return nil
}

// PrepareAndActivate runs Prepare then Activate. A failed Activate leaves the
// engine PREPARED so Activate alone can be retried without another slow
// dhcpcd restart.
func (e *Engine) PrepareAndActivate(ctx context.Context) error {
	if err := e.Prepare(ctx); err != nil {
		return err
	}
	return e.Activate(ctx)
}

func (e *Engine) onPrepare(ctx context.Context, event fsm.Event, args ...interface{}) error {
	e.log.Info("Phase: Prepare dhcp client")
	d := e.cfg.Daemons

	// The AP daemons must not hold the interface while dhcpcd takes it over.
	for _, spec := range []protocol.DaemonSpec{d.DnsDhcpServer, d.AccessPoint} {
		if err := e.services.Stop(ctx, spec); err != nil {
			return err
		}
	}

	if err := e.writer.Backup(); err != nil {
		return apperr.New(apperr.ErrCodeUnknown, "Prepare", "backing up system configs failed", err)
	}
	if _, err := e.writer.Write(ctx, consts.DhcpClient, e.cfg.Profile); err != nil {
		return err
	}

	err := e.services.RestartAndWaitActive(ctx, d.DhcpClient, d.DhcpClient.RestartTimeout)
	if supervisor.IsTimeout(err) {
		e.log.Warn("Prepare timed out; the dhcpcd block and config backups stay in place while the state is IDLE. Run prepare again to recover.",
			"service", d.DhcpClient.ServiceID, "timeout", d.DhcpClient.RestartTimeout)
		return apperr.ForDaemon(apperr.ErrCodePrepareTimeout, "Prepare", d.DhcpClient.ServiceID,
			"dhcp client did not become active within "+d.DhcpClient.RestartTimeout.String(), err)
	}
	return err
}

func (e *Engine) writeAPConfigs(ctx context.Context) error {
	for _, kind := range []consts.DaemonKind{consts.AccessPointDaemon, consts.DnsDhcpServer} {
		if _, err := e.writer.Write(ctx, kind, e.cfg.Profile); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) onActivate(ctx context.Context, event fsm.Event, args ...interface{}) error {
	e.log.Info("Phase: Activate access point")
	d := e.cfg.Daemons

	if render.WeakPassphrase(e.cfg.Profile) {
		e.log.Warn("Passphrase is shorter than 8 characters; hostapd will refuse to start",
			"length", len(e.cfg.Profile.Passphrase))
	}
	if err := e.writeAPConfigs(ctx); err != nil {
		return err
	}

	// dnsmasq binds to the interface hostapd has just put into AP mode.
	if err := e.services.Start(ctx, d.AccessPoint); err != nil {
		return apperr.ForDaemon(apperr.ErrCodeActivationFailed, "Activate", d.AccessPoint.ServiceID, "access point daemon did not start", err)
	}
	if err := e.services.Start(ctx, d.DnsDhcpServer); err != nil {
		e.log.Warn("Phase: Rollback. Stopping access point daemon.", "cause", err)
		cause := err
		if stopErr := e.services.Stop(ctx, d.AccessPoint); stopErr != nil {
			cause = errors.Join(err, stopErr)
		}
		return apperr.ForDaemon(apperr.ErrCodeActivationFailed, "Activate", d.DnsDhcpServer.ServiceID, "dns/dhcp server did not start", cause)
	}
	return nil
}

func (e *Engine) onReactivate(ctx context.Context, event fsm.Event, args ...interface{}) error {
	e.log.Info("Already active; rewriting configs only")
	return e.writeAPConfigs(ctx)
}

func (e *Engine) onDeactivate(ctx context.Context, event fsm.Event, args ...interface{}) error {
	e.log.Info("Phase: Deactivate")
	d := e.cfg.Daemons

	// Consumer before producer, then hand the interface back to dhcpcd.
	var errs []error
	for _, spec := range []protocol.DaemonSpec{d.DnsDhcpServer, d.AccessPoint, d.DhcpClient} {
		if err := e.services.Stop(ctx, spec); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.writer.Restore(e.cfg.Profile.Interface); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 && e.cfg.Orchestration.Deactivate.RestartDhcpClient {
		if err := e.services.Restart(ctx, d.DhcpClient); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return apperr.New(apperr.ErrCodeStopFailed, "Deactivate", "teardown incomplete; safe to retry", errors.Join(errs...))
	}
	return nil
}

func (e *Engine) persist() {
	if e.store != nil {
		if err := e.store.Save(e.SystemState()); err != nil {
			e.log.Error("Marker write failed; next run will not see this state", "err", err)
		}
	}
	if e.metrics != nil {
		all := []string{string(consts.StateIdle), string(consts.StatePrepared), string(consts.StateActive)}
		e.metrics.SetState(e.cfg.Profile.Interface, string(e.State()), all)
	}
}

func (e *Engine) observe(op string, began time.Time, errp *error) {
	elapsed := time.Since(began)
	if e.metrics != nil {
		e.metrics.TransitionDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if *errp != nil {
		e.log.Error("Operation failed", "op", op, "state", e.State(), "elapsed", elapsed, "err", *errp)
		return
	}
	e.log.Info("Operation complete", "op", op, "state", e.State(), "elapsed", elapsed)
}

// Personal.AI order the ending
