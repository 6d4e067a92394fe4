package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/turtacn/apswitch/internal/config"
	"github.com/turtacn/apswitch/internal/deps"
	"github.com/turtacn/apswitch/internal/marker"
	"github.com/turtacn/apswitch/internal/monitor"
	"github.com/turtacn/apswitch/internal/orchestrator"
	"github.com/turtacn/apswitch/internal/probe"
	"github.com/turtacn/apswitch/internal/render"
	"github.com/turtacn/apswitch/internal/supervisor"
	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/logger"
	"github.com/turtacn/apswitch/pkg/protocol"
	"gopkg.in/yaml.v3"
)

type dependencyChecker interface {
	CheckAll() []deps.Result
	Require() error
}

// Host seams, swapped out in tests.
var (
	selectBackend                   = supervisor.SelectBackend
	hostRunner    supervisor.Runner = supervisor.ExecRunner{}
	newDepChecker                   = func() dependencyChecker { return deps.NewChecker(nil) }
)

// aptLockKey serialises package installs, which are not tied to an interface.
const aptLockKey = "apt"

// dispatch runs one operation end to end: config, logging, lock, engine,
// marker and metrics. Errors come back unchanged for exit-code mapping.
func dispatch(ctx context.Context, o *options, op consts.Operation, out io.Writer) error {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, o)
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	logger.Log = logger.Log.With("run", uuid.NewString(), "op", string(op))
	logger.Log.Debug("Effective config", "config", config.Describe(cfg))

	metrics := monitor.New()
	defer func() {
		// The textfile is best effort; its failure never changes the exit code.
		_ = metrics.WriteTextfile(cfg.Observability.MetricsTextfile)
	}()

	switch op {
	case consts.OpCheckDeps:
		return checkDeps(out)
	case consts.OpInstallDeps:
		return withLock(cfg, aptLockKey, func() error { return installDeps(ctx, out) })
	}

	iface := cfg.Profile.Interface
	if err := render.ValidateInterface(iface); err != nil {
		return err
	}
	if !op.Mutating() {
		return runEngine(ctx, cfg, o, op, metrics, out)
	}
	return withLock(cfg, iface, func() error {
		return runEngine(ctx, cfg, o, op, metrics, out)
	})
}

func applyFlagOverrides(cfg *protocol.Config, o *options) {
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Observability.LogFormat = o.logFormat
	}
	if o.metricsFile != "" {
		cfg.Observability.MetricsTextfile = o.metricsFile
	}
}

func withLock(cfg *protocol.Config, key string, fn func() error) error {
	lock, err := marker.Acquire(cfg.Orchestration.StateDir, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Log.Warn("Lock release failed", "key", key, "err", err)
		}
	}()
	return fn()
}

func runEngine(ctx context.Context, cfg *protocol.Config, o *options, op consts.Operation, metrics *monitor.Metrics, out io.Writer) error {
	store := marker.NewStore(cfg.Orchestration.StateDir)
	rec, found, err := store.Load(cfg.Profile.Interface)
	if err != nil {
		logger.Log.Warn("Unreadable marker; assuming IDLE", "err", err)
	}
	initial := consts.StateIdle
	if found {
		initial = rec.State
	}

	backend, closeBackend, err := selectBackend(ctx, cfg.Daemons.ServiceManager, hostRunner)
	if err != nil {
		return apperr.New(apperr.ErrCodeInvalidProfile, "Dispatch", "no usable service manager", err)
	}
	defer closeBackend()

	sm := supervisor.New(backend,
		supervisor.WithPollInterval(cfg.Orchestration.PollInterval),
		supervisor.WithStatusTimeout(cfg.Orchestration.StatusTimeout),
		supervisor.WithPollObserver(func(service string, st supervisor.Status) {
			metrics.StatusPolls.WithLabelValues(service, string(st)).Inc()
		}),
	)
	logger.Log.Debug("Service manager selected", "backend", sm.Backend(), "state", initial)

	engine := orchestrator.NewEngine(cfg, orchestrator.Options{
		Initial:  initial,
		Services: sm,
		Writer:   render.NewWriter(cfg.Daemons),
		Deps:     newDepChecker(),
		Store:    store,
		Metrics:  metrics,
		Prober:   probe.DNS,
	})

	switch op {
	case consts.OpPrepare:
		err = engine.Prepare(ctx)
	case consts.OpActivate:
		err = engine.Activate(ctx)
	case consts.OpPrepareAndActivate:
		err = engine.PrepareAndActivate(ctx)
	case consts.OpDeactivate:
		err = engine.Deactivate(ctx)
	case consts.OpCheck:
		return writeReport(out, engine.Check(ctx, o.probeDNS), o.outputFormat)
	default:
		return fmt.Errorf("unsupported operation %q", op)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %s\n", op, engine.State())
	return nil
}

func writeReport(out io.Writer, rep orchestrator.Report, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "", "text":
		return rep.WriteText(out)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func checkDeps(out io.Writer) error {
	c := newDepChecker()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range c.CheckAll() {
		if r.Found {
			fmt.Fprintf(tw, "%s\tinstalled\t%s\n", r.Name, r.Path)
			continue
		}
		fmt.Fprintf(tw, "%s\tmissing\t(package %s)\n", r.Name, r.Package)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return c.Require()
}

func installDeps(ctx context.Context, out io.Writer) error {
	missing := deps.Missing(newDepChecker().CheckAll())
	if len(missing) == 0 {
		fmt.Fprintln(out, "all dependencies installed")
		return nil
	}
	if err := deps.NewInstaller(hostRunner).Install(ctx, missing); err != nil {
		return err
	}
	return newDepChecker().Require()
}

// Personal.AI order the ending
