package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/turtacn/apswitch/pkg/logger"
)

// Metrics holds the collectors for one invocation on a private registry.
// apswitch is short-lived, so metrics are handed to node_exporter's textfile
// collector instead of being served.
type Metrics struct {
	Registry *prometheus.Registry

	// TransitionTotal counts state machine transitions by event and result.
	TransitionTotal *prometheus.CounterVec
	// TransitionDuration tracks how long each operation took in seconds.
	TransitionDuration *prometheus.HistogramVec
	// StatusPolls counts status reads made while waiting on a restart.
	StatusPolls *prometheus.CounterVec
	// DaemonUp is 1 when Check last saw the daemon running, 0 otherwise.
	DaemonUp *prometheus.GaugeVec
	// State is 1 for the current orchestration state.
	State *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TransitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apswitch_transitions_total",
			Help: "Total number of orchestration transitions",
		}, []string{"event", "result"}),
		TransitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "apswitch_operation_duration_seconds",
			Help:    "Time taken by an orchestration operation",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"operation"}),
		StatusPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apswitch_status_polls_total",
			Help: "Status reads made while waiting for a service to become active",
		}, []string{"service", "status"}),
		DaemonUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "apswitch_daemon_up",
			Help: "Whether the daemon was running at the last check",
		}, []string{"daemon"}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "apswitch_state",
			Help: "Current orchestration state of the interface",
		}, []string{"interface", "state"}),
	}
	m.Registry.MustRegister(m.TransitionTotal, m.TransitionDuration, m.StatusPolls, m.DaemonUp, m.State)
	return m
}

// SetState marks state as current for iface and clears the others.
func (m *Metrics) SetState(iface string, current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.State.WithLabelValues(iface, s).Set(v)
	}
}

// WriteTextfile writes the registry in text exposition format to path. An
// empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		logger.Log.Error("Metrics textfile write failed", "path", path, "err", err)
		return err
	}
	logger.Log.Debug("Metrics textfile written", "path", path)
	return nil
}

// Personal.AI order the ending
