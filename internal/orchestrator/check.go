package orchestrator

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/turtacn/apswitch/internal/probe"
	"github.com/turtacn/apswitch/internal/render"
	"github.com/turtacn/apswitch/internal/supervisor"
	"github.com/turtacn/apswitch/pkg/consts"
)

// Prober queries a DNS server for name. probe.DNS satisfies it.
type Prober func(ctx context.Context, server, name string, timeout time.Duration) probe.Result

// DaemonReport is one row of a Check.
type DaemonReport struct {
	Kind    consts.DaemonKind `json:"kind" yaml:"kind"`
	Service string            `json:"service" yaml:"service"`
	Status  supervisor.Status `json:"status" yaml:"status"`
	Error   string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the result of Check.
type Report struct {
	Interface string              `json:"interface" yaml:"interface"`
	State     consts.NetworkState `json:"state" yaml:"state"`
	Daemons   []DaemonReport      `json:"daemons" yaml:"daemons"`
	DNS       *probe.Result       `json:"dns,omitempty" yaml:"dns,omitempty"`
}

// Status returns the reported status for kind, or unknown.
func (r Report) Status(kind consts.DaemonKind) supervisor.Status {
	for _, d := range r.Daemons {
		if d.Kind == kind {
			return d.Status
		}
	}
	return supervisor.StatusUnknown
}

// WriteText prints the report as an aligned table.
func (r Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "interface\t%s\n", r.Interface)
	fmt.Fprintf(tw, "state\t%s\n", r.State)
	for _, d := range r.Daemons {
		if d.Error != "" {
			fmt.Fprintf(tw, "%s\t%s\t(%s)\n", d.Service, d.Status, d.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", d.Service, d.Status)
	}
	if r.DNS != nil {
		fmt.Fprintf(tw, "dns\t%s\n", r.DNS)
	}
	return tw.Flush()
}

// Check reports the live status of every managed daemon without changing
// anything. A status query that fails or times out reports unknown. When
// probeDNS is set and dnsmasq is running, the gateway is queried for its
// own name.
func (e *Engine) Check(ctx context.Context, probeDNS bool) Report {
	rep := Report{
		Interface: e.cfg.Profile.Interface,
		State:     e.State(),
	}

	for _, kind := range consts.DaemonKinds {
		spec := e.cfg.Daemons.Spec(kind)
		row := DaemonReport{Kind: kind, Service: spec.ServiceID}
		st, err := e.services.Status(ctx, spec)
		if err != nil {
			st = supervisor.StatusUnknown
			row.Error = err.Error()
			e.log.Warn("Status query failed", "service", spec.ServiceID, "err", err)
		}
		row.Status = st
		rep.Daemons = append(rep.Daemons, row)

		if e.metrics != nil {
			up := 0.0
			if st == supervisor.StatusRunning {
				up = 1
			}
			e.metrics.DaemonUp.WithLabelValues(spec.ServiceID).Set(up)
		}
	}

	if probeDNS && e.prober != nil && rep.Status(consts.DnsDhcpServer) == supervisor.StatusRunning {
		rep.DNS = e.probeGateway(ctx)
	}
	return rep
}

func (e *Engine) probeGateway(ctx context.Context) *probe.Result {
	plan, err := render.PlanAddresses(ctx, e.cfg.Profile)
	if err != nil {
		return &probe.Result{Name: render.DNSName, Error: err.Error()}
	}
	res := e.prober(ctx, plan.Gateway.String(), render.DNSName, consts.DefaultProbeTimeout)
	return &res
}

// Personal.AI order the ending
