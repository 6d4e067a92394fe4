// Package probe checks that dnsmasq on the access point actually answers.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Result is the outcome of one DNS liveness query.
type Result struct {
	Server     string        `json:"server" yaml:"server"`
	Name       string        `json:"name" yaml:"name"`
	Responsive bool          `json:"responsive" yaml:"responsive"`
	Rcode      string        `json:"rcode,omitempty" yaml:"rcode,omitempty"`
	Answer     string        `json:"answer,omitempty" yaml:"answer,omitempty"`
	RTT        time.Duration `json:"rtt" yaml:"rtt"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// DNS sends one A query for name to server (host or host:port) over UDP. Any
// well-formed reply, NXDOMAIN included, counts as responsive.
func DNS(ctx context.Context, server, name string, timeout time.Duration) Result {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	res := Result{Server: server, Name: dns.Fqdn(name)}

	m := new(dns.Msg)
	m.SetQuestion(res.Name, dns.TypeA)
	m.RecursionDesired = false

	c := &dns.Client{Net: "udp", Timeout: timeout}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, rtt, err := c.ExchangeContext(ctx, m, server)
	res.RTT = rtt
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Responsive = true
	res.Rcode = dns.RcodeToString[resp.Rcode]
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			res.Answer = a.A.String()
			break
		}
	}
	return res
}

// String renders the result on one line for the check report.
func (r Result) String() string {
	if !r.Responsive {
		return fmt.Sprintf("dns %s: no answer (%s)", r.Server, r.Error)
	}
	if r.Answer != "" {
		return fmt.Sprintf("dns %s: %s %s -> %s in %s", r.Server, r.Rcode, r.Name, r.Answer, r.RTT.Round(time.Millisecond))
	}
	return fmt.Sprintf("dns %s: %s %s in %s", r.Server, r.Rcode, r.Name, r.RTT.Round(time.Millisecond))
}

// Personal.AI order the ending
