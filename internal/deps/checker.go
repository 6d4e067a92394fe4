package deps

import (
	"context"
	"os/exec"
	"strings"

	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/logger"
)

// Dependency is one program the orchestration needs on the host.
type Dependency struct {
	Name    string // daemon binary looked up on PATH
	Package string // Debian package providing it
}

// Result is the outcome of probing one Dependency.
type Result struct {
	Dependency
	Found bool
	Path  string
}

// Defaults are the three daemons apswitch drives.
var Defaults = []Dependency{
	{Name: "hostapd", Package: "hostapd"},
	{Name: "dnsmasq", Package: "dnsmasq"},
	{Name: "dhcpcd", Package: "dhcpcd5"},
}

// Checker probes for installed binaries. It never changes the host.
type Checker struct {
	deps     []Dependency
	lookPath func(string) (string, error)
}

// NewChecker builds a Checker for deps (Defaults when nil).
func NewChecker(deps []Dependency) *Checker {
	if deps == nil {
		deps = Defaults
	}
	return &Checker{deps: deps, lookPath: lookPath}
}

// lookPath also tries the sbin directories, which are often missing from a
// non-root PATH even though the daemons live there.
func lookPath(name string) (string, error) {
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	var lastErr error
	for _, dir := range []string{"/usr/sbin", "/sbin", "/usr/local/sbin"} {
		p, err := exec.LookPath(dir + "/" + name)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// CheckAll reports every dependency in declaration order.
func (c *Checker) CheckAll() []Result {
	results := make([]Result, 0, len(c.deps))
	for _, d := range c.deps {
		path, err := c.lookPath(d.Name)
		r := Result{Dependency: d, Found: err == nil, Path: path}
		logger.Log.Debug("Deps: probed", "name", d.Name, "found", r.Found, "path", path)
		results = append(results, r)
	}
	return results
}

// Missing filters results to the dependencies that were not found.
func Missing(results []Result) []Dependency {
	var out []Dependency
	for _, r := range results {
		if !r.Found {
			out = append(out, r.Dependency)
		}
	}
	return out
}

// Require returns MissingDependency naming every absent dependency, or nil.
func (c *Checker) Require() error {
	missing := Missing(c.CheckAll())
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, len(missing))
	for i, d := range missing {
		names[i] = d.Name
	}
	return apperr.New(apperr.ErrCodeMissingDependency, "CheckDependencies",
		"not installed: "+strings.Join(names, ", "), nil)
}

// Runner executes a host command; satisfied by supervisor.ExecRunner.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Installer installs missing packages with apt-get.
type Installer struct {
	runner Runner
}

func NewInstaller(r Runner) *Installer {
	return &Installer{runner: r}
}

// Install refreshes the package index once and installs every package in
// one apt-get transaction.
func (i *Installer) Install(ctx context.Context, missing []Dependency) error {
	if len(missing) == 0 {
		return nil
	}
	pkgs := make([]string, len(missing))
	for n, d := range missing {
		pkgs[n] = d.Package
	}
	logger.Log.Info("Deps: installing packages", "packages", pkgs)

	if _, err := i.runner.Run(ctx, "apt-get", "update"); err != nil {
		return apperr.New(apperr.ErrCodeInstallFailed, "InstallDependencies", "apt-get update failed", err)
	}
	args := append([]string{"install", "-y"}, pkgs...)
	if _, err := i.runner.Run(ctx, "apt-get", args...); err != nil {
		return apperr.New(apperr.ErrCodeInstallFailed, "InstallDependencies", "apt-get install failed", err)
	}
	return nil
}

// Personal.AI order the ending
