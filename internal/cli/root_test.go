package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/apswitch/internal/deps"
	"github.com/turtacn/apswitch/internal/marker"
	"github.com/turtacn/apswitch/internal/supervisor"
	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
)

type memBackend struct {
	mu    sync.Mutex
	state map[string]supervisor.Status
}

func (b *memBackend) Name() string { return "mem" }

func (b *memBackend) set(service string, st supervisor.Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[service] = st
	return nil
}

func (b *memBackend) Start(ctx context.Context, service string) error {
	return b.set(service, supervisor.StatusRunning)
}

func (b *memBackend) Stop(ctx context.Context, service string) error {
	return b.set(service, supervisor.StatusStopped)
}

func (b *memBackend) Restart(ctx context.Context, service string) error {
	return b.set(service, supervisor.StatusRunning)
}

func (b *memBackend) Status(ctx context.Context, service string) (supervisor.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.state[service]; ok {
		return st, nil
	}
	return supervisor.StatusStopped, nil
}

type fixedDeps struct{ missing []string }

func (d fixedDeps) CheckAll() []deps.Result {
	var out []deps.Result
	for _, dep := range deps.Defaults {
		r := deps.Result{Dependency: dep, Found: true, Path: "/usr/sbin/" + dep.Name}
		for _, m := range d.missing {
			if m == dep.Name {
				r.Found, r.Path = false, ""
			}
		}
		out = append(out, r)
	}
	return out
}

func (d fixedDeps) Require() error {
	if len(d.missing) == 0 {
		return nil
	}
	return apperr.New(apperr.ErrCodeMissingDependency, "CheckDependencies", "not installed: "+strings.Join(d.missing, ", "), nil)
}

type env struct {
	dir     string
	config  string
	backend *memBackend
}

func setup(t *testing.T, missing ...string) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{dir: dir, config: filepath.Join(dir, "config.yaml"), backend: &memBackend{state: map[string]supervisor.Status{}}}

	cfg := fmt.Sprintf(`profile:
  ssid: MyAP
  passphrase: password123
  interface: wlan0
  ip_range: 192.168.4.0/24
daemons:
  dhcp_client:
    config_path: %[1]s/dhcpcd.conf
    restart_timeout: 1s
  access_point:
    config_path: %[1]s/hostapd.conf
  dns_dhcp_server:
    config_path: %[1]s/dnsmasq.conf
  ap_defaults_file: %[1]s/default-hostapd
orchestration:
  state_dir: %[1]s/run
  poll_interval: 10ms
observability:
  log_level: error
`, dir)
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o644))

	oldSelect, oldDeps := selectBackend, newDepChecker
	selectBackend = func(ctx context.Context, name string, r supervisor.Runner) (supervisor.Backend, func(), error) {
		return e.backend, func() {}, nil
	}
	newDepChecker = func() dependencyChecker { return fixedDeps{missing: missing} }
	t.Cleanup(func() {
		selectBackend, newDepChecker = oldSelect, oldDeps
	})
	return e
}

func (e *env) run(t *testing.T, stdin string, args ...string) (int, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append(args, "-f", e.config)
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String() + errOut.String()
}

func TestNormalizeArgs(t *testing.T) {
	got := normalizeArgs([]string{"-aa", "-f", "x.yaml", "-checkdep", "-checkdaemon", "--", "-aa"})
	assert.Equal(t, []string{"--activate-all", "-f", "x.yaml", "--check-deps", "--check", "--", "-aa"}, got)
}

func TestSelectedOperation(t *testing.T) {
	o := &options{}
	_, ok, err := o.selected()
	require.NoError(t, err)
	assert.False(t, ok)

	o.activateAll = true
	op, ok, err := o.selected()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, consts.OpPrepareAndActivate, op)

	o.deactivate = true
	_, _, err = o.selected()
	assert.Error(t, err, "two operations")
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCmd(strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, "apswitch", cmd.Name())
	for short, long := range map[string]string{"p": "prepare", "a": "activate", "d": "deactivate", "c": "check", "i": "interactive", "f": "config"} {
		f := cmd.Flags().ShorthandLookup(short)
		if assert.NotNil(t, f, "-%s", short) {
			assert.Equal(t, long, f.Name)
		}
	}
	assert.Contains(t, cmd.Long, "Run -p again", "help explains how to recover from a prepare timeout")
}

func TestNoOperationPrintsHelp(t *testing.T) {
	e := setup(t)
	code, out := e.run(t, "")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Usage:")
}

func TestActivateWithoutPrepare(t *testing.T) {
	e := setup(t)
	code, out := e.run(t, "", "-a")
	require.Equal(t, 5, code, "not prepared: %s", out)
	assert.Empty(t, e.backend.state, "no daemon touched")
}

func TestPrepareThenActivateAcrossInvocations(t *testing.T) {
	e := setup(t)

	code, out := e.run(t, "", "-p")
	require.Equal(t, 0, code, "prepare: %s", out)
	rec, ok, err := marker.NewStore(filepath.Join(e.dir, "run")).Load("wlan0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, consts.StatePrepared, rec.State)

	code, out = e.run(t, "", "-a", "--metrics-textfile", filepath.Join(e.dir, "apswitch.prom"))
	require.Equal(t, 0, code, "activate: %s", out)
	assert.Contains(t, out, "activate: ACTIVE")
	assert.Equal(t, supervisor.StatusRunning, e.backend.state["hostapd"])
	assert.Equal(t, supervisor.StatusRunning, e.backend.state["dnsmasq"])

	prom, err := os.ReadFile(filepath.Join(e.dir, "apswitch.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "apswitch_transitions_total")

	code, out = e.run(t, "", "-d")
	require.Equal(t, 0, code, "deactivate: %s", out)
	_, ok, _ = marker.NewStore(filepath.Join(e.dir, "run")).Load("wlan0")
	assert.False(t, ok, "marker cleared after deactivate")
}

func TestLegacyActivateAll(t *testing.T) {
	e := setup(t)
	code, out := e.run(t, "", "-aa")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "prepare-and-activate: ACTIVE")
}

func TestCheckReport(t *testing.T) {
	e := setup(t)
	e.backend.state["dhcpcd"] = supervisor.StatusRunning

	code, out := e.run(t, "", "-checkdaemon", "-o", "json")
	require.Equal(t, 0, code, out)
	for _, want := range []string{`"state": "IDLE"`, `"service": "dhcpcd"`, `"status": "running"`, `"status": "stopped"`} {
		assert.Contains(t, out, want)
	}
}

func TestCheckDepsMissing(t *testing.T) {
	e := setup(t, "hostapd")
	code, out := e.run(t, "", "-checkdep")
	require.Equal(t, 3, code, out)
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "hostapd")
}

func TestMissingDependencyBlocksPrepare(t *testing.T) {
	e := setup(t, "dnsmasq")
	code, _ := e.run(t, "", "-p")
	assert.Equal(t, 3, code)
}

func TestLockHeld(t *testing.T) {
	e := setup(t)
	lock, err := marker.Acquire(filepath.Join(e.dir, "run"), "wlan0")
	require.NoError(t, err)
	defer lock.Release()

	code, out := e.run(t, "", "-d")
	assert.Equal(t, 10, code, "lock held: %s", out)

	// Check never takes the lock.
	code, out = e.run(t, "", "-c")
	assert.Equal(t, 0, code, "check while locked: %s", out)
}

func TestMalformedInterfaceRejectedBeforeLock(t *testing.T) {
	e := setup(t)
	t.Setenv(consts.EnvInterface, "../escape")

	code, out := e.run(t, "", "-d")
	require.Equal(t, 2, code, "invalid profile: %s", out)
	assert.NoFileExists(t, filepath.Join(e.dir, "escape.lock"))
	assert.NoFileExists(t, filepath.Join(e.dir, "escape.state"))
}

func TestInteractiveMenu(t *testing.T) {
	e := setup(t)
	code, out := e.run(t, "x\n1\n2\n5\nq\n", "-i")
	require.Equal(t, 0, code, out)
	for _, want := range []string{"1) Prepare", `unknown choice "x"`, "prepare: PREPARED", "activate: ACTIVE", "ACTIVE"} {
		assert.Contains(t, out, want)
	}
}

func TestInteractiveMenuReportsLastError(t *testing.T) {
	e := setup(t)
	code, out := e.run(t, "2\n", "-i")
	assert.Equal(t, 5, code, "failed activate: %s", out)
}
