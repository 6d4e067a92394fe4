package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
)

type options struct {
	prepare      bool
	activate     bool
	activateAll  bool
	deactivate   bool
	check        bool
	checkDeps    bool
	installDeps  bool
	interactive  bool
	configPath   string
	envFile      string
	logLevel     string
	logFormat    string
	metricsFile  string
	probeDNS     bool
	outputFormat string
}

// legacyFlags maps the single-dash long flags of the old tool onto their
// cobra spellings. pflag would otherwise read -aa as -a -a.
var legacyFlags = map[string]string{
	"-aa":          "--activate-all",
	"-checkdep":    "--check-deps",
	"-checkdaemon": "--check",
	"-installdep":  "--install-deps",
}

func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		if repl, ok := legacyFlags[a]; ok {
			a = repl
		}
		out = append(out, a)
	}
	return out
}

// selected returns the single operation requested by flags. ok is false when
// none was given.
func (o *options) selected() (op consts.Operation, ok bool, err error) {
	var ops []consts.Operation
	add := func(set bool, op consts.Operation) {
		if set {
			ops = append(ops, op)
		}
	}
	add(o.prepare, consts.OpPrepare)
	add(o.activate, consts.OpActivate)
	add(o.activateAll, consts.OpPrepareAndActivate)
	add(o.deactivate, consts.OpDeactivate)
	add(o.check, consts.OpCheck)
	add(o.checkDeps, consts.OpCheckDeps)
	add(o.installDeps, consts.OpInstallDeps)

	switch len(ops) {
	case 0:
		return "", false, nil
	case 1:
		return ops[0], true, nil
	}
	return "", false, fmt.Errorf("choose one operation, got %v", ops)
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "apswitch",
		Short: "Switch a Wi-Fi interface between client and access point roles",
		Long: `apswitch coordinates dhcpcd, hostapd and dnsmasq to turn a Wi-Fi
interface into an access point and back.

Prepare (-p) restarts dhcpcd with a static address for the interface and
waits for it, which can take up to a minute. Activate (-a) then starts
hostapd and dnsmasq. Deactivate (-d) stops all three and restores the
original configs.

If prepare times out the interface stays IDLE with the static dhcpcd block
still written, and -d has nothing to undo. Run -p again; once it reaches
PREPARED, -d restores the original configs.`,
		Example: `  apswitch -p && apswitch -a
  apswitch -aa -f /etc/apswitch/config.yaml
  apswitch -c --probe-dns -o yaml
  apswitch -d`,
		Version:       buildVersion,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.interactive {
				return runMenu(cmd.Context(), o, in, out)
			}
			op, ok, err := o.selected()
			if err != nil {
				return err
			}
			if !ok {
				return cmd.Help()
			}
			return dispatch(cmd.Context(), o, op, out)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := cmd.Flags()
	f.BoolVarP(&o.prepare, "prepare", "p", false, "prepare dhcpcd for access point mode (slow)")
	f.BoolVarP(&o.activate, "activate", "a", false, "start hostapd and dnsmasq; requires a prior prepare")
	f.BoolVar(&o.activateAll, "activate-all", false, "prepare and activate in one run (alias -aa)")
	f.BoolVarP(&o.deactivate, "deactivate", "d", false, "stop all daemons and restore the original configs")
	f.BoolVarP(&o.check, "check", "c", false, "report the status of every daemon (alias -checkdaemon)")
	f.BoolVar(&o.checkDeps, "check-deps", false, "check that hostapd, dnsmasq and dhcpcd are installed (alias -checkdep)")
	f.BoolVar(&o.installDeps, "install-deps", false, "install missing dependencies with apt-get")
	f.BoolVarP(&o.interactive, "interactive", "i", false, "choose operations from a menu")

	f.StringVarP(&o.configPath, "config", "f", consts.DefaultConfigPath, "config file path")
	f.StringVar(&o.envFile, "env-file", "", "optional .env file with APSWITCH_* overrides")
	f.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "", "log format: json or text")
	f.StringVar(&o.metricsFile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
	f.BoolVar(&o.probeDNS, "probe-dns", false, "with --check, query dnsmasq for the gateway name")
	f.StringVarP(&o.outputFormat, "output", "o", "text", "check report format: text, yaml or json")
	return cmd
}

// buildVersion is reported by --version.
var buildVersion = "dev"

// Execute runs the CLI and exits with the code mapped from the error.
func Execute(version string) {
	if version != "" {
		buildVersion = version
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	cmd := newRootCmd(in, out, errOut)
	cmd.SetArgs(normalizeArgs(args))
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return apperr.ExitCode(err)
	}
	return 0
}

// Personal.AI order the ending
