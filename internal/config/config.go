package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// Load reads the yaml config at path, loads envFile (if non-empty) into the
// process environment, applies APSWITCH_* overrides and fills defaults.
// A missing config file is not an error when every profile field comes from
// the environment.
func Load(path, envFile string) (*protocol.Config, error) {
	if envFile != "" {
		// godotenv never overwrites variables that are already set.
		if err := godotenv.Load(envFile); err != nil {
			return nil, apperr.New(apperr.ErrCodeInvalidProfile, "LoadConfig", "cannot load env file "+envFile, err)
		}
	}

	var cfg protocol.Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, apperr.New(apperr.ErrCodeInvalidProfile, "LoadConfig", "cannot parse "+path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// fall through to env-only configuration
	default:
		return nil, apperr.New(apperr.ErrCodeInvalidProfile, "LoadConfig", "cannot read "+path, err)
	}

	applyEnv(&cfg.Profile)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(p *protocol.NetworkProfile) {
	p.SSID = getEnv(consts.EnvSSID, p.SSID)
	p.Passphrase = getEnv(consts.EnvPassphrase, p.Passphrase)
	p.Interface = getEnv(consts.EnvInterface, p.Interface)
	p.IPRange = getEnv(consts.EnvIPRange, p.IPRange)
}

// ApplyDefaults fills every unset field with its default. Safe to call twice.
func ApplyDefaults(cfg *protocol.Config) {
	p := &cfg.Profile
	if p.Channel == 0 {
		p.Channel = consts.DefaultChannel
	}
	if p.Driver == "" {
		p.Driver = consts.DefaultDriver
	}
	if p.HWMode == "" {
		p.HWMode = consts.DefaultHWMode
	}
	if p.LeaseTime == "" {
		p.LeaseTime = consts.DefaultLeaseTime
	}

	d := &cfg.Daemons
	if d.ServiceManager == "" {
		d.ServiceManager = "auto"
	}
	fillSpec(&d.DhcpClient, consts.DhcpClient, consts.DefaultDhcpClientService, consts.DefaultDhcpClientConfig, consts.DefaultDhcpClientRestartTimeout)
	fillSpec(&d.AccessPoint, consts.AccessPointDaemon, consts.DefaultAPService, consts.DefaultAPConfig, consts.DefaultRestartTimeout)
	fillSpec(&d.DnsDhcpServer, consts.DnsDhcpServer, consts.DefaultDNSService, consts.DefaultDNSConfig, consts.DefaultRestartTimeout)
	if d.APDefaultsFile == "" {
		d.APDefaultsFile = consts.DefaultAPDefaultsFile
	}

	o := &cfg.Orchestration
	if o.StateDir == "" {
		o.StateDir = consts.DefaultStateDir
	}
	if o.PollInterval <= 0 {
		o.PollInterval = consts.DefaultPollInterval
	}
	if o.StatusTimeout <= 0 {
		o.StatusTimeout = consts.DefaultStatusTimeout
	}

	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
}

func fillSpec(s *protocol.DaemonSpec, kind consts.DaemonKind, service, path string, timeout time.Duration) {
	s.Kind = kind
	if s.ServiceID == "" {
		s.ServiceID = service
	}
	if s.ConfigPath == "" {
		s.ConfigPath = path
	}
	if s.RestartTimeout <= 0 {
		s.RestartTimeout = timeout
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Describe renders the effective config for debug logs with the passphrase masked.
func Describe(cfg *protocol.Config) string {
	c := *cfg
	if c.Profile.Passphrase != "" {
		c.Profile.Passphrase = "<redacted>"
	}
	out, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Sprintf("<unprintable config: %v>", err)
	}
	return string(out)
}

// Personal.AI order the ending
