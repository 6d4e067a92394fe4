package protocol

import (
	"time"

	"github.com/turtacn/apswitch/pkg/consts"
)

// Config represents the root configuration file.
type Config struct {
	Version       string              `yaml:"version"`
	Profile       NetworkProfile      `yaml:"profile"`
	Daemons       DaemonsConfig       `yaml:"daemons"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// NetworkProfile is the user-supplied description of the access point.
type NetworkProfile struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
	Interface  string `yaml:"interface"`
	IPRange    string `yaml:"ip_range"` // CIDR, e.g. 192.168.4.0/24
	Channel    int    `yaml:"channel"`

	Driver      string `yaml:"driver"`
	HWMode      string `yaml:"hw_mode"`
	CountryCode string `yaml:"country_code"`

	// Optional; derived from IPRange when empty.
	Gateway        string `yaml:"gateway"`
	DHCPRangeStart string `yaml:"dhcp_range_start"`
	DHCPRangeEnd   string `yaml:"dhcp_range_end"`
	LeaseTime      string `yaml:"lease_time"`
}

type DaemonsConfig struct {
	// ServiceManager is "auto", "systemd" or "initscripts".
	ServiceManager string     `yaml:"service_manager"`
	DhcpClient     DaemonSpec `yaml:"dhcp_client"`
	AccessPoint    DaemonSpec `yaml:"access_point"`
	DnsDhcpServer  DaemonSpec `yaml:"dns_dhcp_server"`
	// APDefaultsFile carries the DAEMON_CONF pointer read by the hostapd unit.
	APDefaultsFile string `yaml:"ap_defaults_file"`
}

// DaemonSpec statically describes one managed daemon.
type DaemonSpec struct {
	Kind           consts.DaemonKind `yaml:"-"`
	ServiceID      string            `yaml:"service"`
	ConfigPath     string            `yaml:"config_path"`
	RestartTimeout time.Duration     `yaml:"restart_timeout"`
}

type OrchestrationConfig struct {
	StateDir      string           `yaml:"state_dir"`
	PollInterval  time.Duration    `yaml:"poll_interval"`
	StatusTimeout time.Duration    `yaml:"status_timeout"`
	Deactivate    DeactivateConfig `yaml:"deactivate"`
}

type DeactivateConfig struct {
	RestartDhcpClient bool `yaml:"restart_dhcp_client"`
}

type ObservabilityConfig struct {
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// Spec returns the daemon spec for kind.
func (d DaemonsConfig) Spec(kind consts.DaemonKind) DaemonSpec {
	switch kind {
	case consts.DhcpClient:
		return d.DhcpClient
	case consts.AccessPointDaemon:
		return d.AccessPoint
	default:
		return d.DnsDhcpServer
	}
}

// Personal.AI order the ending
