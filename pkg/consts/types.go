package consts

import "time"

// Operation identifies one request handed to the dispatcher, whether it came
// from a command-line flag or from the interactive menu.
type Operation string

const (
	OpPrepare            Operation = "prepare"
	OpActivate           Operation = "activate"
	OpDeactivate         Operation = "deactivate"
	OpCheck              Operation = "check"
	OpPrepareAndActivate Operation = "prepare-and-activate"
	OpCheckDeps          Operation = "check-deps"
	OpInstallDeps        Operation = "install-deps"
)

// Mutating reports whether the operation changes host state and therefore
// needs the interface lock.
func (o Operation) Mutating() bool {
	switch o {
	case OpPrepare, OpActivate, OpDeactivate, OpPrepareAndActivate, OpInstallDeps:
		return true
	}
	return false
}

// NetworkState is the orchestration's view of which role the interface is in.
type NetworkState string

const (
	StateIdle        NetworkState = "IDLE"
	StatePrepared    NetworkState = "PREPARED"    // dhcpcd restarted with the AP stanza
	StateActive      NetworkState = "ACTIVE"      // hostapd and dnsmasq running
	StateDeactivated NetworkState = "DEACTIVATED" // transient, settles to IDLE
)

// DaemonKind names one of the three daemons under orchestration.
type DaemonKind string

const (
	DhcpClient        DaemonKind = "dhcp-client"
	AccessPointDaemon DaemonKind = "access-point"
	DnsDhcpServer     DaemonKind = "dns-dhcp-server"
)

// DaemonKinds lists every kind in the order Check reports them.
var DaemonKinds = []DaemonKind{DhcpClient, AccessPointDaemon, DnsDhcpServer}

// Defaults
const (
	DefaultConfigPath = "/etc/apswitch/config.yaml"
	DefaultStateDir   = "/run/apswitch"

	DefaultDhcpClientService = "dhcpcd"
	DefaultAPService         = "hostapd"
	DefaultDNSService        = "dnsmasq"

	DefaultDhcpClientConfig = "/etc/dhcpcd.conf"
	DefaultAPConfig         = "/etc/hostapd/hostapd.conf"
	DefaultAPDefaultsFile   = "/etc/default/hostapd"
	DefaultDNSConfig        = "/etc/dnsmasq.conf"

	DefaultDriver    = "nl80211"
	DefaultHWMode    = "g"
	DefaultChannel   = 7
	DefaultLeaseTime = "24h"

	// dhcpcd is the slow one; everything else comes up in a few seconds.
	DefaultDhcpClientRestartTimeout = 60 * time.Second
	DefaultRestartTimeout           = 15 * time.Second
	DefaultPollInterval             = 500 * time.Millisecond
	DefaultStatusTimeout            = 3 * time.Second
	DefaultProbeTimeout             = 2 * time.Second

	MinPassphraseLength = 8

	BackupSuffix = "_original"
)

// Environment overrides applied on top of the yaml profile.
const (
	EnvSSID       = "APSWITCH_SSID"
	EnvPassphrase = "APSWITCH_PASSPHRASE"
	EnvInterface  = "APSWITCH_INTERFACE"
	EnvIPRange    = "APSWITCH_IP_RANGE"
)

// Personal.AI order the ending
