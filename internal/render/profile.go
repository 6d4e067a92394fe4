// Package render turns a NetworkProfile into the configuration files read by
// dhcpcd, hostapd and dnsmasq at startup, and keeps the host's original copies
// of those files so they can be put back on deactivate.
package render

import (
	"regexp"
	"strings"

	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/protocol"
)

var (
	ifaceName = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,15}$`)
	leaseTime = regexp.MustCompile(`^([0-9]+[smhd]?|infinite)$`)
)

// Validate checks the fields every rendered file depends on. A short
// passphrase is not rejected here; hostapd refuses it at start and that
// surfaces as an activation failure.
func Validate(p protocol.NetworkProfile) error {
	fail := func(msg string) error {
		return apperr.New(apperr.ErrCodeInvalidProfile, "Validate", msg, nil)
	}

	if err := ValidateInterface(p.Interface); err != nil {
		return err
	}
	switch {
	case p.SSID == "":
		return fail("ssid is empty")
	case len(p.SSID) > 32:
		return fail("ssid is longer than 32 bytes")
	case p.Passphrase == "":
		return fail("passphrase is empty")
	case p.IPRange == "":
		return fail("ip_range is empty")
	case p.Channel <= 0:
		return fail("channel must be positive")
	case p.LeaseTime != "" && !leaseTime.MatchString(p.LeaseTime):
		return fail("lease_time " + p.LeaseTime + " is not understood by dnsmasq")
	}

	// Every field lands on its own line in a key=value file.
	for name, v := range map[string]string{
		"ssid":         p.SSID,
		"passphrase":   p.Passphrase,
		"driver":       p.Driver,
		"hw_mode":      p.HWMode,
		"country_code": p.CountryCode,
	} {
		if strings.ContainsAny(v, "\r\n") {
			return fail(name + " contains a line break")
		}
	}
	return nil
}

// ValidateInterface checks that name is a plausible kernel interface name.
// The name also keys the lock and marker files, so anything that could
// escape the state directory is rejected.
func ValidateInterface(name string) error {
	if name == "" {
		return apperr.New(apperr.ErrCodeInvalidProfile, "Validate", "interface is empty", nil)
	}
	if !ifaceName.MatchString(name) || name == "." || name == ".." {
		return apperr.New(apperr.ErrCodeInvalidProfile, "Validate", "interface name "+name+" is malformed", nil)
	}
	return nil
}

// withDefaults fills the optional radio and lease fields so a bare profile
// still renders lines the daemons accept.
func withDefaults(p protocol.NetworkProfile) protocol.NetworkProfile {
	if p.Driver == "" {
		p.Driver = consts.DefaultDriver
	}
	if p.HWMode == "" {
		p.HWMode = consts.DefaultHWMode
	}
	if p.LeaseTime == "" {
		p.LeaseTime = consts.DefaultLeaseTime
	}
	return p
}

// WeakPassphrase reports whether hostapd will reject the passphrase.
func WeakPassphrase(p protocol.NetworkProfile) bool {
	return len(p.Passphrase) < consts.MinPassphraseLength
}

// Personal.AI order the ending
