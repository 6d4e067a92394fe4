package render

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/protocol"
)

// ManagedHeader opens every file apswitch owns outright.
const ManagedHeader = "# Managed by apswitch. Changes are overwritten on activate."

// DNSName is the name dnsmasq answers with the gateway address.
const DNSName = "gw.wlan"

var hostapdTemplate = template.Must(template.New("hostapd").Option("missingkey=error").Parse(
	ManagedHeader + `
interface={{.Interface}}
driver={{.Driver}}
ssid={{.SSID}}
{{- if .CountryCode}}
country_code={{.CountryCode}}
ieee80211d=1
{{- end}}
hw_mode={{.HWMode}}
channel={{.Channel}}
wmm_enabled=0
macaddr_acl=0
auth_algs=1
ignore_broadcast_ssid=0
wpa=2
wpa_passphrase={{.Passphrase}}
wpa_key_mgmt=WPA-PSK
wpa_pairwise=TKIP
rsn_pairwise=CCMP
`))

var dnsmasqTemplate = template.Must(template.New("dnsmasq").Option("missingkey=error").Parse(
	ManagedHeader + `
interface={{.Interface}}
dhcp-authoritative
dhcp-range={{.Plan.RangeStart}},{{.Plan.RangeEnd}},{{.Plan.Netmask}},{{.LeaseTime}}
domain=wlan
address=/` + DNSName + `/{{.Plan.Gateway}}
`))

var dhcpcdTemplate = template.Must(template.New("dhcpcd").Option("missingkey=error").Parse(
	`{{.Begin}}
interface {{.Interface}}
    static ip_address={{.Plan.Gateway}}/{{.Plan.Prefix.Bits}}
    nohook wpa_supplicant
{{.End}}
`))

type templateData struct {
	protocol.NetworkProfile
	Plan       AddressPlan
	Begin, End string
}

// blockMarkers delimit the stanza spliced into dhcpcd.conf.
func blockMarkers(iface string) (begin, end string) {
	return "# BEGIN apswitch " + iface, "# END apswitch " + iface
}

// Render is a pure function of (kind, profile): the same inputs always yield
// byte-identical output. For the DHCP client the result is the managed block
// only; Writer splices it into the host's file. Unset driver, hw_mode and
// lease_time fall back to their defaults.
func Render(ctx context.Context, kind consts.DaemonKind, p protocol.NetworkProfile) ([]byte, error) {
	p = withDefaults(p)
	if err := Validate(p); err != nil {
		return nil, err
	}
	plan, err := PlanAddresses(ctx, p)
	if err != nil {
		return nil, err
	}

	data := templateData{NetworkProfile: p, Plan: plan}
	data.Begin, data.End = blockMarkers(p.Interface)

	var tpl *template.Template
	switch kind {
	case consts.AccessPointDaemon:
		tpl = hostapdTemplate
	case consts.DnsDhcpServer:
		tpl = dnsmasqTemplate
	case consts.DhcpClient:
		tpl = dhcpcdTemplate
	default:
		return nil, apperr.New(apperr.ErrCodeInvalidProfile, "Render", fmt.Sprintf("unknown daemon kind %q", kind), nil)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

// RenderAPDefaults is the /etc/default/hostapd body pointing the init script
// at the rendered hostapd config.
func RenderAPDefaults(apConfigPath string) []byte {
	return []byte(fmt.Sprintf("DAEMON_CONF=%q\n", apConfigPath))
}

// Personal.AI order the ending
