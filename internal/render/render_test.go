package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/apswitch/pkg/consts"
	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/protocol"
)

func testProfile() protocol.NetworkProfile {
	return protocol.NetworkProfile{
		SSID:       "TestNet",
		Passphrase: "longpass1",
		Interface:  "wlan0",
		IPRange:    "192.168.4.0/24",
		Channel:    7,
		Driver:     "nl80211",
		HWMode:     "g",
		LeaseTime:  "24h",
	}
}

func testDaemons(dir string) protocol.DaemonsConfig {
	return protocol.DaemonsConfig{
		DhcpClient:     protocol.DaemonSpec{Kind: consts.DhcpClient, ServiceID: "dhcpcd", ConfigPath: filepath.Join(dir, "dhcpcd.conf")},
		AccessPoint:    protocol.DaemonSpec{Kind: consts.AccessPointDaemon, ServiceID: "hostapd", ConfigPath: filepath.Join(dir, "hostapd", "hostapd.conf")},
		DnsDhcpServer:  protocol.DaemonSpec{Kind: consts.DnsDhcpServer, ServiceID: "dnsmasq", ConfigPath: filepath.Join(dir, "dnsmasq.conf")},
		APDefaultsFile: filepath.Join(dir, "default", "hostapd"),
	}
}

func TestRender_Hostapd(t *testing.T) {
	out, err := Render(context.Background(), consts.AccessPointDaemon, testProfile())
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, ManagedHeader+"\n"))
	assert.Contains(t, s, "interface=wlan0\ndriver=nl80211\nssid=TestNet\nhw_mode=g\nchannel=7\n")
	assert.Contains(t, s, "wpa_passphrase=longpass1\n")
	assert.NotContains(t, s, "country_code")
}

func TestRender_HostapdCountryCode(t *testing.T) {
	p := testProfile()
	p.CountryCode = "DE"

	out, err := Render(context.Background(), consts.AccessPointDaemon, p)
	require.NoError(t, err)
	assert.Contains(t, string(out), "ssid=TestNet\ncountry_code=DE\nieee80211d=1\nhw_mode=g\n")
}

func TestRender_Dnsmasq(t *testing.T) {
	out, err := Render(context.Background(), consts.DnsDhcpServer, testProfile())
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "interface=wlan0\ndhcp-authoritative\n")
	assert.Contains(t, s, "dhcp-range=192.168.4.2,192.168.4.254,255.255.255.0,24h\n")
	assert.Contains(t, s, "address=/gw.wlan/192.168.4.1\n")
}

func TestRender_DhcpcdBlock(t *testing.T) {
	out, err := Render(context.Background(), consts.DhcpClient, testProfile())
	require.NoError(t, err)

	assert.Equal(t,
		"# BEGIN apswitch wlan0\ninterface wlan0\n    static ip_address=192.168.4.1/24\n    nohook wpa_supplicant\n# END apswitch wlan0\n",
		string(out))
}

func TestRender_BareProfileUsesDefaults(t *testing.T) {
	p := protocol.NetworkProfile{
		SSID:       "TestNet",
		Passphrase: "longpass1",
		Interface:  "wlan0",
		IPRange:    "192.168.4.0/24",
		Channel:    6,
	}

	ap, err := Render(context.Background(), consts.AccessPointDaemon, p)
	require.NoError(t, err)
	assert.Contains(t, string(ap), "driver="+consts.DefaultDriver+"\n")
	assert.Contains(t, string(ap), "hw_mode="+consts.DefaultHWMode+"\n")
	assert.NotContains(t, string(ap), "=\n", "no key may be left without a value")

	dns, err := Render(context.Background(), consts.DnsDhcpServer, p)
	require.NoError(t, err)
	assert.Contains(t, string(dns), "dhcp-range=192.168.4.2,192.168.4.254,255.255.255.0,"+consts.DefaultLeaseTime+"\n")
	assert.NotContains(t, string(dns), ",\n")
}

func TestRender_Deterministic(t *testing.T) {
	for _, kind := range consts.DaemonKinds {
		first, err := Render(context.Background(), kind, testProfile())
		require.NoError(t, err)
		second, err := Render(context.Background(), kind, testProfile())
		require.NoError(t, err)
		assert.Equal(t, first, second, "kind %s", kind)
	}
}

func TestRender_InvalidProfile(t *testing.T) {
	cases := map[string]func(*protocol.NetworkProfile){
		"empty ssid":        func(p *protocol.NetworkProfile) { p.SSID = "" },
		"empty passphrase":  func(p *protocol.NetworkProfile) { p.Passphrase = "" },
		"empty interface":   func(p *protocol.NetworkProfile) { p.Interface = "" },
		"bad interface":     func(p *protocol.NetworkProfile) { p.Interface = "wlan0; rm -rf" },
		"malformed range":   func(p *protocol.NetworkProfile) { p.IPRange = "192.168.4.0/33" },
		"not a cidr":        func(p *protocol.NetworkProfile) { p.IPRange = "banana" },
		"ipv6 range":        func(p *protocol.NetworkProfile) { p.IPRange = "fd00::/64" },
		"too small":         func(p *protocol.NetworkProfile) { p.IPRange = "10.0.0.0/31" },
		"newline in ssid":   func(p *protocol.NetworkProfile) { p.SSID = "a\nwpa=0" },
		"zero channel":      func(p *protocol.NetworkProfile) { p.Channel = 0 },
		"bad lease":         func(p *protocol.NetworkProfile) { p.LeaseTime = "forever" },
		"gateway outside":   func(p *protocol.NetworkProfile) { p.Gateway = "10.0.0.1" },
		"gateway in range":  func(p *protocol.NetworkProfile) { p.DHCPRangeStart, p.DHCPRangeEnd = "192.168.4.1", "192.168.4.20"; p.Gateway = "192.168.4.10" },
		"range end < start": func(p *protocol.NetworkProfile) { p.DHCPRangeStart, p.DHCPRangeEnd = "192.168.4.50", "192.168.4.10" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := testProfile()
			mutate(&p)
			_, err := Render(context.Background(), consts.DnsDhcpServer, p)
			require.Error(t, err)
			assert.Equal(t, apperr.ErrCodeInvalidProfile, apperr.CodeOf(err))
		})
	}
}

func TestValidateInterface(t *testing.T) {
	for _, name := range []string{"wlan0", "wlp2s0", "wlan0.1", "ap-0"} {
		assert.NoError(t, ValidateInterface(name), name)
	}
	for _, name := range []string{"", ".", "..", "../x", "a/b", "wlan0 ", "averyveryverylongname"} {
		err := ValidateInterface(name)
		require.Error(t, err, name)
		assert.Equal(t, apperr.ErrCodeInvalidProfile, apperr.CodeOf(err), name)
	}
}

func TestRender_ShortPassphraseIsNotRejected(t *testing.T) {
	p := testProfile()
	p.Passphrase = "short"

	_, err := Render(context.Background(), consts.AccessPointDaemon, p)
	require.NoError(t, err)
	assert.True(t, WeakPassphrase(p))
	assert.False(t, WeakPassphrase(testProfile()))
}

func TestPlanAddresses_Explicit(t *testing.T) {
	p := testProfile()
	p.IPRange = "10.10.0.0/16"
	p.Gateway = "10.10.0.254"
	p.DHCPRangeStart = "10.10.1.1"
	p.DHCPRangeEnd = "10.10.1.100"

	plan, err := PlanAddresses(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "10.10.0.254", plan.Gateway.String())
	assert.Equal(t, "10.10.1.1", plan.RangeStart.String())
	assert.Equal(t, "10.10.1.100", plan.RangeEnd.String())
	assert.Equal(t, "255.255.0.0", plan.Netmask)
}

func TestPlanAddresses_HostBitsMasked(t *testing.T) {
	p := testProfile()
	p.IPRange = "192.168.4.77/24"

	plan, err := PlanAddresses(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "192.168.4.0/24", plan.Prefix.String())
	assert.Equal(t, "192.168.4.1", plan.Gateway.String())
}

func TestWriter_WriteIsAtomicAndIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(testDaemons(dir))
	ctx := context.Background()

	path, err := w.Write(ctx, consts.AccessPointDaemon, testProfile())
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = w.Write(ctx, consts.AccessPointDaemon, testProfile())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	defaults, err := os.ReadFile(filepath.Join(dir, "default", "hostapd"))
	require.NoError(t, err)
	assert.Equal(t, `DAEMON_CONF="`+path+`"`+"\n", string(defaults))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp file left behind")
	}
}

func TestWriter_DhcpcdSplice(t *testing.T) {
	dir := t.TempDir()
	d := testDaemons(dir)
	base := "hostname\nclientid\npersistent"
	require.NoError(t, os.WriteFile(d.DhcpClient.ConfigPath, []byte(base), 0o644))

	w := NewWriter(d)
	ctx := context.Background()

	_, err := w.Write(ctx, consts.DhcpClient, testProfile())
	require.NoError(t, err)
	first, err := os.ReadFile(d.DhcpClient.ConfigPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(first), base+"\n# BEGIN apswitch wlan0\n"))

	_, err = w.Write(ctx, consts.DhcpClient, testProfile())
	require.NoError(t, err)
	second, err := os.ReadFile(d.DhcpClient.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 1, strings.Count(string(second), "# BEGIN apswitch wlan0"))
}

func TestWriter_BackupRestore(t *testing.T) {
	dir := t.TempDir()
	d := testDaemons(dir)
	original := "hostname\n"
	require.NoError(t, os.WriteFile(d.DhcpClient.ConfigPath, []byte(original), 0o644))
	require.NoError(t, os.WriteFile(d.DnsDhcpServer.ConfigPath, []byte("# stock dnsmasq\n"), 0o644))

	w := NewWriter(d)
	ctx := context.Background()
	require.NoError(t, w.Backup())

	_, err := w.Write(ctx, consts.DhcpClient, testProfile())
	require.NoError(t, err)
	_, err = w.Write(ctx, consts.DnsDhcpServer, testProfile())
	require.NoError(t, err)

	// A second backup must not overwrite the pristine copy.
	require.NoError(t, w.Backup())
	saved, err := os.ReadFile(d.DhcpClient.ConfigPath + consts.BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, original, string(saved))

	require.NoError(t, w.Restore("wlan0"))

	restored, err := os.ReadFile(d.DhcpClient.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, original, string(restored))
	dns, err := os.ReadFile(d.DnsDhcpServer.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "# stock dnsmasq\n", string(dns))

	_, err = os.Stat(d.DhcpClient.ConfigPath + consts.BackupSuffix)
	assert.True(t, os.IsNotExist(err), "backup should be removed after restore")
}

func TestWriter_RestoreStripsBlockWithoutBackup(t *testing.T) {
	dir := t.TempDir()
	d := testDaemons(dir)
	w := NewWriter(d)

	_, err := w.Write(context.Background(), consts.DhcpClient, testProfile())
	require.NoError(t, err)
	require.NoError(t, w.Restore("wlan0"))

	data, err := os.ReadFile(d.DhcpClient.ConfigPath)
	require.NoError(t, err)
	assert.Empty(t, string(data))
}
