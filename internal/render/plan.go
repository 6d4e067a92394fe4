package render

import (
	"context"
	"encoding/binary"
	"net"
	"net/netip"

	goipam "github.com/metal-stack/go-ipam"
	apperr "github.com/turtacn/apswitch/pkg/errors"
	"github.com/turtacn/apswitch/pkg/protocol"
)

// AddressPlan is the addressing derived from a profile's ip_range.
type AddressPlan struct {
	Prefix     netip.Prefix
	Gateway    netip.Addr
	RangeStart netip.Addr
	RangeEnd   netip.Addr
	Netmask    string
}

// PlanAddresses derives the AP's own address and the DHCP lease range.
// Explicit gateway and range bounds from the profile are honoured but must
// be hosts inside the prefix; the gateway is kept out of the lease range.
func PlanAddresses(ctx context.Context, p protocol.NetworkProfile) (AddressPlan, error) {
	fail := func(msg string, err error) (AddressPlan, error) {
		return AddressPlan{}, apperr.New(apperr.ErrCodeInvalidProfile, "PlanAddresses", msg, err)
	}

	prefix, err := netip.ParsePrefix(p.IPRange)
	if err != nil {
		return fail("ip_range "+p.IPRange+" is not a CIDR", err)
	}
	if !prefix.Addr().Is4() {
		return fail("ip_range must be IPv4", nil)
	}
	if prefix.Bits() > 30 {
		return fail("ip_range "+p.IPRange+" leaves no room for clients", nil)
	}
	prefix = prefix.Masked()

	ipam := goipam.New(ctx)
	pfx, err := ipam.NewPrefix(ctx, prefix.String())
	if err != nil {
		return fail("ip_range "+p.IPRange+" rejected", err)
	}

	acquire := func(field, want string) (netip.Addr, error) {
		var (
			ip  *goipam.IP
			err error
		)
		if want == "" {
			ip, err = ipam.AcquireIP(ctx, pfx.Cidr)
		} else {
			ip, err = ipam.AcquireSpecificIP(ctx, pfx.Cidr, want)
		}
		if err != nil {
			return netip.Addr{}, apperr.New(apperr.ErrCodeInvalidProfile, "PlanAddresses", field+" is not a free host in "+pfx.Cidr, err)
		}
		return netip.ParseAddr(ip.IP.String())
	}

	gateway, err := acquire("gateway", p.Gateway)
	if err != nil {
		return AddressPlan{}, err
	}

	start := p.DHCPRangeStart
	if start == "" {
		start = gateway.Next().String()
	}
	rangeStart, err := acquire("dhcp_range_start", start)
	if err != nil {
		return AddressPlan{}, err
	}

	end := p.DHCPRangeEnd
	if end == "" {
		end = lastHost(prefix).String()
	}
	rangeEnd := rangeStart
	if end != rangeStart.String() {
		if rangeEnd, err = acquire("dhcp_range_end", end); err != nil {
			return AddressPlan{}, err
		}
	}

	if rangeEnd.Less(rangeStart) {
		return fail("dhcp range end is below its start", nil)
	}
	if !gateway.Less(rangeStart) && !rangeEnd.Less(gateway) {
		return fail("gateway lies inside the dhcp range", nil)
	}

	return AddressPlan{
		Prefix:     prefix,
		Gateway:    gateway,
		RangeStart: rangeStart,
		RangeEnd:   rangeEnd,
		Netmask:    net.IP(net.CIDRMask(prefix.Bits(), 32)).String(),
	}, nil
}

// lastHost is the address just below the broadcast address.
func lastHost(prefix netip.Prefix) netip.Addr {
	b := prefix.Addr().As4()
	n := binary.BigEndian.Uint32(b[:]) | (1<<(32-prefix.Bits()) - 1)
	binary.BigEndian.PutUint32(b[:], n-1)
	return netip.AddrFrom4(b)
}

// Personal.AI order the ending
