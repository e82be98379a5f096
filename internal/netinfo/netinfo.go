// Package netinfo is the "interface-address" and "default route" external
// collaborator from spec §3/§4.3: it answers what IPv6 addresses are
// currently assigned to a link, and whether the kernel currently has a
// usable default route, both needed to build Router Advertisements and to
// pick a DHCPv6 relay link-address.
package netinfo

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/fgggid/ip6relayd/internal/logging"
)

var log = logging.GetLogger("netinfo")

// Addr is the IP address record from spec §3: address, prefix length,
// and the lifetimes the kernel currently reports for it.
type Addr struct {
	IP        net.IP
	PrefixLen int
	Preferred uint32 // seconds, as reported by the kernel at query time
	Valid     uint32
}

// IsLinkLocal reports whether a is a link-local unicast address.
func (a Addr) IsLinkLocal() bool { return a.IP.IsLinkLocalUnicast() }

// IsULA reports whether a falls in fc00::/7.
func (a Addr) IsULA() bool { return len(a.IP) == net.IPv6len && a.IP[0]&0xfe == 0xfc }

// Addresses returns every IPv6 address currently configured on the
// interface with the given OS index, most-recently-added order is not
// guaranteed (kernel order).
func Addresses(ifindex int) ([]Addr, error) {
	link, err := netlink.LinkByIndex(ifindex)
	if err != nil {
		return nil, fmt.Errorf("netinfo: interface %d: %w", ifindex, err)
	}
	nlAddrs, err := netlink.AddrList(link, netlink.FAMILY_V6)
	if err != nil {
		return nil, fmt.Errorf("netinfo: listing addresses on %s: %w", link.Attrs().Name, err)
	}
	out := make([]Addr, 0, len(nlAddrs))
	for _, a := range nlAddrs {
		if a.IPNet == nil || a.IP.To4() != nil {
			continue
		}
		ones, _ := a.IPNet.Mask.Size()
		out = append(out, Addr{
			IP:        a.IP,
			PrefixLen: ones,
			Preferred: uint32(a.PreferedLft),
			Valid:     uint32(a.ValidLft),
		})
	}
	return out, nil
}

// FirstGlobal returns the first non-link-local address on ifindex, or
// ok=false if the interface has none yet (spec §4.2's link_address
// selection, and §4.3's DNS rewrite fallback).
func FirstGlobal(ifindex int) (net.IP, bool) {
	addrs, err := Addresses(ifindex)
	if err != nil {
		log.Debugf("FirstGlobal(%d): %v", ifindex, err)
		return nil, false
	}
	for _, a := range addrs {
		if !a.IsLinkLocal() {
			return a.IP, true
		}
	}
	return nil, false
}

// HaveDefaultRoute reports whether the kernel IPv6 routing table
// currently has a non-loopback default route, mirroring the original's
// scan of /proc/net/ipv6_route for a route with an all-zero destination.
func HaveDefaultRoute() bool {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V6)
	if err != nil {
		log.Debugf("HaveDefaultRoute: listing routes: %v", err)
		return false
	}
	for _, r := range routes {
		if r.Dst != nil {
			continue // not a default route
		}
		link, err := netlink.LinkByIndex(r.LinkIndex)
		if err != nil || link.Attrs().Name == "lo" {
			continue
		}
		return true
	}
	return false
}
