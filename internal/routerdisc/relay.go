package routerdisc

import (
	"net"

	"github.com/fgggid/ip6relayd/internal/eventloop"
	"github.com/fgggid/ip6relayd/internal/ifreg"
	"github.com/fgggid/ip6relayd/internal/netinfo"
	"github.com/fgggid/ip6relayd/internal/sysctlw"
)

// forwardRouterAdvertisement implements spec §4.3 relay mode: a RA
// received on the master is forwarded to every slave with its
// source-linkaddr rewritten to that slave's MAC, its DNS entries
// optionally rewritten, and the OTHER-CONFIG/PROXY flags adjusted.
func (rd *RD) forwardRouterAdvertisement(data []byte) {
	lladdrOpt, haveLLAddr := FindOption(data, raHeaderLen, optSourceLinkAddr)
	dnsOpt, haveDNS := FindOption(data, raHeaderLen, optRecursiveDNS)

	flags := Flags(data)
	if rd.cfg.EnableDHCPv6Server {
		flags |= raFlagOther
	}
	flags |= raFlagProxy

	for _, slave := range rd.registry.Slaves {
		out := append([]byte(nil), data...)
		out[5] = flags

		if haveLLAddr {
			copy(lladdrOpt.Data(out), slave.HWAddr)
		}

		if rd.cfg.AlwaysRewriteDNS && haveDNS && dnsOpt.Length > dnsOptReservedAndLifetimeLen {
			addr, ok := rd.resolveRelayDNSAddr(slave)
			if !ok {
				log.Debugf("skipping RA forward to slave %s: no address to rewrite DNS option", slave.Name)
				continue
			}
			rewriteDNSOption(out, dnsOpt, addr)
		}

		_ = eventloop.Forward(rd.sock, allNodes, 0, [][]byte{out}, slave, true)
	}
}

// dnsOptReservedAndLifetimeLen is the RECURSIVE-DNS option's reserved(2)
// + lifetime(4) header within Option.Data, preceding the address list
// (RFC 6106 §5.1).
const dnsOptReservedAndLifetimeLen = 6

// rewriteDNSOption overwrites every 16-byte server address in dnsOpt (an
// already-located RECURSIVE-DNS option within out) with addr, per spec
// §4.3 relay mode step 2.
func rewriteDNSOption(out []byte, dnsOpt Option, addr net.IP) {
	servers := dnsOpt.Data(out)[dnsOptReservedAndLifetimeLen:]
	a16 := addr.To16()
	for i := 0; i+16 <= len(servers); i += 16 {
		copy(servers[i:i+16], a16)
	}
}

// resolveRelayDNSAddr picks the address the relayed RA's DNS option is
// rewritten to: the configured override, or the slave's own first
// global address (spec §4.3 relay mode step 2).
func (rd *RD) resolveRelayDNSAddr(slave *ifreg.Interface) (net.IP, bool) {
	if rd.cfg.DNSAddr != nil && !rd.cfg.DNSAddr.IsUnspecified() {
		return rd.cfg.DNSAddr, true
	}
	return netinfo.FirstGlobal(slave.Index)
}

// forwardRouterSolicitation implements spec §4.3's "forward_router_
// solicitation": sends a minimal RS to all-routers on the master, used
// both for the initial startup solicitation and whenever a slave
// observes a client's own RS.
func (rd *RD) forwardRouterSolicitation() {
	if rd.cfg.ForceAddressAssignment {
		for _, slave := range rd.registry.Slaves {
			_ = sysctlw.SetAcceptRA(slave.Name, 2)
		}
	}
	buf := buildRSPacket()
	_ = eventloop.Forward(rd.sock, allRouters, 0, [][]byte{buf}, rd.registry.Master, true)
	log.Debugf("sent RS on master %s", rd.registry.Master.Name)
}
