package routerdisc

import (
	"bytes"
	"math/rand"
	"net"
	"time"

	"github.com/fgggid/ip6relayd/internal/eventloop"
	"github.com/fgggid/ip6relayd/internal/ifreg"
	"github.com/fgggid/ip6relayd/internal/netinfo"
)

// sendRouterAdvert implements spec §4.3 "Server mode": synthesizes and
// sends one Router Advertisement for slave from its currently configured
// addresses, then rearms its interval timer. Called directly (not only
// from the timer callback) for the initial RA at startup and for the
// final RA at shutdown, mirroring the original's reuse of
// send_router_advert for both.
func (rd *RD) sendRouterAdvert(slave *ifreg.Interface) {
	mtu := slave.MTU
	if mtu <= 0 {
		mtu = 1500
	}

	flags := byte(raFlagOther)

	prefixes, havePublic, bestAddr, bestPreferred := rd.collectPrefixes(slave)

	var routerLifetime uint16
	if !rd.shutdown && netinfo.HaveDefaultRoute() {
		routerLifetime = uint16(3 * rd.cfg.MaxRtrAdvInterval / time.Second)
	}
	if !havePublic && !rd.cfg.AlwaysAnnounceDefaultRouter {
		routerLifetime = 0
	}

	deprecateULAIfPublic(prefixes, havePublic, rd.cfg.DeprecateULAIfPublicAvail)

	segments := [][]byte{
		buildRAHeader(flags, routerLifetime),
		buildSourceLinkAddrOption(slave.HWAddr),
		buildMTUOption(mtu),
	}
	for _, p := range prefixes {
		segments = append(segments, buildPrefixInfoOption(p))
	}

	if dnsAddr, dnsLifetime := rd.pickDNSAddr(bestAddr, bestPreferred); dnsAddr != nil {
		segments = append(segments, buildRecursiveDNSOption(dnsAddr.To16(), dnsLifetime))
	}
	if rd.cfg.SearchDomain != "" {
		lifetime := uint32(3 * rd.cfg.MaxRtrAdvInterval / time.Second)
		segments = append(segments, buildDNSSearchListOption(rd.cfg.SearchDomain, lifetime))
	}

	_ = eventloop.Forward(rd.sock, allNodes, 0, segments, slave, true)

	if !rd.shutdown {
		if timer, ok := rd.timers[slave.Index]; ok {
			_ = timer.Arm(randomInterval(rd.cfg.MinRtrAdvInterval, rd.cfg.MaxRtrAdvInterval))
		}
	}
}

// collectPrefixes queries the address-list collaborator for slave's
// currently assigned /64-or-shorter addresses, folds duplicates (by
// their first 8 bytes), caps lifetimes at MaxValidTime, and reports
// whether any resulting prefix is public (non-ULA) with a nonzero
// preferred lifetime, plus the actual address with the longest
// preferred lifetime seen (the RECURSIVE-DNS option's default target —
// note this is the full address, not the /64-masked prefix) — per spec
// §4.3's prefix-selection algorithm. While shutting down, address lookup
// is skipped entirely and no prefixes are announced (spec §4.3 "Timer":
// "no valid prefixes").
func (rd *RD) collectPrefixes(slave *ifreg.Interface) (prefixes []PrefixInfo, havePublic bool, bestAddr net.IP, bestPreferred uint32) {
	if rd.shutdown {
		return nil, false, nil, 0
	}

	addrs, err := netinfo.Addresses(slave.Index)
	if err != nil {
		log.Debugf("collectPrefixes(%s): %v", slave.Name, err)
		return nil, false, nil, 0
	}

	for _, a := range addrs {
		if a.PrefixLen > 64 {
			continue
		}
		preferred, valid := a.Preferred, a.Valid
		if preferred > rd.cfg.MaxValidTime {
			preferred = rd.cfg.MaxValidTime
		}
		if valid > rd.cfg.MaxValidTime {
			valid = rd.cfg.MaxValidTime
		}

		ip16 := a.IP.To16()
		idx := -1
		for i := range prefixes {
			if bytes.Equal(prefixes[i].Prefix[:8], ip16[:8]) {
				idx = i
				break
			}
		}
		if idx < 0 {
			if len(prefixes) >= rd.cfg.MaxPrefixes {
				break
			}
			var p PrefixInfo
			copy(p.Prefix[:8], ip16[:8])
			prefixes = append(prefixes, p)
			idx = len(prefixes) - 1
		}

		if !a.IsULA() && preferred > 0 {
			havePublic = true
		}
		prefixes[idx].Preferred = preferred
		prefixes[idx].Valid = valid

		if preferred > bestPreferred {
			bestPreferred = preferred
			bestAddr = ip16
		}
	}
	return prefixes, havePublic, bestAddr, bestPreferred
}

// deprecateULAIfPublic zeroes the preferred lifetime of every ULA prefix
// in prefixes in place when havePublic and enabled both hold (spec §4.3
// server mode, §8 invariant 5).
func deprecateULAIfPublic(prefixes []PrefixInfo, havePublic, enabled bool) {
	if !havePublic || !enabled {
		return
	}
	for i := range prefixes {
		if prefixes[i].IsULA() {
			prefixes[i].Preferred = 0
		}
	}
}

// pickDNSAddr returns the RECURSIVE-DNS option's target address and
// lifetime: the configured override (paired with the longest preferred
// lifetime seen across collectPrefixes' addresses), or else bestAddr/
// bestPreferred as already computed by collectPrefixes during its
// per-address scan — the full, unmasked address with the longest
// preferred lifetime, not the /64-masked prefix (spec §4.3 server
// mode). Returns a nil address if neither is available.
func (rd *RD) pickDNSAddr(bestAddr net.IP, bestPreferred uint32) (net.IP, uint32) {
	if rd.cfg.DNSAddr != nil && !rd.cfg.DNSAddr.IsUnspecified() {
		return rd.cfg.DNSAddr, bestPreferred
	}
	if bestAddr == nil {
		return nil, 0
	}
	return bestAddr, bestPreferred
}

// randomInterval returns a uniformly random duration in [min, max),
// per spec §4.3's RA timer ("uniform(MinRtrAdvInterval,
// MaxRtrAdvInterval)").
func randomInterval(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
