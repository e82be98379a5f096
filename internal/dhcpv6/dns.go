package dhcpv6

import "net"

// rewriteDNSServers rewrites every address in payload's top-level
// DNS-SERVERS option (in place; address count and option length never
// change since every entry is a fixed 16 bytes) to repl, either because
// alwaysRewrite is configured or because the server handed out a
// link-local address a client on a different link cannot reach.
//
// It returns abort=true without modifying anything if an AUTH option is
// present anywhere in payload (spec §4.2 "DNS rewriting", "rewrite
// impossible" error kind from spec §7(d)): the whole relay step must
// then be abandoned rather than emit a partially rewritten packet. It
// also returns abort=true if a rewrite is required but repl is nil (no
// global address known for the slave, spec §7(e) "resource unavailable"
// — the affected packet is dropped rather than forwarded with a
// resolver address the requesting client cannot reach).
func rewriteDNSServers(payload []byte, repl net.IP, alwaysRewrite bool) (abort bool) {
	if _, ok := FindOption(payload, ClientHeaderLen, OptAuth); ok {
		return true
	}
	opt, ok := FindOption(payload, ClientHeaderLen, OptDNSServers)
	if !ok {
		return false
	}
	servers := opt.Data(payload)
	if !alwaysRewrite && !anyLinkLocal(servers) {
		return false
	}
	if repl == nil {
		return true
	}
	repl16 := repl.To16()
	for i := 0; i+16 <= len(servers); i += 16 {
		copy(servers[i:i+16], repl16)
	}
	return false
}

// anyLinkLocal reports whether servers (a concatenation of 16-byte IPv6
// addresses) contains at least one link-local unicast address.
func anyLinkLocal(servers []byte) bool {
	for i := 0; i+16 <= len(servers); i += 16 {
		if net.IP(servers[i : i+16]).IsLinkLocalUnicast() {
			return true
		}
	}
	return false
}
