// Package routerdisc implements the ICMPv6 Router Discovery relay and
// synthesis server from spec §4.3: relaying Router Advertisements from
// the master to every slave with MAC/DNS rewriting, forwarding Router
// Solicitations from slaves up to the master, and — in server mode —
// synthesizing RAs locally from the addresses and routes this process
// observes on each slave.
//
// Packets are built and walked over raw byte slices the same way
// internal/dhcpv6 does, following the hand-built RA construction shown
// in AdGuardHome's routeradv.go and the ICMPv6 control-message handling
// in NDPeekr's ndp_listener.go (see DESIGN.md); the raw socket and
// control-message plumbing itself lives in internal/eventloop, built on
// golang.org/x/net/ipv6 and unix.
package routerdisc

import "encoding/binary"

// ICMPv6 message types this package handles (spec §4.3).
const (
	RouterSolicit  = byte(133)
	RouterAdvert   = byte(134)
)

// RA/RS flag bits (spec §4.3, original's nd_ra_flags_reserved).
const (
	raFlagManaged = 0x80
	raFlagOther   = 0x40
	// raFlagProxy is RFC 4389's reserved "Proxy" bit, set unconditionally
	// on every relayed RA per spec §4.3 ("indicate a proxy, however [this
	// process does] not follow the rest of RFC 4389").
	raFlagProxy = 0x04
)

// ICMPv6 NDP option types used in Router Advertisements.
const (
	optSourceLinkAddr = 1
	optPrefixInfo     = 3
	optMTU            = 5
	optRecursiveDNS   = 25
	optDNSSearchList  = 31
)

// Prefix Information option flags.
const (
	piFlagOnlink = 0x80
	piFlagAuto   = 0x40
)

// raHeaderLen is the fixed ICMPv6+RA header: type(1) code(1) checksum(2)
// cur-hop-limit(1) flags(1) router-lifetime(2) reachable-time(4)
// retrans-timer(4).
const raHeaderLen = 16

// rsHeaderLen is the fixed ICMPv6+RS header: type(1) code(1) checksum(2)
// reserved(4).
const rsHeaderLen = 8

// MessageType returns the ICMPv6 type byte of buf, or 0 if empty.
func MessageType(buf []byte) byte {
	if len(buf) == 0 {
		return 0
	}
	return buf[0]
}

// Option is one NDP option walked in place, lengths expressed in bytes
// (the wire length field is in 8-octet units, per RFC 4861 §4.6).
type Option struct {
	Type   byte
	Start  int
	Length int
}

func (o Option) Data(buf []byte) []byte { return buf[o.Start : o.Start+o.Length] }

// Options walks the NDP option stream starting at buf[offset:], stopping
// cleanly at the first truncated or zero-length option header, mirroring
// icmpv6_for_each_option's defensive bounds checking in the original.
func Options(buf []byte, offset int) []Option {
	var opts []Option
	i := offset
	for i >= 0 && i+2 <= len(buf) {
		lenUnits := int(buf[i+1])
		if lenUnits == 0 {
			break
		}
		total := lenUnits * 8
		if i+total > len(buf) {
			break
		}
		opts = append(opts, Option{Type: buf[i], Start: i + 2, Length: total - 2})
		i += total
	}
	return opts
}

// FindOption returns the first option of the given type, if any.
func FindOption(buf []byte, offset int, optType byte) (Option, bool) {
	for _, o := range Options(buf, offset) {
		if o.Type == optType {
			return o, true
		}
	}
	return Option{}, false
}

// RouterLifetime returns the RA header's router-lifetime field, seconds.
func RouterLifetime(buf []byte) uint16 {
	if len(buf) < raHeaderLen {
		return 0
	}
	return binary.BigEndian.Uint16(buf[6:8])
}

// Flags returns the RA header's flags byte.
func Flags(buf []byte) byte {
	if len(buf) < raHeaderLen {
		return 0
	}
	return buf[5]
}

// SetFlag ORs bit into the RA header's flags byte in place.
func SetFlag(buf []byte, bit byte) {
	if len(buf) >= raHeaderLen {
		buf[5] |= bit
	}
}

// putOptionHeader writes a 2-byte option header (type, length-in-units)
// where length is the TOTAL option length in bytes (header included).
func putOptionHeader(dst []byte, optType byte, totalLen int) {
	dst[0] = optType
	dst[1] = byte(totalLen / 8)
}

// buildRAHeader returns a fresh 16-byte RA header with the given flags
// and router lifetime; reachable-time/retrans-timer are left zero
// (unspecified, matching the original).
func buildRAHeader(flags byte, routerLifetime uint16) []byte {
	buf := make([]byte, raHeaderLen)
	buf[0] = RouterAdvert
	buf[5] = flags
	binary.BigEndian.PutUint16(buf[6:8], routerLifetime)
	return buf
}

// buildRSPacket returns a minimal 8-byte Router Solicitation (spec §4.3,
// "forward_router_solicitation" sends no source-linkaddr option either).
func buildRSPacket() []byte {
	buf := make([]byte, rsHeaderLen)
	buf[0] = RouterSolicit
	return buf
}

// buildSourceLinkAddrOption returns a Source Link-Layer Address option
// (type 1) carrying mac, padded to an 8-octet multiple per RFC 4861
// §4.6.1.
func buildSourceLinkAddrOption(mac []byte) []byte {
	total := roundUp8(2 + len(mac))
	buf := make([]byte, total)
	putOptionHeader(buf, optSourceLinkAddr, total)
	copy(buf[2:], mac)
	return buf
}

// buildMTUOption returns an MTU option (type 5), always 8 bytes.
func buildMTUOption(mtu int) []byte {
	buf := make([]byte, 8)
	putOptionHeader(buf, optMTU, 8)
	binary.BigEndian.PutUint32(buf[4:8], uint32(mtu))
	return buf
}

// PrefixInfo is the decoded form of a Prefix Information option (spec
// §3's RA wire objects).
type PrefixInfo struct {
	Prefix    [16]byte // only the first 8 bytes (the /64) are meaningful
	Preferred uint32
	Valid     uint32
}

// IsULA reports whether p falls in fc00::/7.
func (p PrefixInfo) IsULA() bool { return p.Prefix[0]&0xfe == 0xfc }

// buildPrefixInfoOption returns a 32-byte Prefix-Information option
// (type 3) for a /64 prefix with ONLINK|AUTO flags, per spec §4.3.
func buildPrefixInfoOption(p PrefixInfo) []byte {
	buf := make([]byte, 32)
	buf[0] = optPrefixInfo
	buf[1] = 4
	buf[2] = 64
	buf[3] = piFlagOnlink | piFlagAuto
	binary.BigEndian.PutUint32(buf[4:8], p.Valid)
	binary.BigEndian.PutUint32(buf[8:12], p.Preferred)
	copy(buf[16:32], p.Prefix[:])
	return buf
}

// setPrefixInfoPreferred overwrites the preferred-lifetime field of an
// already-built Prefix Information option in place. ULA deprecation does
// not use it: deprecateULAIfPublic adjusts the PrefixInfo values before
// the options are built.
func setPrefixInfoPreferred(opt []byte, preferred uint32) {
	binary.BigEndian.PutUint32(opt[8:12], preferred)
}

// buildRecursiveDNSOption returns a Recursive DNS Server option (type
// 25, RFC 6106 §5.1) naming exactly one resolver address.
func buildRecursiveDNSOption(addr []byte, lifetime uint32) []byte {
	buf := make([]byte, 24)
	buf[0] = optRecursiveDNS
	buf[1] = 3
	binary.BigEndian.PutUint32(buf[4:8], lifetime)
	copy(buf[8:24], addr)
	return buf
}

// roundUp8 rounds n up to the next multiple of 8.
func roundUp8(n int) int { return (n + 7) &^ 7 }

// buildDNSSearchListOption returns a DNS Search List option (type 31,
// RFC 6106 §5.2) for a single domain, DNS-label-encoded and padded to an
// 8-octet boundary, per spec §3's RA wire objects.
func buildDNSSearchListOption(domain string, lifetime uint32) []byte {
	labels := encodeDNSLabels(domain)
	total := roundUp8(8 + len(labels))
	buf := make([]byte, total)
	buf[0] = optDNSSearchList
	buf[1] = byte(total / 8)
	binary.BigEndian.PutUint32(buf[4:8], lifetime)
	copy(buf[8:], labels)
	return buf
}

// encodeDNSLabels encodes domain ("example.com") in DNS label form
// (length-prefixed labels terminated by a zero byte), matching the
// original's use of libresolv's dn_comp (without name compression, which
// has no referent in a single-option context).
func encodeDNSLabels(domain string) []byte {
	if domain == "" {
		return []byte{0}
	}
	var out []byte
	start := 0
	for i := 0; i <= len(domain); i++ {
		if i == len(domain) || domain[i] == '.' {
			label := domain[start:i]
			if len(label) > 63 {
				label = label[:63]
			}
			out = append(out, byte(len(label)))
			out = append(out, label...)
			start = i + 1
		}
	}
	out = append(out, 0)
	return out
}
