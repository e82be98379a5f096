package dhcpv6

import (
	"encoding/binary"
	"net"
)

// brokenDUIDType marks a vendor-assigned (type 2, DUID-EN-shaped) DUID,
// matching RFC 3315's DUID type registry entry used as the carrier for
// the smuggled fields below.
const brokenDUIDType = 2

// brokenDUIDEnterprise and brokenDUIDSubtype are a private marker this
// relay stamps into the vendor-data of a synthetic client-id so it can
// recognize its own rewritten DUIDs coming back from a broken server
// that echoes the client-id verbatim (spec §5's "broken-DUID" path).
// They do not need to resolve to a registered IANA enterprise number —
// only to be distinguishable from any DUID a real client would send.
const (
	brokenDUIDEnterprise = 0x4a6e3230
	brokenDUIDSubtype    = 1
)

// brokenDUIDLen is the wire size of a BrokenDUID: type(2) + enterprise(4)
// + subtype(2) + ifindex(4) + link address(16).
const brokenDUIDLen = 28

// BrokenDUID is the synthetic client-id this relay prepends ahead of a
// client's real DUID when talking to a DHCPv6 server that cannot be
// reached through a standard RELAY-FORW envelope (spec §5, broken-server
// compatibility mode). It carries exactly the information a standard
// relay would have put in the envelope's peer-address and
// INTERFACE-ID option, smuggled instead inside an option the server is
// expected to echo back unmodified.
type BrokenDUID struct {
	IfIndex int
	Addr    net.IP // the client's source (peer) address, 16 bytes
}

// Pack encodes d as the 28-byte wire form.
func (d BrokenDUID) Pack() []byte {
	buf := make([]byte, brokenDUIDLen)
	binary.BigEndian.PutUint16(buf[0:2], brokenDUIDType)
	binary.BigEndian.PutUint32(buf[2:6], brokenDUIDEnterprise)
	binary.BigEndian.PutUint16(buf[6:8], brokenDUIDSubtype)
	binary.BigEndian.PutUint32(buf[8:12], uint32(d.IfIndex))
	copy(buf[12:28], d.Addr.To16())
	return buf
}

// ParseBrokenDUID reports whether buf begins with a BrokenDUID marker
// and, if so, decodes it.
func ParseBrokenDUID(buf []byte) (BrokenDUID, bool) {
	if len(buf) < brokenDUIDLen {
		return BrokenDUID{}, false
	}
	if binary.BigEndian.Uint16(buf[0:2]) != brokenDUIDType {
		return BrokenDUID{}, false
	}
	if binary.BigEndian.Uint32(buf[2:6]) != brokenDUIDEnterprise {
		return BrokenDUID{}, false
	}
	if binary.BigEndian.Uint16(buf[6:8]) != brokenDUIDSubtype {
		return BrokenDUID{}, false
	}
	ifindex := int(int32(binary.BigEndian.Uint32(buf[8:12])))
	addr := append(net.IP(nil), buf[12:28]...)
	return BrokenDUID{IfIndex: ifindex, Addr: addr}, true
}

// serverIDLen is the byte length of the DUID-LL server-id this process
// advertises from the stateless server path: duid-type(2) +
// hardware-type(2) + MAC(6).
const serverIDLen = 10

const hardwareTypeEthernet = 1

// buildServerID returns a DUID-LL built from mac, used as the
// server-id option content in stateless SOLICIT/REQUEST responses.
func buildServerID(mac net.HardwareAddr) []byte {
	buf := make([]byte, serverIDLen)
	binary.BigEndian.PutUint16(buf[0:2], 3) // DUID-LL
	binary.BigEndian.PutUint16(buf[2:4], hardwareTypeEthernet)
	copy(buf[4:10], mac)
	return buf
}
