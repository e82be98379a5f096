// Package dhcpv6 implements the stateless DHCPv6 relay and server paths
// from spec §5: forwarding client requests into RELAY-FORW envelopes
// (standard RFC 3315 §7 relaying, or a broken-server-compatible mode that
// smuggles link information inside the client-id option instead),
// unwrapping RELAY-REPL replies back to the client, and answering
// SOLICIT/INFORMATION-REQUEST/REQUEST directly when no real DHCPv6
// server is present.
//
// Packets are walked and rewritten in place over raw byte slices rather
// than decoded into an object model, matching the TLV-walking style of
// facebookincubator's dhcplb Packet6 and mdlayher's dhcp6 RelayMessage
// (see DESIGN.md) — the in-place length-delta fixups spec invariant 3
// requires are naturally expressed that way.
package dhcpv6

import (
	"encoding/binary"
	"net"

	upstream "github.com/insomniacslk/dhcp/dhcpv6"
)

// Message types, re-exported as bytes so call sites read like the wire
// format they switch on. Values come from the upstream DHCPv6 message
// type enumeration (github.com/insomniacslk/dhcp/dhcpv6/message.go).
const (
	Solicit            = byte(upstream.MessageTypeSolicit)
	Advertise          = byte(upstream.MessageTypeAdvertise)
	Request            = byte(upstream.MessageTypeRequest)
	Confirm            = byte(upstream.MessageTypeConfirm)
	Renew              = byte(upstream.MessageTypeRenew)
	Rebind             = byte(upstream.MessageTypeRebind)
	Reply              = byte(upstream.MessageTypeReply)
	Release            = byte(upstream.MessageTypeRelease)
	Decline            = byte(upstream.MessageTypeDecline)
	Reconfigure        = byte(upstream.MessageTypeReconfigure)
	InformationRequest = byte(upstream.MessageTypeInformationRequest)
	RelayForward       = byte(upstream.MessageTypeRelayForward)
	RelayReply         = byte(upstream.MessageTypeRelayReply)
)

// Option codes used by the relay and stateless-server paths.
const (
	OptClientID     = uint16(upstream.OptionClientID)
	OptServerID     = uint16(upstream.OptionServerID)
	OptIANA         = uint16(upstream.OptionIANA)
	OptIAAddr       = uint16(upstream.OptionIAAddr)
	OptORO          = uint16(upstream.OptionORO)
	OptElapsedTime  = uint16(upstream.OptionElapsedTime)
	OptRelayMsg     = uint16(upstream.OptionRelayMsg)
	OptAuth         = uint16(upstream.OptionAuth)
	OptStatusCode   = uint16(upstream.OptionStatusCode)
	OptDNSServers   = uint16(upstream.OptionDNSRecursiveNameServer)
	OptDomainSearch = uint16(upstream.OptionDomainSearchList)
	OptInterfaceID  = uint16(upstream.OptionInterfaceID)
)

// StatusNoAddrsAvail is the DHCPv6 status code returned for an IA_NA
// when this process is not a stateful address-assigning server.
const StatusNoAddrsAvail = 2

// HopCountLimit bounds how many relays a RELAY-FORW envelope may have
// passed through before this process refuses to add another hop (spec
// invariant 4, RFC 3315 §7's HOP_COUNT_LIMIT).
const HopCountLimit = 32

// ClientHeaderLen is the fixed portion of a non-relay DHCPv6 message:
// msg-type(1) + transaction-id(3).
const ClientHeaderLen = 4

// RelayHeaderLen is the fixed portion of a RELAY-FORW/RELAY-REPL
// message: msg-type(1) + hop-count(1) + link-address(16) + peer-address(16).
const RelayHeaderLen = 34

// MessageType returns the first byte of buf, or 0 for an empty buffer.
func MessageType(buf []byte) byte {
	if len(buf) == 0 {
		return 0
	}
	return buf[0]
}

// IsRelay reports whether t is RELAY-FORW or RELAY-REPL.
func IsRelay(t byte) bool { return t == RelayForward || t == RelayReply }

// HopCount returns the hop-count field of a relay message.
func HopCount(buf []byte) byte {
	if len(buf) < 2 {
		return 0
	}
	return buf[1]
}

// LinkAddress returns the link-address field of a relay message. The
// returned net.IP aliases buf.
func LinkAddress(buf []byte) net.IP {
	if len(buf) < 18 {
		return nil
	}
	return net.IP(buf[2:18])
}

// PeerAddress returns the peer-address field of a relay message. The
// returned net.IP aliases buf.
func PeerAddress(buf []byte) net.IP {
	if len(buf) < RelayHeaderLen {
		return nil
	}
	return net.IP(buf[18:RelayHeaderLen])
}

// Option is one TLV walked in place over a shared byte slice.
type Option struct {
	Code   uint16
	Start  int // offset of the option payload within the walked buffer
	Length int
}

// Data returns the option payload within buf.
func (o Option) Data(buf []byte) []byte { return buf[o.Start : o.Start+o.Length] }

// Options walks the TLV option stream starting at buf[offset:]. It stops
// at the first truncated or malformed option header rather than
// returning an error, mirroring the original's defensive
// dhcpv6_for_each_option loop, which simply stops advancing once a
// length would run past the buffer.
func Options(buf []byte, offset int) []Option {
	var opts []Option
	i := offset
	for i >= 0 && i+4 <= len(buf) {
		code := binary.BigEndian.Uint16(buf[i : i+2])
		length := int(binary.BigEndian.Uint16(buf[i+2 : i+4]))
		start := i + 4
		if length < 0 || start+length > len(buf) {
			break
		}
		opts = append(opts, Option{Code: code, Start: start, Length: length})
		i = start + length
	}
	return opts
}

// FindOption returns the first option with the given code in the TLV
// stream starting at offset, if any.
func FindOption(buf []byte, offset int, code uint16) (Option, bool) {
	for _, o := range Options(buf, offset) {
		if o.Code == code {
			return o, true
		}
	}
	return Option{}, false
}

// putOptionHeader writes a 4-byte option header (code, length) to dst.
func putOptionHeader(dst []byte, code uint16, length int) {
	binary.BigEndian.PutUint16(dst[0:2], code)
	binary.BigEndian.PutUint16(dst[2:4], uint16(length))
}

// appendOption appends a complete code/length/value option to buf.
func appendOption(buf []byte, code uint16, value []byte) []byte {
	hdr := make([]byte, 4)
	putOptionHeader(hdr, code, len(value))
	buf = append(buf, hdr...)
	buf = append(buf, value...)
	return buf
}
