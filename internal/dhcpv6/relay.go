package dhcpv6

import (
	"encoding/binary"
	"net"

	"github.com/fgggid/ip6relayd/internal/eventloop"
	"github.com/fgggid/ip6relayd/internal/ifreg"
	"github.com/fgggid/ip6relayd/internal/netinfo"
)

// relayClientRequestStandard implements spec §4.2 "Client->Server path
// (standard)": wraps a client message received on slave in a
// RELAY-FORW envelope and forwards it to the all-DHCP-servers multicast
// group on the master.
func (r *Relay) relayClientRequestStandard(src net.IP, data []byte, slave *ifreg.Interface) {
	msgType := MessageType(data)
	if !isClientRequest(msgType) {
		log.Debugf("dropping non-client message type %d from slave %s", msgType, slave.Name)
		return
	}

	hop := byte(0)
	if msgType == RelayForward {
		in := HopCount(data)
		if in >= HopCountLimit {
			log.Debugf("dropping RELAY-FORW at hop limit from slave %s", slave.Name)
			return
		}
		hop = in + 1
	}

	linkAddr, ok := r.linkAddressFor(slave)
	if !ok {
		log.Debugf("dropping client request from %s: no global address on slave %s", src, slave.Name)
		return
	}

	env := buildRelayForwardHeader(hop, linkAddr, src)
	env = appendOption(env, OptInterfaceID, interfaceIDPayload(slave.Index))
	env = appendRelayMsgHeader(env, len(data))

	if err := eventloop.Forward(r.serverSock, allDHCPServers, serverPort, [][]byte{env, data}, r.registry.Master, false); err != nil {
		return
	}
	log.Debugf("relayed %s from %s via slave %s (hop %d)", messageName(msgType), src, slave.Name, hop)
}

// linkAddressFor picks the RELAY-FORW link_address for a client request
// arriving on slave: its own first global address, or (if
// AllowMasterAddressFallback is set and it has none) the master's,
// per spec §9 Open Question (ii).
func (r *Relay) linkAddressFor(slave *ifreg.Interface) (net.IP, bool) {
	if addr, ok := netinfo.FirstGlobal(slave.Index); ok {
		return addr, true
	}
	if !r.cfg.AllowMasterAddressFallback {
		return nil, false
	}
	return netinfo.FirstGlobal(r.registry.Master.Index)
}

// buildRelayForwardHeader returns a fresh RELAY-FORW header (message
// type, hop count, link-address, peer-address) with no options yet.
func buildRelayForwardHeader(hop byte, linkAddr, peerAddr net.IP) []byte {
	buf := make([]byte, 0, RelayHeaderLen)
	buf = append(buf, RelayForward, hop)
	buf = append(buf, linkAddr.To16()...)
	buf = append(buf, peerAddr.To16()...)
	return buf
}

// interfaceIDPayload returns the 4-byte big-endian ifindex carried in an
// INTERFACE-ID option.
func interfaceIDPayload(ifindex int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(ifindex))
	return buf
}

// appendRelayMsgHeader appends a RELAY-MSG option's 4-byte header (code,
// length) sized for an embedded message of innerLen bytes; the embedded
// message itself is sent as a separate iovec segment by the caller
// (spec §4.2, "sent as a second iovec segment to avoid a copy").
func appendRelayMsgHeader(buf []byte, innerLen int) []byte {
	hdr := make([]byte, 4)
	putOptionHeader(hdr, OptRelayMsg, innerLen)
	return append(buf, hdr...)
}

// handleServerReply implements spec §4.2 "Server->Client path
// (standard)": unwraps a RELAY-REPL arriving from the master and
// forwards the embedded client message to the right slave.
func (r *Relay) handleServerReply(src net.IP, data []byte) {
	if MessageType(data) != RelayReply {
		log.Debugf("dropping non-RELAY-REPL message from master (type %d)", MessageType(data))
		return
	}
	if len(data) < RelayHeaderLen {
		return
	}

	ifidOpt, ok := FindOption(data, RelayHeaderLen, OptInterfaceID)
	if !ok || ifidOpt.Length != 4 {
		log.Debugf("dropping RELAY-REPL: missing or malformed INTERFACE-ID option")
		return
	}
	relayMsgOpt, ok := FindOption(data, RelayHeaderLen, OptRelayMsg)
	if !ok {
		log.Debugf("dropping RELAY-REPL: missing RELAY-MSG option")
		return
	}

	ifindex := int(binary.BigEndian.Uint32(ifidOpt.Data(data)))
	slave := r.registry.ByIndex(ifindex)
	if slave == nil || slave.Master {
		log.Debugf("dropping RELAY-REPL: INTERFACE-ID %d is not a managed slave", ifindex)
		return
	}

	inner := append([]byte(nil), relayMsgOpt.Data(data)...)
	if rewriteDNSServers(inner, firstGlobalOrNil(slave.Index), r.cfg.AlwaysRewriteDNS) {
		log.Debugf("dropping RELAY-REPL for slave %s: AUTH option present or no global address, cannot rewrite DNS-SERVERS", slave.Name)
		return
	}

	peer := PeerAddress(data)
	dstPort := clientPort
	if MessageType(inner) == RelayReply {
		dstPort = serverPort
	}
	_ = eventloop.Forward(r.serverSock, peer, dstPort, [][]byte{inner}, slave, false)
}

// firstGlobalOrNil is netinfo.FirstGlobal with the ok bool folded away
// for call sites that already know rewriteDNSServers will only consult
// its argument when a DNS-SERVERS option actually exists.
func firstGlobalOrNil(ifindex int) net.IP {
	addr, _ := netinfo.FirstGlobal(ifindex)
	return addr
}

// messageName is a debug-log helper naming the common client request
// types; anything else is printed numerically by the caller's %d.
func messageName(t byte) string {
	switch t {
	case Solicit:
		return "SOLICIT"
	case Request:
		return "REQUEST"
	case Confirm:
		return "CONFIRM"
	case Renew:
		return "RENEW"
	case Rebind:
		return "REBIND"
	case Release:
		return "RELEASE"
	case Decline:
		return "DECLINE"
	case InformationRequest:
		return "INFORMATION-REQUEST"
	case RelayForward:
		return "RELAY-FORW"
	default:
		return "message"
	}
}
