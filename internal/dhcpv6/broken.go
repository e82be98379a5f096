package dhcpv6

import (
	"net"

	"github.com/fgggid/ip6relayd/internal/eventloop"
	"github.com/fgggid/ip6relayd/internal/ifreg"
)

// maxBrokenCompatPacket bounds the rewritten packet against the fixed
// receive buffer the event loop reads into (spec invariant 3, "growth
// checks are performed before memmove" — this implementation instead
// builds a fresh buffer and checks its final size before sending, which
// is the safe-slice-math approach spec §9's design notes recommend over
// pointer arithmetic).
const maxBrokenCompatPacket = 2048

// relayClientRequestBroken implements spec §4.2 "Client->Server path
// (broken-server compatibility)": smuggles (ifindex, source link-local)
// into the client-id option instead of wrapping a RELAY-FORW envelope,
// for servers that don't understand relay encapsulation.
func (r *Relay) relayClientRequestBroken(src net.IP, data []byte, slave *ifreg.Interface) {
	msgType := MessageType(data)
	if !isClientRequest(msgType) {
		log.Debugf("dropping non-client message type %d from slave %s", msgType, slave.Name)
		return
	}

	if _, ok := FindOption(data, ClientHeaderLen, OptAuth); ok {
		log.Debugf("dropping broken-compat request from slave %s: AUTH option present, cannot rewrite", slave.Name)
		return
	}

	clientIDOpt, ok := FindOption(data, ClientHeaderLen, OptClientID)
	if !ok {
		log.Debugf("dropping broken-compat request from slave %s: no client-id option", slave.Name)
		return
	}

	duid := BrokenDUID{IfIndex: slave.Index, Addr: src}.Pack()

	out := make([]byte, 0, len(data)+len(duid))
	out = append(out, data[:clientIDOpt.Start]...)
	out = append(out, duid...)
	out = append(out, data[clientIDOpt.Start:]...)
	newLen := clientIDOpt.Length + len(duid)
	lenOffset := clientIDOpt.Start - 2
	out[lenOffset] = byte(newLen >> 8)
	out[lenOffset+1] = byte(newLen & 0xff)

	if len(out) > maxBrokenCompatPacket {
		log.Warnf("dropping broken-compat request from slave %s: rewritten packet %d bytes exceeds buffer", slave.Name, len(out))
		return
	}

	if err := eventloop.Forward(r.serverSock, allDHCPRelays, serverPort, [][]byte{out}, r.registry.Master, false); err != nil {
		return
	}
	log.Debugf("relayed (broken-compat) %s from %s via slave %s", messageName(msgType), src, slave.Name)
}

// handleServerReplyBroken implements spec §4.2 "Server->Client path
// (broken-server compatibility)": the legacy server echoes the smuggled
// client-id verbatim; this strips the BrokenDUID prefix back off,
// recovers the original (ifindex, client address), and forwards the
// cleaned reply.
func (r *Relay) handleServerReplyBroken(data []byte) {
	if _, ok := FindOption(data, ClientHeaderLen, OptAuth); ok {
		log.Debugf("dropping broken-compat reply: AUTH option present, cannot rewrite")
		return
	}

	clientIDOpt, ok := FindOption(data, ClientHeaderLen, OptClientID)
	if !ok {
		log.Debugf("dropping broken-compat reply: no client-id option")
		return
	}
	duid, ok := ParseBrokenDUID(clientIDOpt.Data(data))
	if !ok {
		log.Debugf("dropping broken-compat reply: client-id is not a recognized broken DUID")
		return
	}

	slave := r.registry.ByIndex(duid.IfIndex)
	if slave == nil || slave.Master {
		log.Debugf("dropping broken-compat reply: ifindex %d is not a managed slave", duid.IfIndex)
		return
	}

	const duidLen = 28
	out := make([]byte, 0, len(data)-duidLen)
	out = append(out, data[:clientIDOpt.Start]...)
	out = append(out, data[clientIDOpt.Start+duidLen:]...)
	newLen := clientIDOpt.Length - duidLen
	lenOffset := clientIDOpt.Start - 2
	out[lenOffset] = byte(newLen >> 8)
	out[lenOffset+1] = byte(newLen & 0xff)

	if rewriteDNSServers(out, firstGlobalOrNil(slave.Index), r.cfg.AlwaysRewriteDNS) {
		log.Debugf("dropping broken-compat reply for slave %s: no global address to rewrite DNS-SERVERS", slave.Name)
		return
	}

	_ = eventloop.Forward(r.serverSock, duid.Addr, clientPort, [][]byte{out}, slave, false)
}
