package dhcpv6

import (
	"bytes"
	"encoding/binary"
	"net"

	"github.com/fgggid/ip6relayd/internal/eventloop"
	"github.com/fgggid/ip6relayd/internal/ifreg"
	"github.com/fgggid/ip6relayd/internal/netinfo"
)

// statusCodeSuboption is RFC 3315 §22.13's STATUS-CODE option, used here
// nested inside a returned IA_NA to signal NoAddrsAvail (spec §4.2
// "Stateless server mode").
const statusCodeSuboption = 13

// handleStatelessRequest implements spec §4.2 "Stateless server mode":
// answers SOLICIT/INFORMATION-REQUEST/REQUEST directly with no relay,
// walking any RELAY-FORW wrapping the request (from a sub-relay between
// this process and the client) and rewrapping the synthesized reply the
// same number of levels deep on the way out.
func (r *Relay) handleStatelessRequest(src net.IP, data []byte, slave *ifreg.Interface) {
	frames, innerOffset, ok := descendRelayChain(data)
	if !ok {
		log.Debugf("dropping malformed relay chain from slave %s", slave.Name)
		return
	}
	inner := data[innerOffset:]

	var replyType byte
	switch MessageType(inner) {
	case Solicit:
		replyType = Advertise
	case InformationRequest, Request:
		replyType = Reply
	default:
		return // REBIND (stateful) and anything else: ignored
	}

	reply, ok := r.buildStatelessReply(replyType, inner, slave)
	if !ok {
		return
	}

	if len(frames) == 0 {
		_ = eventloop.Forward(r.serverSock, src, clientPort, [][]byte{reply}, slave, false)
		return
	}

	delta := len(reply) - len(inner)
	out := make([]byte, innerOffset+len(reply))
	copy(out, data[:innerOffset])
	copy(out[innerOffset:], reply)
	ascendRelayChain(out, frames, delta)
	_ = eventloop.Forward(r.serverSock, src, serverPort, [][]byte{out}, slave, false)
}

// buildStatelessReply constructs the synthesized ADVERTISE/REPLY to
// inner, per spec §4.2: server-id (a DUID-LL built from the slave's
// MAC by buildServerID; not a vendor-type DUID), the client-id echoed verbatim when present and not oversized, a
// DNS-SERVERS option pointing at the slave's own global address, and —
// if the request carried an IA_NA — a nested NoAddrsAvail status so
// stateful clients fall back to another server. ok is false if the
// request carries a SERVERID addressed to some other server, or the
// slave has no global address to advertise yet.
func (r *Relay) buildStatelessReply(replyType byte, inner []byte, slave *ifreg.Interface) ([]byte, bool) {
	if len(inner) < ClientHeaderLen {
		return nil, false
	}

	serverID := buildServerID(slave.HWAddr)
	clientID, ok := scanStatelessRequestOptions(inner, serverID)
	if !ok {
		log.Debugf("dropping stateless request on slave %s: SERVERID not for us", slave.Name)
		return nil, false
	}

	dnsAddr, ok := netinfo.FirstGlobal(slave.Index)
	if !ok {
		log.Debugf("dropping stateless request on slave %s: no global address yet", slave.Name)
		return nil, false
	}

	buf := make([]byte, ClientHeaderLen)
	buf[0] = replyType
	copy(buf[1:4], inner[1:4])

	buf = appendOption(buf, OptServerID, serverID)
	if clientID != nil {
		buf = appendOption(buf, OptClientID, clientID)
	}
	buf = appendOption(buf, OptDNSServers, dnsAddr.To16())

	if iana, ok := FindOption(inner, ClientHeaderLen, OptIANA); ok {
		buf = appendOption(buf, OptIANA, buildNoAddrsAvailIANA(iana.Data(inner)))
	}

	return buf, true
}

// scanStatelessRequestOptions walks inner's options looking for a
// client-id to echo back and a SERVERID to validate against ourServerID
// (spec §4.2, matching the original's SOLICIT/REQUEST option scan).
// clientID is nil if the request had none, or one longer than 130
// bytes — it is then simply left out of the reply rather than rejecting
// the whole request. ok is false if a SERVERID option is present and
// does not match ourServerID: the request is addressed to some other
// server and must not be answered.
func scanStatelessRequestOptions(inner []byte, ourServerID []byte) (clientID []byte, ok bool) {
	ok = true
	for _, opt := range Options(inner, ClientHeaderLen) {
		switch opt.Code {
		case OptClientID:
			if opt.Length <= 130 {
				clientID = opt.Data(inner)
			}
		case OptServerID:
			if !bytes.Equal(opt.Data(inner), ourServerID) {
				ok = false
			}
		}
	}
	return clientID, ok
}

// buildNoAddrsAvailIANA echoes iana's IAID and zeroes T1/T2, appending a
// STATUS-CODE suboption reporting NoAddrsAvail, per RFC 3315 §22.4/22.13.
func buildNoAddrsAvailIANA(iana []byte) []byte {
	out := make([]byte, 12)
	if len(iana) >= 4 {
		copy(out[0:4], iana[0:4]) // IAID
	}
	status := make([]byte, 2)
	binary.BigEndian.PutUint16(status, StatusNoAddrsAvail)
	out = appendOption(out, statusCodeSuboption, status)
	return out
}
