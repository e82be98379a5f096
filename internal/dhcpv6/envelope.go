package dhcpv6

// nestedFrame records one RELAY-FORW envelope descended through by
// descendRelayChain, so ascendRelayChain can revisit each afterwards to
// flip it to RELAY-REPL and fix up its RELAY-MSG option length — mirrors
// the original's handle_nested_message/update_nested_message pair, which
// instead recursed and relied on raw pointer arithmetic into a single
// shared buffer.
type nestedFrame struct {
	// frameOffset is the offset, within the original buffer, of this
	// envelope's message-type byte.
	frameOffset int
	// relayMsgLenOffset is the offset of the 2-byte length field of
	// this frame's RELAY-MSG option.
	relayMsgLenOffset int
	// innerLen is the original (pre-rewrite) length of the RELAY-MSG
	// payload this frame wrapped.
	innerLen int
}

// descendRelayChain walks buf from the outermost envelope inward,
// recording one nestedFrame per RELAY-FORW crossed, and returns the
// offset of the innermost non-relay message. If buf is not a RELAY-FORW
// at all, it returns a nil chain and innerOffset 0 (buf is already the
// innermost message). ok is false if the chain is truncated or missing
// a RELAY-MSG option partway through — a malformed envelope the caller
// should drop.
func descendRelayChain(buf []byte) (frames []nestedFrame, innerOffset int, ok bool) {
	offset := 0
	for {
		if MessageType(buf[offset:]) != RelayForward {
			return frames, offset, true
		}
		if len(buf)-offset < RelayHeaderLen {
			return nil, 0, false
		}
		opt, found := FindOption(buf, offset+RelayHeaderLen, OptRelayMsg)
		if !found {
			return nil, 0, false
		}
		frames = append(frames, nestedFrame{
			frameOffset:       offset,
			relayMsgLenOffset: opt.Start - 2,
			innerLen:          opt.Length,
		})
		offset = opt.Start
	}
}

// ascendRelayChain flips every recorded RELAY-FORW frame to RELAY-REPL
// and corrects each frame's RELAY-MSG option length by delta, the net
// change in size of the rewritten innermost message. buf must already
// contain the rewritten inner message at the point this is called.
func ascendRelayChain(buf []byte, frames []nestedFrame, delta int) {
	for _, f := range frames {
		buf[f.frameOffset] = RelayReply
		newLen := f.innerLen + delta
		buf[f.relayMsgLenOffset] = byte(newLen >> 8)
		buf[f.relayMsgLenOffset+1] = byte(newLen & 0xff)
	}
}
