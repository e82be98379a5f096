package dhcpv6

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildNestedChain wraps inner in depth RELAY-FORW envelopes, outermost
// first, each carrying a distinct link-address/peer-address pair and an
// INTERFACE-ID option ahead of RELAY-MSG (as relay.go emits), so the
// resulting buffer looks like a real multi-hop relay chain rather than a
// synthetic RELAY-MSG-only test fixture.
func buildNestedChain(depth int, inner []byte) []byte {
	buf := inner
	for i := 0; i < depth; i++ {
		link := net.ParseIP("2001:db8::1")
		peer := net.ParseIP("fe80::2")
		env := buildRelayForwardHeader(byte(i), link, peer)
		env = appendOption(env, OptInterfaceID, interfaceIDPayload(depth-i))
		env = appendRelayMsgHeader(env, len(buf))
		buf = append(env, buf...)
	}
	return buf
}

func TestDescendRelayChainFindsInnermostMessage(t *testing.T) {
	inner := append([]byte{Solicit, 1, 2, 3}, appendOption(nil, OptClientID, []byte{9, 9})...)
	buf := buildNestedChain(3, inner)

	frames, innerOffset, ok := descendRelayChain(buf)
	require.True(t, ok)
	require.Len(t, frames, 3)
	require.Equal(t, inner, buf[innerOffset:])
}

func TestDescendRelayChainNonRelayIsInnerAtOffsetZero(t *testing.T) {
	inner := []byte{Solicit, 1, 2, 3}
	frames, innerOffset, ok := descendRelayChain(inner)
	require.True(t, ok)
	require.Nil(t, frames)
	require.Equal(t, 0, innerOffset)
}

func TestDescendRelayChainRejectsMissingRelayMsg(t *testing.T) {
	buf := buildRelayForwardHeader(0, net.ParseIP("2001:db8::1"), net.ParseIP("fe80::2"))
	_, _, ok := descendRelayChain(buf)
	require.False(t, ok, "a RELAY-FORW with no RELAY-MSG option is malformed")
}

// TestNestedRewriteRoundTrip is spec invariant 4 / testable property 4:
// for a chain of depth d whose inner message changes length by delta,
// every RELAY-MSG length in the (now RELAY-REPL) outer envelopes equals
// the original plus delta, and every envelope's type flips.
func TestNestedRewriteRoundTrip(t *testing.T) {
	for depth := 1; depth <= 8; depth++ {
		inner := append([]byte{Solicit, 1, 2, 3}, appendOption(nil, OptClientID, []byte{9, 9})...)
		buf := buildNestedChain(depth, inner)

		frames, innerOffset, ok := descendRelayChain(buf)
		require.True(t, ok)
		require.Len(t, frames, depth)

		newInner := append([]byte{Reply, 1, 2, 3}, appendOption(nil, OptClientID, []byte{9, 9, 9, 9, 9})...)
		delta := len(newInner) - len(inner)

		out := make([]byte, innerOffset+len(newInner))
		copy(out, buf[:innerOffset])
		copy(out[innerOffset:], newInner)
		ascendRelayChain(out, frames, delta)

		gotFrames, gotInnerOffset, ok := descendChainAllowingReply(out)
		require.True(t, ok)
		require.Len(t, gotFrames, depth)
		require.Equal(t, newInner, out[gotInnerOffset:])

		for i, f := range frames {
			require.Equal(t, byte(RelayReply), out[f.frameOffset], "frame %d must flip to RELAY-REPL", i)
			gotLen := int(out[f.relayMsgLenOffset])<<8 | int(out[f.relayMsgLenOffset+1])
			require.Equal(t, f.innerLen+delta, gotLen, "frame %d RELAY-MSG length must be original+delta", i)
		}
	}
}

// descendChainAllowingReply mirrors descendRelayChain but also follows
// RELAY-REPL frames, since ascendRelayChain flips every frame to
// RELAY-REPL before this test walks back down to verify the result.
func descendChainAllowingReply(buf []byte) (frames []nestedFrame, innerOffset int, ok bool) {
	offset := 0
	for {
		if MessageType(buf[offset:]) != RelayReply {
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
