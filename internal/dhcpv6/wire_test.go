package dhcpv6

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionsWalksSequentialTLVs(t *testing.T) {
	buf := []byte{}
	buf = appendOption(buf, OptClientID, []byte{1, 2, 3})
	buf = appendOption(buf, OptServerID, []byte{4, 5})

	opts := Options(buf, 0)
	require.Len(t, opts, 2)
	require.Equal(t, OptClientID, opts[0].Code)
	require.Equal(t, []byte{1, 2, 3}, opts[0].Data(buf))
	require.Equal(t, OptServerID, opts[1].Code)
	require.Equal(t, []byte{4, 5}, opts[1].Data(buf))
}

func TestOptionsStopsCleanlyOnTruncation(t *testing.T) {
	buf := []byte{}
	buf = appendOption(buf, OptClientID, []byte{1, 2, 3})
	// A truncated trailing option header: only 2 of 4 header bytes.
	buf = append(buf, 0x00, byte(OptServerID))

	opts := Options(buf, 0)
	require.Len(t, opts, 1, "truncated trailing option must not panic or be returned")
}

func TestOptionsRejectsLengthPastBuffer(t *testing.T) {
	buf := []byte{0x00, byte(OptClientID), 0xff, 0xff} // length 65535, no payload
	require.Empty(t, Options(buf, 0))
}

func TestFindOptionReturnsFirstMatch(t *testing.T) {
	buf := []byte{}
	buf = appendOption(buf, OptRelayMsg, []byte{0xaa})
	buf = appendOption(buf, OptRelayMsg, []byte{0xbb})

	opt, ok := FindOption(buf, 0, OptRelayMsg)
	require.True(t, ok)
	require.Equal(t, []byte{0xaa}, opt.Data(buf))
}

func TestFindOptionAbsent(t *testing.T) {
	buf := appendOption(nil, OptClientID, []byte{1})
	_, ok := FindOption(buf, 0, OptServerID)
	require.False(t, ok)
}

func TestRelayHeaderAccessors(t *testing.T) {
	link := make([]byte, 16)
	link[15] = 0x01
	peer := make([]byte, 16)
	peer[0] = 0xfe
	peer[1] = 0x80

	buf := buildRelayForwardHeader(5, link, peer)
	require.Equal(t, RelayForward, MessageType(buf))
	require.EqualValues(t, 5, HopCount(buf))
	require.Equal(t, link, []byte(LinkAddress(buf)))
	require.Equal(t, peer, []byte(PeerAddress(buf)))
}
