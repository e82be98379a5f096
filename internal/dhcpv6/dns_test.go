package dhcpv6

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRewriteDNSServersScenario is scenario S6: a received option listing
// a link-local resolver is rewritten to the slave's own global address.
func TestRewriteDNSServersScenario(t *testing.T) {
	linkLocal := net.ParseIP("fe80::1").To16()
	repl := net.ParseIP("2001:db8::5")

	payload := make([]byte, ClientHeaderLen)
	payload[0] = Reply
	payload = appendOption(payload, OptDNSServers, linkLocal)

	abort := rewriteDNSServers(payload, repl, false)
	require.False(t, abort)

	opt, ok := FindOption(payload, ClientHeaderLen, OptDNSServers)
	require.True(t, ok)
	require.True(t, net.IP(opt.Data(payload)).Equal(repl))
}

func TestRewriteDNSServersLeavesGlobalAddressesAloneUnlessForced(t *testing.T) {
	global := net.ParseIP("2001:db8::1").To16()
	payload := make([]byte, ClientHeaderLen)
	payload[0] = Reply
	payload = appendOption(payload, OptDNSServers, global)

	abort := rewriteDNSServers(payload, net.ParseIP("2001:db8::5"), false)
	require.False(t, abort)

	opt, _ := FindOption(payload, ClientHeaderLen, OptDNSServers)
	require.True(t, net.IP(opt.Data(payload)).Equal(net.IP(global)))
}

func TestRewriteDNSServersAlwaysRewriteForcesGlobalRewrite(t *testing.T) {
	global := net.ParseIP("2001:db8::1").To16()
	repl := net.ParseIP("2001:db8::5")
	payload := make([]byte, ClientHeaderLen)
	payload = appendOption(payload, OptDNSServers, global)

	abort := rewriteDNSServers(payload, repl, true)
	require.False(t, abort)
	opt, _ := FindOption(payload, ClientHeaderLen, OptDNSServers)
	require.True(t, net.IP(opt.Data(payload)).Equal(repl))
}

func TestRewriteDNSServersAbortsWhenAuthPresent(t *testing.T) {
	linkLocal := net.ParseIP("fe80::1").To16()
	payload := make([]byte, ClientHeaderLen)
	payload = appendOption(payload, OptDNSServers, linkLocal)
	payload = appendOption(payload, OptAuth, []byte{1, 2, 3})

	before := append([]byte(nil), payload...)
	abort := rewriteDNSServers(payload, net.ParseIP("2001:db8::5"), true)
	require.True(t, abort)
	require.Equal(t, before, payload, "no partial rewrite may occur when aborting")
}

func TestRewriteDNSServersNoOptionIsNoOp(t *testing.T) {
	payload := make([]byte, ClientHeaderLen)
	abort := rewriteDNSServers(payload, net.ParseIP("2001:db8::5"), true)
	require.False(t, abort)
}

// TestRewriteDNSServersAbortsWhenNoReplacementAvailable is the resource-
// unavailable error kind from spec §7(e): a slave with no global address
// of its own cannot supply a reachable resolver, so the packet must be
// dropped rather than forwarded with the original link-local entries.
func TestRewriteDNSServersAbortsWhenNoReplacementAvailable(t *testing.T) {
	linkLocal := net.ParseIP("fe80::1").To16()
	payload := make([]byte, ClientHeaderLen)
	payload = appendOption(payload, OptDNSServers, linkLocal)

	before := append([]byte(nil), payload...)
	abort := rewriteDNSServers(payload, nil, false)
	require.True(t, abort)
	require.Equal(t, before, payload, "no partial rewrite may occur when aborting")
}

// TestRewriteDNSServersNilReplNoopWhenRewriteNotNeeded confirms the
// nil-replacement abort only fires when a rewrite was actually required;
// a global-address option with alwaysRewrite off is left untouched.
func TestRewriteDNSServersNilReplNoopWhenRewriteNotNeeded(t *testing.T) {
	global := net.ParseIP("2001:db8::1").To16()
	payload := make([]byte, ClientHeaderLen)
	payload = appendOption(payload, OptDNSServers, global)

	abort := rewriteDNSServers(payload, nil, false)
	require.False(t, abort)
}
