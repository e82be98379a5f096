package routerdisc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func prefixFor(addr string) PrefixInfo {
	var p PrefixInfo
	copy(p.Prefix[:8], net.ParseIP(addr).To16()[:8])
	return p
}

// TestRASynthesisScenario is spec scenario S4: a slave with MAC
// aa:bb:cc:dd:ee:ff, MTU 1500, and one global address 2001:db8::1
// (preferred=1800, valid=3600) synthesizes an RA with source-linkaddr,
// MTU, one /64 prefix with those lifetimes, and a DNS option naming the
// address itself.
func TestRASynthesisScenario(t *testing.T) {
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

	p := prefixFor("2001:db8::1")
	p.Preferred, p.Valid = 1800, 3600
	prefixes := []PrefixInfo{p}

	bestAddr := net.ParseIP("2001:db8::1")
	bestPreferred := uint32(1800)

	maxRtrAdv := 600 * time.Second
	routerLifetime := uint16(3 * maxRtrAdv / time.Second)

	segments := [][]byte{
		buildRAHeader(raFlagOther, routerLifetime),
		buildSourceLinkAddrOption(mac),
		buildMTUOption(1500),
	}
	for _, pi := range prefixes {
		segments = append(segments, buildPrefixInfoOption(pi))
	}
	dnsAddr, dnsLifetime := (&RD{}).pickDNSAddr(bestAddr, bestPreferred)
	require.NotNil(t, dnsAddr)
	segments = append(segments, buildRecursiveDNSOption(dnsAddr.To16(), dnsLifetime))

	var ra []byte
	for _, s := range segments {
		ra = append(ra, s...)
	}

	require.EqualValues(t, routerLifetime, RouterLifetime(ra))

	lladdr, ok := FindOption(ra, raHeaderLen, optSourceLinkAddr)
	require.True(t, ok)
	require.Equal(t, []byte(mac), lladdr.Data(ra))

	mtuOpt, ok := FindOption(ra, raHeaderLen, optMTU)
	require.True(t, ok)
	require.EqualValues(t, 1500, beUint32(mtuOpt.Data(ra)[2:6]))

	piOpt, ok := FindOption(ra, raHeaderLen, optPrefixInfo)
	require.True(t, ok)
	piData := piOpt.Data(ra)
	require.EqualValues(t, 64, piData[0])
	require.EqualValues(t, 3600, beUint32(piData[2:6]))
	require.EqualValues(t, 1800, beUint32(piData[6:10]))
	require.Equal(t, []byte(net.ParseIP("2001:db8::").To16()[:8]), piData[14:22])

	dnsOpt, ok := FindOption(ra, raHeaderLen, optRecursiveDNS)
	require.True(t, ok)
	require.Equal(t, net.ParseIP("2001:db8::1").To16(), net.IP(dnsOpt.Data(ra)[6:22]))
}

// beUint32 reads a big-endian uint32, local to this test file to avoid
// importing encoding/binary purely for readability of offsets above.
func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// TestULADeprecationScenario is spec scenario S5: a slave with both
// fd00::1 (preferred=1800) and 2001:db8::1 (preferred=1800) has its ULA
// prefix deprecated (preferred forced to 0, valid untouched) once a
// public prefix exists and the flag is set; the public prefix is
// unchanged.
func TestULADeprecationScenario(t *testing.T) {
	ula := prefixFor("fd00::1")
	ula.Preferred, ula.Valid = 1800, 3600
	pub := prefixFor("2001:db8::1")
	pub.Preferred, pub.Valid = 1800, 3600

	prefixes := []PrefixInfo{ula, pub}
	deprecateULAIfPublic(prefixes, true, true)

	require.EqualValues(t, 0, prefixes[0].Preferred)
	require.EqualValues(t, 3600, prefixes[0].Valid)
	require.EqualValues(t, 1800, prefixes[1].Preferred)
	require.EqualValues(t, 3600, prefixes[1].Valid)
}

func TestULADeprecationNoopWithoutPublicPrefix(t *testing.T) {
	ula := prefixFor("fd00::1")
	ula.Preferred = 1800
	prefixes := []PrefixInfo{ula}

	deprecateULAIfPublic(prefixes, false, true)
	require.EqualValues(t, 1800, prefixes[0].Preferred)
}

func TestULADeprecationNoopWhenDisabled(t *testing.T) {
	ula := prefixFor("fd00::1")
	ula.Preferred = 1800
	prefixes := []PrefixInfo{ula}

	deprecateULAIfPublic(prefixes, true, false)
	require.EqualValues(t, 1800, prefixes[0].Preferred)
}

// TestDNSRewriteScenario is spec scenario S6: a received RA carrying
// RECURSIVE-DNS = fe80::1 is rewritten, with -n and a slave global
// 2001:db8::5, to list 2001:db8::5 instead.
func TestDNSRewriteScenario(t *testing.T) {
	ra := append([]byte(nil), buildRAHeader(raFlagOther, 1800)...)
	ra = append(ra, buildRecursiveDNSOption(net.ParseIP("fe80::1").To16(), 1800)...)

	dnsOpt, ok := FindOption(ra, raHeaderLen, optRecursiveDNS)
	require.True(t, ok)

	rewriteDNSOption(ra, dnsOpt, net.ParseIP("2001:db8::5"))

	dnsOpt, ok = FindOption(ra, raHeaderLen, optRecursiveDNS)
	require.True(t, ok)
	require.Equal(t, net.ParseIP("2001:db8::5").To16(), net.IP(dnsOpt.Data(ra)[dnsOptReservedAndLifetimeLen:dnsOptReservedAndLifetimeLen+16]))
}

func TestPickDNSAddrPrefersConfiguredOverride(t *testing.T) {
	rd := &RD{cfg: Config{DNSAddr: net.ParseIP("2001:db8::53")}}
	addr, lifetime := rd.pickDNSAddr(net.ParseIP("2001:db8::1"), 1800)
	require.True(t, net.ParseIP("2001:db8::53").Equal(addr))
	require.EqualValues(t, 1800, lifetime)
}

func TestPickDNSAddrFallsBackToBestAddrUnmasked(t *testing.T) {
	rd := &RD{}
	addr, lifetime := rd.pickDNSAddr(net.ParseIP("2001:db8::1"), 1800)
	require.True(t, net.ParseIP("2001:db8::1").Equal(addr))
	require.EqualValues(t, 1800, lifetime)
}

func TestPickDNSAddrNilWhenNothingAvailable(t *testing.T) {
	rd := &RD{}
	addr, lifetime := rd.pickDNSAddr(nil, 0)
	require.Nil(t, addr)
	require.EqualValues(t, 0, lifetime)
}

func TestRandomIntervalWithinBounds(t *testing.T) {
	min, max := 200*time.Second, 600*time.Second
	for i := 0; i < 20; i++ {
		d := randomInterval(min, max)
		require.GreaterOrEqual(t, d, min)
		require.Less(t, d, max)
	}
}

func TestRandomIntervalMaxNotGreaterThanMinReturnsMin(t *testing.T) {
	require.Equal(t, 300*time.Second, randomInterval(300*time.Second, 300*time.Second))
}
