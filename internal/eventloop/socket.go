package eventloop

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// NewUDP6Socket opens a non-blocking UDP/IPv6 socket bound to port on
// every address (IPV6_V6ONLY, SO_REUSEADDR, IPV6_RECVPKTINFO), per spec
// §4.2. Callers join any required multicast groups afterwards with
// JoinGroup.
func NewUDP6Socket(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
	if err != nil {
		return -1, fmt.Errorf("eventloop: socket(AF_INET6, SOCK_DGRAM): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: IPV6_V6ONLY: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: SO_REUSEADDR: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_RECVPKTINFO, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: IPV6_RECVPKTINFO: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_HOPS, hopCountLimit); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: IPV6_MULTICAST_HOPS: %w", err)
	}
	sa := &unix.SockaddrInet6{Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: bind port %d: %w", port, err)
	}
	return fd, nil
}

// BindToDevice restricts fd to a single egress/ingress interface, used
// for the broken-DHCPv6-compat client-port socket (spec §4.2).
func BindToDevice(fd int, ifname string) error {
	if err := unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifname); err != nil {
		return fmt.Errorf("eventloop: SO_BINDTODEVICE(%s): %w", ifname, err)
	}
	return nil
}

// JoinGroup joins the IPv6 multicast group addr (16 bytes) on the
// interface ifindex.
func JoinGroup(fd int, addr [16]byte, ifindex int) error {
	mreq := &unix.IPv6Mreq{Multiaddr: addr, Interface: uint32(ifindex)}
	if err := unix.SetsockoptIPv6Mreq(fd, unix.IPPROTO_IPV6, unix.IPV6_ADD_MEMBERSHIP, mreq); err != nil {
		return fmt.Errorf("eventloop: join multicast group: %w", err)
	}
	return nil
}

// hopCountLimit is the DHCPv6 relay-forward hop ceiling (spec invariant 4).
const hopCountLimit = 32

// NewRawICMPv6Socket opens a non-blocking raw ICMPv6 socket with the
// given pass-list of ICMPv6 types, kernel-computed checksums, and hop
// limits forced to 255 in both directions (RFC 4861), per spec §4.3.
func NewRawICMPv6Socket(passTypes ...byte) (int, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMPV6)
	if err != nil {
		return -1, fmt.Errorf("eventloop: socket(AF_INET6, SOCK_RAW, ICMPV6): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_HOPS, 255); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: IPV6_MULTICAST_HOPS: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, 255); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: IPV6_UNICAST_HOPS: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_RECVPKTINFO, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: IPV6_RECVPKTINFO: %w", err)
	}
	filter := blockAllICMPv6Filter()
	for _, t := range passTypes {
		allowICMPv6Type(filter, t)
	}
	if err := unix.SetsockoptICMPv6Filter(fd, unix.IPPROTO_ICMPV6, unix.ICMPV6_FILTER, filter); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("eventloop: ICMP6_FILTER: %w", err)
	}
	return fd, nil
}

// blockAllICMPv6Filter returns a filter that passes nothing, mirroring
// ICMP6_FILTER_SETBLOCKALL: every bit set blocks the corresponding type.
func blockAllICMPv6Filter() *unix.ICMPv6Filter {
	f := &unix.ICMPv6Filter{}
	for i := range f.Data {
		f.Data[i] = 0xffffffff
	}
	return f
}

// allowICMPv6Type clears the bit for t, letting that ICMPv6 type through
// (ICMP6_FILTER_SETPASS).
func allowICMPv6Type(f *unix.ICMPv6Filter, t byte) {
	f.Data[t>>5] &^= 1 << (uint32(t) & 31)
}

// SetMulticastLoop toggles IPV6_MULTICAST_LOOP, disabled on the RD-server
// socket so a process never receives its own synthesized RAs back (spec
// SPEC_FULL.md Part D).
func SetMulticastLoop(fd int, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_LOOP, v)
}
