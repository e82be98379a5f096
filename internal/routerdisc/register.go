package routerdisc

import (
	"net"
	"time"

	"github.com/fgggid/ip6relayd/internal/eventloop"
	"github.com/fgggid/ip6relayd/internal/ifreg"
	"github.com/fgggid/ip6relayd/internal/logging"
	"github.com/fgggid/ip6relayd/internal/sysctlw"
)

var log = logging.GetLogger("routerdisc")

var (
	allRoutersGroup = toArray16(net.ParseIP("ff02::2"))
	allNodesGroup   = toArray16(net.ParseIP("ff02::1"))
	allRouters      = net.ParseIP("ff02::2")
	allNodes        = net.ParseIP("ff02::1")
)

// Config carries the Router Discovery relay/server's runtime options, a
// subset of internal/config.Config relevant to this package (spec §6's
// -R/-n/-s/-l flags).
type Config struct {
	// EnableRelay selects relay mode ("-R relay", the default RD mode).
	EnableRelay bool
	// EnableServer selects synthesis mode ("-R server", spec §4.3
	// "Server mode"); when both are set, server mode takes precedence and
	// the relay paths are not used.
	EnableServer bool
	// EnableDHCPv6Server sets the OTHER-CONFIG flag on relayed RAs (spec
	// §4.3 relay mode, step 3).
	EnableDHCPv6Server bool
	// AlwaysRewriteDNS enables the RECURSIVE-DNS rewrite in relay mode;
	// without it relayed RAs keep their DNS option unchanged (spec §4.3
	// relay mode, step 2). Server mode ignores it, since the option is
	// synthesized fresh each time regardless.
	AlwaysRewriteDNS bool
	// DNSAddr, if set, is used instead of a slave's own address whenever
	// this package has to name a resolver (spec §4.3, both modes).
	DNSAddr net.IP
	// DeprecateULAIfPublicAvail forces every ULA prefix's preferred
	// lifetime to zero whenever a public prefix is also being announced
	// (spec §4.3 server mode, §8 invariant 5).
	DeprecateULAIfPublicAvail bool
	// AlwaysAnnounceDefaultRouter keeps the router lifetime non-zero even
	// without a qualifying public prefix (spec §4.3 server mode).
	AlwaysAnnounceDefaultRouter bool
	// SendRouterSolicitation sends an initial RS on the master at
	// startup in relay mode (spec §4.3 "Initial solicitation", "-s").
	SendRouterSolicitation bool
	// ForceAddressAssignment sets every slave's accept_ra sysctl to 2 at
	// startup (relay mode) and at shutdown (spec §4.3, SPEC_FULL.md Part
	// D, "-l").
	ForceAddressAssignment bool
	// SearchDomain is the system resolver's first search-domain entry,
	// used to build the DNS-SEARCH-LIST option in server mode.
	SearchDomain string

	MinRtrAdvInterval time.Duration
	MaxRtrAdvInterval time.Duration
	// MaxValidTime caps every announced prefix's lifetimes (spec §4.3,
	// "MaxValidTime (>= 86400)").
	MaxValidTime uint32
	// MaxPrefixes bounds how many distinct prefixes one RA announces
	// (spec §4.3, "MAX_PREFIXES (>= 4)").
	MaxPrefixes int
}

// RD owns the Router Discovery raw socket, the per-slave RA interval
// timers (server mode only), and dispatches ICMPv6 datagrams registered
// with the event loop to the relay (relay.go) or synthesis (server.go)
// paths.
type RD struct {
	registry *ifreg.Registry
	cfg      Config
	loop     *eventloop.Loop
	sock     int
	timers   map[int]*eventloop.Timer // by slave ifindex, server mode only
	shutdown bool
}

// Register opens the raw ICMPv6 socket, joins the required multicast
// groups, arms per-slave RA timers in server mode, and sends the initial
// solicitation in relay mode, per spec §4.3. Setup failures are fatal
// (spec §7(a)).
func Register(loop *eventloop.Loop, registry *ifreg.Registry, cfg Config) (*RD, error) {
	sock, err := eventloop.NewRawICMPv6Socket(RouterAdvert, RouterSolicit)
	if err != nil {
		return nil, err
	}

	rd := &RD{registry: registry, cfg: cfg, loop: loop, sock: sock}

	// Every slave joins all-routers so client Router Solicitations sent
	// to that well-known multicast address are observed here (see
	// DESIGN.md: this corrects spec.md's prose, which has the master and
	// slave groups swapped from what the protocol and original source
	// actually require).
	for _, slave := range registry.Slaves {
		if err := eventloop.JoinGroup(sock, allRoutersGroup, slave.Index); err != nil {
			return nil, err
		}
	}

	if cfg.EnableServer {
		rd.timers = make(map[int]*eventloop.Timer, len(registry.Slaves))
		if err := eventloop.SetMulticastLoop(sock, false); err != nil {
			return nil, err
		}
		for _, slave := range registry.Slaves {
			timer, err := eventloop.NewTimer()
			if err != nil {
				return nil, err
			}
			rd.timers[slave.Index] = timer
			slave.RATimerFD = timer.FD()
			s := slave
			if err := loop.RegisterStream(timer.FD(), func() {
				timer.Drain()
				rd.sendRouterAdvert(s)
			}); err != nil {
				return nil, err
			}
			rd.sendRouterAdvert(slave)
		}
	} else if cfg.EnableRelay {
		if err := eventloop.JoinGroup(sock, allNodesGroup, registry.Master.Index); err != nil {
			return nil, err
		}
		if cfg.ForceAddressAssignment {
			for _, slave := range registry.Slaves {
				_ = sysctlw.SetAcceptRA(slave.Name, 2)
			}
		}
	}

	if cfg.SendRouterSolicitation && cfg.EnableRelay {
		rd.forwardRouterSolicitation()
	}

	if err := loop.RegisterDatagram(sock, true, rd.onPacket); err != nil {
		return nil, err
	}

	log.Infof("routerdisc: registered (relay=%v, server=%v)", cfg.EnableRelay, cfg.EnableServer)
	return rd, nil
}

// onPacket dispatches an inbound ICMPv6 RA/RS to the relay or server
// path, per spec §4.3's handle_icmpv6 switch.
func (rd *RD) onPacket(src net.IP, srcPort int, data []byte, iface *ifreg.Interface) {
	msgType := MessageType(data)
	if rd.cfg.EnableServer {
		if msgType == RouterSolicit && !iface.Master {
			rd.sendRouterAdvert(iface)
		}
		return
	}
	switch {
	case msgType == RouterAdvert && iface.Master:
		rd.forwardRouterAdvertisement(data)
	case msgType == RouterSolicit && !iface.Master:
		rd.forwardRouterSolicitation()
	}
}

// RearmAll rearms every slave's RA timer to fire after d, mirroring the
// SIGUSR1 handler from spec §4.1/§6 ("an auxiliary signal ... rearms all
// RA timers with a 1-second delay").
func (rd *RD) RearmAll(d time.Duration) {
	for _, t := range rd.timers {
		_ = t.Arm(d)
	}
}

// Shutdown emits one final RA per slave with router lifetime 0 and no
// valid prefixes (spec §4.3 "Timer", SPEC_FULL.md Part D), and — if
// ForceAddressAssignment is set in relay mode — sets every slave's
// accept_ra sysctl to 2 so the kernel keeps autoconfiguring post-exit.
func (rd *RD) Shutdown() {
	rd.shutdown = true
	if rd.cfg.EnableServer {
		for _, slave := range rd.registry.Slaves {
			rd.sendRouterAdvert(slave)
		}
	}
	if rd.cfg.EnableRelay && !rd.cfg.EnableServer && rd.cfg.ForceAddressAssignment {
		for _, slave := range rd.registry.Slaves {
			_ = sysctlw.SetAcceptRA(slave.Name, 2)
		}
	}
}

func toArray16(ip net.IP) [16]byte {
	var a [16]byte
	copy(a[:], ip.To16())
	return a
}
