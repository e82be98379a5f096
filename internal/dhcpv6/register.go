package dhcpv6

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/fgggid/ip6relayd/internal/eventloop"
	"github.com/fgggid/ip6relayd/internal/ifreg"
	"github.com/fgggid/ip6relayd/internal/logging"
)

var log = logging.GetLogger("dhcpv6")

const (
	serverPort = 547
	clientPort = 546
)

var (
	allDHCPRelays  = net.ParseIP("ff02::1:2")
	allDHCPServers = net.ParseIP("ff05::1:3")
)

// Config carries the DHCPv6 relay/server's runtime options, a subset of
// internal/config.Config relevant to this package (spec §6's -D/-S/-n
// flags), passed in once at Register time and never mutated afterwards.
type Config struct {
	// BrokenCompat selects the broken-server compatibility encapsulation
	// (spec §4.2, "-D transparent") instead of standard RELAY-FORW/REPL.
	BrokenCompat bool
	// EnableServer switches this process into the stateless local
	// responder (spec §4.2 "Stateless server mode", "-S"); mutually
	// exclusive with relaying in the original, honored the same way here.
	EnableServer bool
	// AlwaysRewriteDNS forces DNS-SERVERS rewriting even when the
	// upstream addresses aren't link-local (spec §6 "-n").
	AlwaysRewriteDNS bool
	// AllowMasterAddressFallback preserves the spec §9 Open-Question (ii)
	// behavior: borrow the master's global address as link_address when
	// a slave has none of its own yet.
	AllowMasterAddressFallback bool
}

// Relay owns the DHCPv6 relay/server's sockets and dispatches datagrams
// registered with the event loop to the relay/broken-compat/stateless
// paths in relay.go, broken.go and server.go.
type Relay struct {
	registry *ifreg.Registry
	cfg      Config

	serverSock int // UDP/547, handles client->server and server->client (standard)
	clientSock int // UDP/546 bound to master, broken-compat server->client only
}

// Register opens the DHCPv6 sockets, joins the required multicast
// groups, and binds datagram handlers into loop. It is a setup-time
// operation per spec §7(a): any failure here is fatal.
func Register(loop *eventloop.Loop, registry *ifreg.Registry, cfg Config) (*Relay, error) {
	r := &Relay{registry: registry, cfg: cfg}

	sock, err := eventloop.NewUDP6Socket(serverPort)
	if err != nil {
		return nil, err
	}
	r.serverSock = sock
	for _, slave := range registry.Slaves {
		if err := eventloop.JoinGroup(sock, toArray16(allDHCPRelays), slave.Index); err != nil {
			return nil, err
		}
	}
	if err := loop.RegisterDatagram(sock, false, r.onServerSocket); err != nil {
		return nil, err
	}

	if cfg.BrokenCompat {
		csock, err := eventloop.NewUDP6Socket(clientPort)
		if err != nil {
			return nil, err
		}
		if err := eventloop.BindToDevice(csock, registry.Master.Name); err != nil {
			unix.Close(csock)
			return nil, err
		}
		r.clientSock = csock
		if err := loop.RegisterDatagram(csock, false, r.onClientSocket); err != nil {
			return nil, err
		}
	}

	log.Infof("dhcpv6: registered (broken-compat=%v, server=%v)", cfg.BrokenCompat, cfg.EnableServer)
	return r, nil
}

// onServerSocket dispatches a datagram received on the 547 socket: a
// RELAY-REPL arriving from the master is a server reply to unwrap, and
// anything else arriving from a slave is a client request to relay (or
// to answer directly in stateless-server mode).
func (r *Relay) onServerSocket(src net.IP, srcPort int, data []byte, iface *ifreg.Interface) {
	if iface.Master {
		r.handleServerReply(src, data)
		return
	}
	if r.cfg.EnableServer {
		r.handleStatelessRequest(src, data, iface)
		return
	}
	if r.cfg.BrokenCompat {
		r.relayClientRequestBroken(src, data, iface)
	} else {
		r.relayClientRequestStandard(src, data, iface)
	}
}

// onClientSocket handles an unencapsulated reply arriving on the
// broken-compat client-port socket (spec §4.2 "Server->Client path
// (broken-server compatibility)").
func (r *Relay) onClientSocket(src net.IP, srcPort int, data []byte, iface *ifreg.Interface) {
	r.handleServerReplyBroken(data)
}

// isClientRequest reports whether msgType is one this relay forwards as
// a client->server request, per spec §4.2's message-type filter: replies
// and advertisements never originate from a client and are dropped if
// seen arriving from a slave.
func isClientRequest(msgType byte) bool {
	switch msgType {
	case RelayReply, Reconfigure, Reply, Advertise:
		return false
	default:
		return true
	}
}

func toArray16(ip net.IP) [16]byte {
	var a [16]byte
	copy(a[:], ip.To16())
	return a
}
