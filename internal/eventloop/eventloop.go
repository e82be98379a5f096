// Package eventloop is the single-threaded, edge-triggered readiness
// multiplexer from spec §4.1/§5: every socket and interval timer the
// daemon owns is registered here once, and the whole dataplane runs out
// of one epoll_wait loop. No handler may block.
package eventloop

import (
	"fmt"
	"net"
	"sync/atomic"

	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"

	"github.com/fgggid/ip6relayd/internal/ifreg"
	"github.com/fgggid/ip6relayd/internal/logging"
)

var log = logging.GetLogger("eventloop")

// maxEvents bounds one epoll_wait batch, matching the original's
// epoll_event ev[16].
const maxEvents = 16

// DatagramHandler is invoked once per datagram received on a registered
// socket, after control-message parsing has resolved the destination
// interface. iface is never nil: receive drops any datagram whose
// destination interface could not be resolved before calling a handler.
type DatagramHandler func(src net.IP, srcPort int, data []byte, iface *ifreg.Interface)

// StreamHandler is invoked once per readiness notification on a
// registered fd that isn't a datagram socket (e.g. a timerfd).
type StreamHandler func()

type event struct {
	fd       int
	datagram DatagramHandler
	stream   StreamHandler
	// rawPort0 marks sockets (raw ICMPv6) where outbound PKTINFO must be
	// suppressed per spec invariant 1 ("kernel quirk").
	rawPort0 bool
}

// Loop is the event loop and interface registry combined: registrations
// are immutable after Register, and interface lookups are served from
// the Registry supplied at construction.
type Loop struct {
	epfd     int
	events   map[int]*event
	registry *ifreg.Registry
	stopping atomic.Bool
}

// New creates an epoll instance bound to registry for interface lookups.
func New(registry *ifreg.Registry) (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventloop: epoll_create1: %w", err)
	}
	return &Loop{epfd: epfd, events: make(map[int]*event), registry: registry}, nil
}

// RegisterDatagram binds a datagram handler to fd. Readiness drains the
// socket to exhaustion (spec §4.1's receive()).
func (l *Loop) RegisterDatagram(fd int, rawPort0 bool, handler DatagramHandler) error {
	return l.register(&event{fd: fd, datagram: handler, rawPort0: rawPort0})
}

// RegisterStream binds a handler invoked once per readiness, used for
// timerfds.
func (l *Loop) RegisterStream(fd int, handler StreamHandler) error {
	return l.register(&event{fd: fd, stream: handler})
}

func (l *Loop) register(e *event) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(e.fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, e.fd, &ev); err != nil {
		return fmt.Errorf("eventloop: epoll_ctl(ADD, %d): %w", e.fd, err)
	}
	l.events[e.fd] = e
	return nil
}

// Stop requests the loop to exit after the current readiness batch
// finishes draining; safe to call from a signal handler goroutine.
func (l *Loop) Stop() {
	l.stopping.Store(true)
}

// Run blocks dispatching readiness events until Stop is called.
func (l *Loop) Run() error {
	var epEvents [maxEvents]unix.EpollEvent
	for !l.stopping.Load() {
		n, err := unix.EpollWait(l.epfd, epEvents[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("eventloop: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			e, ok := l.events[int(epEvents[i].Fd)]
			if !ok {
				continue
			}
			if e.stream != nil {
				e.stream()
			} else if e.datagram != nil {
				l.receive(e)
			}
		}
	}
	return nil
}

// receiveBufferSize is the fixed receive buffer spec invariant 3 ties all
// in-place rewrite growth checks to.
const receiveBufferSize = 2048

// receive drains one datagram socket to exhaustion (EAGAIN), resolving
// the destination interface from IPV6_PKTINFO control data before
// calling the bound handler, per spec §4.1 steps 1-3.
func (l *Loop) receive(e *event) {
	buf := make([]byte, receiveBufferSize)
	oob := make([]byte, 256)
	for {
		n, oobn, _, from, err := unix.Recvmsg(e.fd, buf, oob, unix.MSG_DONTWAIT)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			log.Debugf("recvmsg on fd %d: %v", e.fd, err)
			return
		}
		if n == 0 {
			continue
		}

		sa6, ok := from.(*unix.SockaddrInet6)
		if !ok {
			log.Debugf("recvmsg on fd %d: unexpected address family", e.fd)
			continue
		}
		srcIP := append(net.IP(nil), sa6.Addr[:]...)
		srcPort := sa6.Port

		destIndex := 0
		if oobn > 0 {
			cm := new(ipv6.ControlMessage)
			if perr := cm.Parse(oob[:oobn]); perr == nil {
				destIndex = cm.IfIndex
			}
		}

		iface := l.registry.ByIndex(destIndex)
		if iface == nil {
			log.Debugf("dropping datagram from %s: unknown destination interface %d", srcIP, destIndex)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		e.datagram(srcIP, srcPort, data, iface)
	}
}

// Forward sends one datagram (assembled from possibly several segments,
// to let callers avoid a copy when relaying an embedded message — spec
// §4.2's "sent as a second iovec segment") out of sock to dst:dstPort,
// egressing via iface, with an IPV6_PKTINFO control message naming
// iface — except when the caller passes rawPort0, per spec invariant 1's
// raw-socket PKTINFO quirk.
func Forward(sock int, dst net.IP, dstPort int, segments [][]byte, iface *ifreg.Interface, rawPort0 bool) error {
	total := 0
	for _, s := range segments {
		total += len(s)
	}
	payload := make([]byte, 0, total)
	for _, s := range segments {
		payload = append(payload, s...)
	}

	sa := &unix.SockaddrInet6{Port: dstPort}
	copy(sa.Addr[:], dst.To16())
	if dst.IsLinkLocalUnicast() || dst.IsLinkLocalMulticast() {
		sa.ZoneId = uint32(iface.Index)
	}

	var oob []byte
	if !rawPort0 {
		cm := &ipv6.ControlMessage{IfIndex: iface.Index}
		oob = cm.Marshal()
	}

	if err := unix.Sendmsg(sock, payload, oob, sa, unix.MSG_DONTWAIT); err != nil {
		log.Warnf("forward to %s%%%s: %v", dst, iface.Name, err)
		return err
	}
	log.Debugf("forwarded %d bytes to %s%%%s", len(payload), dst, iface.Name)
	return nil
}
