// Package ifreg is the interface registry: it resolves the master and
// slave link names given on the command line into long-lived records
// (OS index, MTU, MAC, external flag, RA timer handle) and provides
// lookup by OS index, as used by the event loop to attribute an inbound
// datagram to one of the managed links.
package ifreg

import (
	"fmt"
	"net"

	"github.com/fgggid/ip6relayd/internal/logging"
)

var log = logging.GetLogger("ifreg")

// Interface is one managed link: the upstream master, or one of the
// downstream slaves.
type Interface struct {
	Index    int
	Name     string
	MTU      int
	HWAddr   net.HardwareAddr
	External bool // NDP-only: true for slaves named with a leading '~'

	// Master is true for the single upstream interface.
	Master bool

	// RATimerFD, when non-zero, is the timerfd backing this interface's
	// periodic Router Advertisement emission (RD-server mode only). It is
	// opaque to this package; internal/routerdisc owns its lifecycle.
	RATimerFD int
}

// Registry owns the master and all slave interfaces for the lifetime of
// the process. It is built once at startup and is read-only thereafter,
// per spec's "global configuration state" design note.
type Registry struct {
	Master *Interface
	Slaves []*Interface

	byIndex map[int]*Interface
}

// New resolves masterName and slaveNames (each optionally prefixed with
// '~' to mark it external) into a Registry. It fails if any named
// interface cannot be resolved by the kernel — a setup-time error per
// spec §7(a).
func New(masterName string, slaveNames []string) (*Registry, error) {
	master, err := open(masterName, false)
	if err != nil {
		return nil, fmt.Errorf("opening master interface %q: %w", masterName, err)
	}
	master.Master = true

	r := &Registry{
		Master:  master,
		byIndex: map[int]*Interface{master.Index: master},
	}

	for _, name := range slaveNames {
		external := false
		if len(name) > 0 && name[0] == '~' {
			external = true
			name = name[1:]
		}
		slave, err := open(name, external)
		if err != nil {
			return nil, fmt.Errorf("opening slave interface %q: %w", name, err)
		}
		if _, exists := r.byIndex[slave.Index]; exists {
			return nil, fmt.Errorf("interface %q already registered", name)
		}
		r.Slaves = append(r.Slaves, slave)
		r.byIndex[slave.Index] = slave
	}

	log.Infof("registered master=%s (ifindex %d) with %d slave(s)",
		master.Name, master.Index, len(r.Slaves))
	return r, nil
}

func open(name string, external bool) (*Interface, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return &Interface{
		Index:    ifi.Index,
		Name:     ifi.Name,
		MTU:      ifi.MTU,
		HWAddr:   ifi.HardwareAddr,
		External: external,
	}, nil
}

// ByIndex returns the interface record for ifindex, or nil if the packet
// arrived on (or targets) an interface this process does not manage.
func (r *Registry) ByIndex(ifindex int) *Interface {
	return r.byIndex[ifindex]
}

// IsSlave reports whether iface is one of the registered slaves (as
// opposed to the master).
func (r *Registry) IsSlave(iface *Interface) bool {
	return iface != nil && !iface.Master
}

// All returns every managed interface, master first.
func (r *Registry) All() []*Interface {
	all := make([]*Interface, 0, 1+len(r.Slaves))
	all = append(all, r.Master)
	all = append(all, r.Slaves...)
	return all
}
