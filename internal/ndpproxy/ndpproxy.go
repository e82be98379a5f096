// Package ndpproxy is the Neighbor Discovery Proxy external collaborator
// referenced by spec §1/§4's "-N" flag. Neither this implementation nor
// the original defines NDP proxying itself (init_ndp_proxy/
// deinit_ndp_proxy are declared but never implemented in
// original_source/src/6relayd.c either); this package only carries the
// enable/disable contract so cmd/ip6relayd's flag surface and lifecycle
// match spec §6 exactly.
package ndpproxy

import "github.com/fgggid/ip6relayd/internal/logging"

var log = logging.GetLogger("ndpproxy")

// Proxy records only whether Init has run and Deinit has not yet; it
// holds no Neighbor Discovery state (see the package doc comment).
type Proxy struct {
	enabled bool
}

// Init enables Neighbor Discovery Proxy on the given interfaces, per
// spec §6's "-N" flag. A no-op collaborator: it only records that it
// was asked to start, consistent with the original never implementing
// this subsystem either.
func Init(ifnames []string) (*Proxy, error) {
	p := &Proxy{enabled: true}
	log.Infof("ndp proxy requested for %v (no-op collaborator)", ifnames)
	return p, nil
}

// Deinit tears down whatever Init set up.
func (p *Proxy) Deinit() {
	if p == nil || !p.enabled {
		return
	}
	p.enabled = false
	log.Debug("ndp proxy stopped")
}
