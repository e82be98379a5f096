// Package sysctlw is the kernel control-file writer collaborator from
// spec §6: it writes ASCII "0"/"1"/"2" to
// /proc/sys/net/ipv6/conf/<ifname>/<option>, used to toggle forwarding
// and accept_ra. A single ASCII byte write has no protocol, parsing, or
// transport surface for a third-party library to add value over — hence
// plain os.WriteFile (see DESIGN.md).
package sysctlw

import (
	"fmt"
	"os"

	"github.com/fgggid/ip6relayd/internal/logging"
)

var log = logging.GetLogger("sysctlw")

// Write sets /proc/sys/net/ipv6/conf/<ifname>/<option> to value.
// ifname may be "all" to affect every interface at once.
func Write(ifname, option, value string) error {
	path := fmt.Sprintf("/proc/sys/net/ipv6/conf/%s/%s", ifname, option)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		log.Warnf("writing %s=%s to %s: %v", option, value, path, err)
		return err
	}
	log.Debugf("set %s/%s=%s", ifname, option, value)
	return nil
}

// SetForwarding toggles net.ipv6.conf.all.forwarding.
func SetForwarding(enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return Write("all", "forwarding", v)
}

// SetAcceptRA sets net.ipv6.conf.<ifname>.accept_ra to mode (0, 1 or 2).
func SetAcceptRA(ifname string, mode int) error {
	return Write(ifname, "accept_ra", fmt.Sprintf("%d", mode))
}
