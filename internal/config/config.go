// Package config is the CLI surface from spec §6: it parses the
// getopt-style flags into a Config value created once at startup and
// handed by const reference to every collaborator (spec §9's "global
// configuration state" design note). There is no YAML/file-based
// configuration layer — the flags are the configuration (SPEC_FULL.md
// Part B.3).
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// Exit codes from spec §6.
const (
	ExitOK              = 0
	ExitUsage           = 1
	ExitPermission      = 2
	ExitInterfaceOpen   = 3
	ExitSubsystemInit   = 4
	ExitNoRelaysEnabled = 5
	ExitDaemonizeFailed = 6
)

const defaultPidfile = "/var/run/ip6relayd.pid"

// ModeRelay, ModeServer and ModeTransparent name the "relay"/"server"
// (and, for DHCPv6, "transparent") argument to -R/-D.
const (
	ModeRelay       = "relay"
	ModeServer      = "server"
	ModeTransparent = "transparent"
)

// Config is the fully parsed command line, handed to every collaborator
// at Register time (spec §9 "global configuration state"). Field names
// mirror original_source/src/6relayd.h's struct relayd_config.
type Config struct {
	Master string
	Slaves []string // each already stripped of its leading '~', see External

	// External parallels Slaves: External[i] is true if slaves[i] was
	// given with a leading '~' (NDP effect only, spec §6).
	External []bool

	EnableRouterDiscoveryRelay  bool
	EnableRouterDiscoveryServer bool
	EnableDHCPv6Relay           bool
	EnableDHCPv6Server          bool
	CompatBrokenDHCPv6          bool
	EnableNDPRelay              bool
	EnableForwarding            bool
	SendRouterSolicitation      bool
	ForceAddressAssignment      bool
	AlwaysRewriteDNS            bool
	EnableRouteLearning         bool

	Pidfile   string
	Daemonize bool
	Verbosity int

	// MinRtrAdvInterval/MaxRtrAdvInterval/MaxValidTime/MaxPrefixes are
	// spec §4.3's RD-server tunables. The original hardcodes these; they
	// are exposed here as Config fields with the original's constants as
	// defaults so internal/routerdisc never needs package-level consts.
	MinRtrAdvIntervalSeconds int
	MaxRtrAdvIntervalSeconds int
	MaxValidTimeSeconds      uint32
	MaxPrefixes              int
}

// defaults matches original_source/src/router.h's RA-timer and
// prefix-limit constants.
func defaults() Config {
	return Config{
		Pidfile:                  defaultPidfile,
		MinRtrAdvIntervalSeconds: 200,
		MaxRtrAdvIntervalSeconds: 600,
		MaxValidTimeSeconds:      86400,
		MaxPrefixes:              4,
	}
}

// Parse builds a Config from args (typically os.Args[1:]), applying the
// -A/-S bundle semantics from SPEC_FULL.md Part D exactly as
// original_source/src/6relayd.c's main() option-parsing switch does.
// On a malformed command line the returned error wraps errUsage (so
// IsUsageError reports true and the caller exits with ExitUsage); Parse
// itself never calls os.Exit.
func Parse(args []string) (Config, error) {
	cfg := defaults()

	fs := pflag.NewFlagSet("ip6relayd", pflag.ContinueOnError)
	fs.Usage = func() {}
	fs.SetOutput(os.Stderr)

	auto := fs.BoolP("auto-relay", 'A', false, "Automatic relay (RD-relay, DHCPv6-relay, NDP, forwarding, solicitation, route-learning, force-assignment)")
	autoServer := fs.BoolP("auto-server", 'S', false, "Automatic server (RD-server, DHCPv6-server)")
	rdMode := fs.StringP("rd-mode", 'R', "", "Enable Router Discovery support: relay|server")
	dhcpMode := fs.StringP("dhcpv6-mode", 'D', "", "Enable DHCPv6 support: relay|transparent|server")
	ndp := fs.BoolP("ndp-proxy", 'N', false, "Enable Neighbor Discovery Proxy")
	forwarding := fs.BoolP("forwarding", 'F', false, "Enable forwarding for interfaces")
	solicit := fs.BoolP("solicit", 's', false, "Send initial RD solicitation to master")
	localAssign := fs.BoolP("force-local", 'l', false, "RD: force local address assignment")
	rewriteDNS := fs.BoolP("rewrite-dns", 'n', false, "RD/DHCPv6: always rewrite name server")
	routeLearning := fs.BoolP("route-learning", 'r', false, "NDP: learn routes to neighbors")
	pidfile := fs.StringP("pidfile", 'p', defaultPidfile, "Pidfile path")
	daemonize := fs.BoolP("daemonize", 'd', false, "Daemonize")
	fs.BoolP("help", 'h', false, "Show usage")
	fs.CountVarP(&cfg.Verbosity, "verbose", 'v', "Increase log verbosity (repeatable)")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errUsage, err)
	}

	if help, _ := fs.GetBool("help"); help {
		return Config{}, errUsage
	}

	positional := fs.Args()
	if len(positional) < 1 {
		return Config{}, fmt.Errorf("%w: a master interface is required", errUsage)
	}
	cfg.Master = positional[0]
	for _, name := range positional[1:] {
		external := len(name) > 0 && name[0] == '~'
		if external {
			name = name[1:]
		}
		cfg.Slaves = append(cfg.Slaves, name)
		cfg.External = append(cfg.External, external)
	}

	if *auto {
		cfg.EnableRouterDiscoveryRelay = true
		cfg.EnableDHCPv6Relay = true
		cfg.EnableNDPRelay = true
		cfg.EnableForwarding = true
		cfg.SendRouterSolicitation = true
		cfg.EnableRouteLearning = true
		cfg.ForceAddressAssignment = true
	}
	if *autoServer {
		cfg.EnableRouterDiscoveryRelay = true
		cfg.EnableRouterDiscoveryServer = true
		cfg.EnableDHCPv6Relay = true
		cfg.EnableDHCPv6Server = true
	}

	if *rdMode != "" {
		cfg.EnableRouterDiscoveryRelay = true
		switch *rdMode {
		case ModeServer:
			cfg.EnableRouterDiscoveryServer = true
		case ModeRelay:
		default:
			return Config{}, fmt.Errorf("%w: -R must be %q or %q", errUsage, ModeRelay, ModeServer)
		}
	}

	if *dhcpMode != "" {
		cfg.EnableDHCPv6Relay = true
		switch *dhcpMode {
		case ModeTransparent:
			cfg.CompatBrokenDHCPv6 = true
		case ModeServer:
			cfg.EnableDHCPv6Server = true
		case ModeRelay:
		default:
			return Config{}, fmt.Errorf("%w: -D must be %q, %q or %q", errUsage, ModeRelay, ModeTransparent, ModeServer)
		}
	}

	cfg.EnableNDPRelay = cfg.EnableNDPRelay || *ndp
	cfg.EnableForwarding = cfg.EnableForwarding || *forwarding
	cfg.SendRouterSolicitation = cfg.SendRouterSolicitation || *solicit
	cfg.ForceAddressAssignment = cfg.ForceAddressAssignment || *localAssign
	cfg.AlwaysRewriteDNS = cfg.AlwaysRewriteDNS || *rewriteDNS
	cfg.EnableRouteLearning = cfg.EnableRouteLearning || *routeLearning
	cfg.Pidfile = *pidfile
	cfg.Daemonize = *daemonize

	return cfg, nil
}

// errUsage tags a Parse/Validate failure that should exit ExitUsage.
var errUsage = errors.New("usage")

// IsUsageError reports whether err (as returned by Parse) should exit
// with ExitUsage rather than some other code.
func IsUsageError(err error) bool {
	return errors.Is(err, errUsage)
}

// Validate checks the cross-flag invariants spec §6/§7 requires beyond
// what Parse's per-flag switch already enforces: at least one relay or
// server subsystem must end up enabled, or the daemon has nothing to do
// (exit code 5).
func (c Config) Validate() error {
	anyRelay := c.EnableRouterDiscoveryRelay || c.EnableDHCPv6Relay || c.EnableNDPRelay
	if !anyRelay {
		return errNoRelaysEnabled
	}
	return nil
}

var errNoRelaysEnabled = errors.New("no relays enabled or no slave interfaces specified")

// IsNoRelaysError reports whether err (as returned by Validate) should
// exit with ExitNoRelaysEnabled.
func IsNoRelaysError(err error) bool {
	return errors.Is(err, errNoRelaysEnabled)
}
