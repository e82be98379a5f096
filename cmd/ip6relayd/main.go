// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Command ip6relayd is the IPv6 auto-configuration relay from spec §1:
// it wires the interface registry, event loop, DHCPv6 relay/server,
// Router Discovery relay/server and NDP proxy stub together from one CLI
// invocation, then runs the single-threaded event loop until a signal
// requests it to stop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fgggid/ip6relayd/internal/config"
	"github.com/fgggid/ip6relayd/internal/dhcpv6"
	"github.com/fgggid/ip6relayd/internal/eventloop"
	"github.com/fgggid/ip6relayd/internal/ifreg"
	"github.com/fgggid/ip6relayd/internal/logging"
	"github.com/fgggid/ip6relayd/internal/ndpproxy"
	"github.com/fgggid/ip6relayd/internal/routerdisc"
	"github.com/fgggid/ip6relayd/internal/sysctlw"
)

var log = logging.GetLogger("main")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage(os.Stderr)
		return config.ExitUsage
	}

	logging.SetLevel(cfg.Verbosity)
	if cfg.Pidfile != "" && cfg.Daemonize {
		logging.WithFile(cfg.Pidfile + ".log")
	}

	if err := cfg.Validate(); err != nil {
		log.Error(err)
		if config.IsNoRelaysError(err) {
			return config.ExitNoRelaysEnabled
		}
		return config.ExitUsage
	}

	if os.Geteuid() != 0 {
		log.Error("must be run as root")
		return config.ExitPermission
	}

	registry, err := ifreg.New(cfg.Master, cfg.Slaves)
	if err != nil {
		log.Errorf("opening interfaces: %v", err)
		return config.ExitInterfaceOpen
	}
	for i, slave := range registry.Slaves {
		if i < len(cfg.External) {
			slave.External = cfg.External[i]
		}
	}

	loop, err := eventloop.New(registry)
	if err != nil {
		log.Errorf("starting event loop: %v", err)
		return config.ExitSubsystemInit
	}

	var rd *routerdisc.RD
	if cfg.EnableRouterDiscoveryRelay || cfg.EnableRouterDiscoveryServer {
		rd, err = routerdisc.Register(loop, registry, routerdisc.Config{
			EnableRelay:                 cfg.EnableRouterDiscoveryRelay,
			EnableServer:                cfg.EnableRouterDiscoveryServer,
			EnableDHCPv6Server:          cfg.EnableDHCPv6Server,
			AlwaysRewriteDNS:            cfg.AlwaysRewriteDNS,
			DeprecateULAIfPublicAvail:   true,
			AlwaysAnnounceDefaultRouter: false,
			SendRouterSolicitation:      cfg.SendRouterSolicitation,
			ForceAddressAssignment:      cfg.ForceAddressAssignment,
			MinRtrAdvInterval:           time.Duration(cfg.MinRtrAdvIntervalSeconds) * time.Second,
			MaxRtrAdvInterval:           time.Duration(cfg.MaxRtrAdvIntervalSeconds) * time.Second,
			MaxValidTime:                cfg.MaxValidTimeSeconds,
			MaxPrefixes:                 cfg.MaxPrefixes,
		})
		if err != nil {
			log.Errorf("starting router discovery: %v", err)
			return config.ExitSubsystemInit
		}
	}

	if cfg.EnableDHCPv6Relay || cfg.EnableDHCPv6Server {
		if _, err := dhcpv6.Register(loop, registry, dhcpv6.Config{
			BrokenCompat:               cfg.CompatBrokenDHCPv6,
			EnableServer:               cfg.EnableDHCPv6Server,
			AlwaysRewriteDNS:           cfg.AlwaysRewriteDNS,
			AllowMasterAddressFallback: true,
		}); err != nil {
			log.Errorf("starting dhcpv6: %v", err)
			return config.ExitSubsystemInit
		}
	}

	var ndp *ndpproxy.Proxy
	if cfg.EnableNDPRelay {
		ndp, err = ndpproxy.Init(cfg.Slaves)
		if err != nil {
			log.Errorf("starting ndp proxy: %v", err)
			return config.ExitSubsystemInit
		}
	}

	if cfg.EnableForwarding {
		if err := sysctlw.SetForwarding(true); err != nil {
			log.Warnf("enabling forwarding: %v", err)
		}
	}

	if cfg.Daemonize {
		if err := writePidfile(cfg.Pidfile); err != nil {
			log.Errorf("daemonizing: %v", err)
			return config.ExitDaemonizeFailed
		}
		logging.WithNoStdOutErr()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGUSR1)
	go func() {
		for sig := range sigs {
			switch sig {
			case syscall.SIGUSR1:
				if rd != nil {
					rd.RearmAll(time.Second)
				}
			default:
				log.Warn("termination requested by signal")
				if rd != nil {
					rd.Shutdown()
				}
				if cfg.EnableForwarding {
					_ = sysctlw.SetForwarding(false)
				}
				if ndp != nil {
					ndp.Deinit()
				}
				loop.Stop()
				return
			}
		}
	}()

	if err := loop.Run(); err != nil {
		log.Errorf("event loop: %v", err)
		return config.ExitSubsystemInit
	}
	return config.ExitOK
}

func writePidfile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, "Usage: ip6relayd [options] <master> [[~]<slave1> [[~]<slave2> [...]]]")
	fmt.Fprintln(w, "\nNote: to use server features only (no relaying) set master to lo.")
	fmt.Fprintln(w, "\nFeatures:")
	fmt.Fprintln(w, "  -A            Automatic relay (defaults: R relay D relay N F s r l)")
	fmt.Fprintln(w, "  -S            Automatic server (defaults: R server D server)")
	fmt.Fprintln(w, "  -R <mode>     Enable Router Discovery support (relay|server)")
	fmt.Fprintln(w, "  -D <mode>     Enable DHCPv6 support (relay|transparent|server)")
	fmt.Fprintln(w, "  -N            Enable Neighbor Discovery Proxy")
	fmt.Fprintln(w, "  -F            Enable forwarding for interfaces")
	fmt.Fprintln(w, "\nFeature options:")
	fmt.Fprintln(w, "  -s            Send initial RD solicitation to <master>")
	fmt.Fprintln(w, "  -l            RD: force local address assignment")
	fmt.Fprintln(w, "  -n            RD/DHCPv6: always rewrite name server")
	fmt.Fprintln(w, "  -r            NDP: learn routes to neighbors")
	fmt.Fprintln(w, "  slave prefix ~  NDP: don't proxy for hosts, only serve DAD/router traffic")
	fmt.Fprintln(w, "  -p <pidfile>  Pidfile path when daemonized")
	fmt.Fprintln(w, "  -d            Daemonize")
	fmt.Fprintln(w, "  -v            Increase log verbosity (repeatable)")
}
