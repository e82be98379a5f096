package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMasterAndSlavesWithExternalMarker(t *testing.T) {
	cfg, err := Parse([]string{"eth0", "eth1", "~eth2"})
	require.NoError(t, err)
	require.Equal(t, "eth0", cfg.Master)
	require.Equal(t, []string{"eth1", "eth2"}, cfg.Slaves)
	require.Equal(t, []bool{false, true}, cfg.External)
}

func TestParseRequiresMaster(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
	require.True(t, IsUsageError(err))
}

// TestAutoRelayBundle is spec §6/SPEC_FULL.md Part D's -A flag bundle.
func TestAutoRelayBundle(t *testing.T) {
	cfg, err := Parse([]string{"-A", "eth0", "eth1"})
	require.NoError(t, err)
	require.True(t, cfg.EnableRouterDiscoveryRelay)
	require.True(t, cfg.EnableDHCPv6Relay)
	require.True(t, cfg.EnableNDPRelay)
	require.True(t, cfg.EnableForwarding)
	require.True(t, cfg.SendRouterSolicitation)
	require.True(t, cfg.EnableRouteLearning)
	require.True(t, cfg.ForceAddressAssignment)
	require.False(t, cfg.EnableDHCPv6Server)
	require.False(t, cfg.EnableRouterDiscoveryServer)
}

// TestAutoServerBundle is spec §6/SPEC_FULL.md Part D's -S flag bundle.
func TestAutoServerBundle(t *testing.T) {
	cfg, err := Parse([]string{"-S", "lo"})
	require.NoError(t, err)
	require.True(t, cfg.EnableRouterDiscoveryRelay)
	require.True(t, cfg.EnableRouterDiscoveryServer)
	require.True(t, cfg.EnableDHCPv6Relay)
	require.True(t, cfg.EnableDHCPv6Server)
	require.False(t, cfg.ForceAddressAssignment)
}

func TestRDModeServer(t *testing.T) {
	cfg, err := Parse([]string{"-R", "server", "eth0", "eth1"})
	require.NoError(t, err)
	require.True(t, cfg.EnableRouterDiscoveryRelay)
	require.True(t, cfg.EnableRouterDiscoveryServer)
}

func TestRDModeInvalidIsUsageError(t *testing.T) {
	_, err := Parse([]string{"-R", "bogus", "eth0"})
	require.Error(t, err)
	require.True(t, IsUsageError(err))
}

func TestDHCPModeTransparentSetsCompatBroken(t *testing.T) {
	cfg, err := Parse([]string{"-D", "transparent", "eth0", "eth1"})
	require.NoError(t, err)
	require.True(t, cfg.EnableDHCPv6Relay)
	require.True(t, cfg.CompatBrokenDHCPv6)
	require.False(t, cfg.EnableDHCPv6Server)
}

func TestDHCPModeServer(t *testing.T) {
	cfg, err := Parse([]string{"-D", "server", "eth0"})
	require.NoError(t, err)
	require.True(t, cfg.EnableDHCPv6Server)
	require.False(t, cfg.CompatBrokenDHCPv6)
}

func TestDHCPModeInvalidIsUsageError(t *testing.T) {
	_, err := Parse([]string{"-D", "bogus", "eth0"})
	require.Error(t, err)
	require.True(t, IsUsageError(err))
}

func TestVerbosityIsRepeatable(t *testing.T) {
	cfg, err := Parse([]string{"-v", "-v", "eth0"})
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Verbosity)
}

func TestIndividualFlags(t *testing.T) {
	cfg, err := Parse([]string{"-N", "-F", "-s", "-l", "-n", "-r", "-p", "/tmp/x.pid", "-d", "eth0"})
	require.NoError(t, err)
	require.True(t, cfg.EnableNDPRelay)
	require.True(t, cfg.EnableForwarding)
	require.True(t, cfg.SendRouterSolicitation)
	require.True(t, cfg.ForceAddressAssignment)
	require.True(t, cfg.AlwaysRewriteDNS)
	require.True(t, cfg.EnableRouteLearning)
	require.Equal(t, "/tmp/x.pid", cfg.Pidfile)
	require.True(t, cfg.Daemonize)
}

func TestPidfileDefault(t *testing.T) {
	cfg, err := Parse([]string{"eth0"})
	require.NoError(t, err)
	require.Equal(t, defaultPidfile, cfg.Pidfile)
}

func TestValidateRejectsNoRelaysEnabled(t *testing.T) {
	cfg, err := Parse([]string{"eth0"})
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	require.True(t, IsNoRelaysError(err))
}

func TestValidateAcceptsAnySubsystemEnabled(t *testing.T) {
	cfg, err := Parse([]string{"-N", "eth0"})
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}
