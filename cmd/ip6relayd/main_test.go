package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fgggid/ip6relayd/internal/config"
)

func TestRunReturnsUsageExitCodeOnMissingMaster(t *testing.T) {
	require.Equal(t, config.ExitUsage, run(nil))
}

func TestRunReturnsUsageExitCodeOnBadRDMode(t *testing.T) {
	require.Equal(t, config.ExitUsage, run([]string{"-R", "bogus", "eth0"}))
}

func TestRunReturnsNoRelaysExitCodeWhenNothingEnabled(t *testing.T) {
	require.Equal(t, config.ExitNoRelaysEnabled, run([]string{"eth0"}))
}
