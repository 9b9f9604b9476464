package network

import (
	"testing"

	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestVethNames(t *testing.T) {
	bridgeSide, containerSide := VethNames("abcdef")
	require.Equal(t, "br-veth-abcdef", bridgeSide)
	require.Equal(t, "ns-veth-abcdef", containerSide)
}

func TestContainerIDShort(t *testing.T) {
	id := types.ContainerID("abcdef012345")
	require.Equal(t, "abcdef", id.Short())
}

func TestAllocateIPFormatAndCollision(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ip, err := AllocateIP(s, types.ContainerID("c"))
		require.NoError(t, err)
		require.False(t, seen[ip], "AllocateIP must not return an address already reserved")
		seen[ip] = true
		require.Regexp(t, `^172\.28\.\d{1,3}\.\d{1,3}$`, ip)
	}
}
