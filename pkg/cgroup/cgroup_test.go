package cgroup

import (
	"testing"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"
)

func TestParseMemoryLimit(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"512M", 512_000_000},
		{"2GB", 2_000_000_000},
		{"1024", 1024},
		{"1K", 1_000},
		{"1kb", 1_000},
		{"1T", 1_000_000_000_000},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMemoryLimit(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseMemoryLimitInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "512X", "M"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseMemoryLimit(in)
			require.ErrorIs(t, err, rockerr.KindInvalidMemoryLimit)
		})
	}
}

func propValue(props []systemdDbus.Property, name string) (dbus.Variant, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return dbus.Variant{}, false
}

func TestBuildProperties(t *testing.T) {
	limits := types.ResourceLimits{
		Memory:    "1M",
		CPUs:      0.5,
		HasCPUs:   true,
		PidsLimit: 100,
		HasPids:   true,
	}

	props, err := BuildProperties(4242, types.ContainerID("abc"), limits)
	require.NoError(t, err)

	pids, ok := propValue(props, "PIDs")
	require.True(t, ok)
	require.Equal(t, []uint32{4242}, pids.Value())

	desc, ok := propValue(props, "Description")
	require.True(t, ok)
	require.Equal(t, "rocker container: abc", desc.Value())

	memAcc, ok := propValue(props, "MemoryAccounting")
	require.True(t, ok)
	require.Equal(t, true, memAcc.Value())

	memMax, ok := propValue(props, "MemoryMax")
	require.True(t, ok)
	require.Equal(t, uint64(1_000_000), memMax.Value())

	cpuAcc, ok := propValue(props, "CPUAccounting")
	require.True(t, ok)
	require.Equal(t, true, cpuAcc.Value())

	cpuQuota, ok := propValue(props, "CPUQuotaPerSecUSec")
	require.True(t, ok)
	require.Equal(t, uint64(500_000), cpuQuota.Value())

	tasksAcc, ok := propValue(props, "TasksAccounting")
	require.True(t, ok)
	require.Equal(t, true, tasksAcc.Value())

	tasksMax, ok := propValue(props, "TasksMax")
	require.True(t, ok)
	require.Equal(t, uint64(100), tasksMax.Value())
}

func TestBuildPropertiesNoLimits(t *testing.T) {
	props, err := BuildProperties(10, types.ContainerID("x"), types.ResourceLimits{})
	require.NoError(t, err)
	require.Len(t, props, 2) // PIDs, Description only
}

func TestScopeName(t *testing.T) {
	require.Equal(t, "rocker-abcdef012345.scope", ScopeName(types.ContainerID("abcdef012345")))
}
