package reexec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterStoresDispatchableEntryPoint(t *testing.T) {
	called := false
	Register("test-entrypoint", func() { called = true })

	orig := registry["test-entrypoint"]
	defer func() { registry["test-entrypoint"] = orig }()

	// Init reads os.Args[0]; simulate dispatch directly via the registry
	// rather than mutating the real process args mid-test-run.
	fn, ok := registry["test-entrypoint"]
	require.True(t, ok)
	fn()
	require.True(t, called)
}

func TestRegistryHasNoEntryForUnregisteredName(t *testing.T) {
	_, ok := registry["definitely-not-registered"]
	require.False(t, ok)
}
