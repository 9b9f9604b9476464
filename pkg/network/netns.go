package network

import (
	"fmt"
	"os"
	"runtime"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/vishvananda/netns"
)

// NetnsPath returns the persistent bind-mount path for a container's
// network namespace.
func NetnsPath(id types.ContainerID) string {
	return fmt.Sprintf("/run/netns/ns-%s", id)
}

// SetupNetns creates a new named, persistent network namespace for id at
// NetnsPath(id) and restores the calling thread's original namespace
// before returning.
func SetupNetns(id types.ContainerID) error {
	if err := os.MkdirAll("/run/netns", 0755); err != nil {
		return rockerr.New("network.SetupNetns", rockerr.KindNetworkSetupFailed, err)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origin, err := netns.Get()
	if err != nil {
		return rockerr.New("network.SetupNetns", rockerr.KindNetworkSetupFailed, err)
	}
	defer origin.Close()
	defer netns.Set(origin)

	newNs, err := netns.NewNamed("ns-" + string(id))
	if err != nil {
		return rockerr.New("network.SetupNetns", rockerr.KindNetworkSetupFailed, err)
	}
	defer newNs.Close()

	return nil
}

// DeleteNetns removes the persistent namespace file created by SetupNetns.
func DeleteNetns(id types.ContainerID) error {
	if err := netns.DeleteNamed("ns-" + string(id)); err != nil {
		return rockerr.New("network.DeleteNetns", rockerr.KindNetworkSetupFailed, err)
	}
	return nil
}
