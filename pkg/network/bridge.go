// Package network wires up the host bridge, per-container veth pairs and
// network namespaces rocker attaches containers to, and allocates the IP
// addresses they use. All kernel operations go through rtnetlink via
// vishvananda/netlink rather than shelling out to iproute2.
package network

import (
	"fmt"
	"net"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/vishvananda/netlink"
)

const (
	// BridgeName is the host bridge every container's veth attaches to.
	BridgeName = "rocker0"
	// BridgeCIDR is the bridge's own address and the subnet containers
	// are allocated addresses from.
	BridgeCIDR = "172.28.0.1/16"
	// GatewayIP is the address containers route their default gateway to.
	GatewayIP = "172.28.0.1"
)

// IsBridgeUp reports whether BridgeName exists and has the UP flag set.
func IsBridgeUp() (bool, error) {
	link, err := netlink.LinkByName(BridgeName)
	if err != nil {
		if _, ok := err.(netlink.LinkNotFoundError); ok {
			return false, nil
		}
		return false, rockerr.New("network.IsBridgeUp", rockerr.KindNetworkSetupFailed, err)
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}

// SetupBridge creates BridgeName with BridgeCIDR and brings it up if it
// doesn't exist yet; if it already exists, it only ensures the link is up.
// Safe to call concurrently from multiple container starts since the
// existence check is the only gate.
func SetupBridge() error {
	link, err := netlink.LinkByName(BridgeName)
	if err == nil {
		if err := netlink.LinkSetUp(link); err != nil {
			return rockerr.New("network.SetupBridge", rockerr.KindNetworkSetupFailed, err)
		}
		return nil
	}
	if _, ok := err.(netlink.LinkNotFoundError); !ok {
		return rockerr.New("network.SetupBridge", rockerr.KindNetworkSetupFailed, err)
	}

	br := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: BridgeName}}
	if err := netlink.LinkAdd(br); err != nil {
		return rockerr.New("network.SetupBridge", rockerr.KindNetworkSetupFailed, err)
	}

	addr, err := netlink.ParseAddr(BridgeCIDR)
	if err != nil {
		return rockerr.New("network.SetupBridge", rockerr.KindNetworkSetupFailed, err)
	}
	if err := netlink.AddrAdd(br, addr); err != nil {
		return rockerr.New("network.SetupBridge", rockerr.KindNetworkSetupFailed, err)
	}

	if err := netlink.LinkSetUp(br); err != nil {
		return rockerr.New("network.SetupBridge", rockerr.KindNetworkSetupFailed, err)
	}
	return nil
}

// VethNames returns the bridge-side and container-side veth interface
// names for a container, derived from its 6-character short id.
func VethNames(id6 string) (bridgeSide, containerSide string) {
	return fmt.Sprintf("br-veth-%s", id6), fmt.Sprintf("ns-veth-%s", id6)
}
