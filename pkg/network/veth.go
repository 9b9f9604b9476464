package network

import (
	"net"
	"runtime"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// WireVeth creates the veth pair for id, attaches the bridge side to
// BridgeName, moves the container side into id's network namespace,
// allocates an IP for it, and configures that IP, the default route and
// loopback inside the namespace.
func WireVeth(s *store.Store, id types.ContainerID) (ip string, err error) {
	id6 := id.Short()
	bridgeSide, containerSide := VethNames(id6)

	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: bridgeSide},
		PeerName:  containerSide,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return "", rockerr.New("network.WireVeth", rockerr.KindNetworkSetupFailed, err)
	}

	bridgeLink, err := netlink.LinkByName(bridgeSide)
	if err != nil {
		return "", rockerr.New("network.WireVeth", rockerr.KindNetworkSetupFailed, err)
	}
	if err := netlink.LinkSetUp(bridgeLink); err != nil {
		return "", rockerr.New("network.WireVeth", rockerr.KindNetworkSetupFailed, err)
	}
	br, err := netlink.LinkByName(BridgeName)
	if err != nil {
		return "", rockerr.New("network.WireVeth", rockerr.KindNetworkSetupFailed, err)
	}
	if err := netlink.LinkSetMaster(bridgeLink, br.(*netlink.Bridge)); err != nil {
		return "", rockerr.New("network.WireVeth", rockerr.KindNetworkSetupFailed, err)
	}

	nsHandle, err := netns.GetFromName("ns-" + string(id))
	if err != nil {
		return "", rockerr.New("network.WireVeth", rockerr.KindNetworkSetupFailed, err)
	}
	defer nsHandle.Close()

	containerLink, err := netlink.LinkByName(containerSide)
	if err != nil {
		return "", rockerr.New("network.WireVeth", rockerr.KindNetworkSetupFailed, err)
	}
	if err := netlink.LinkSetNsFd(containerLink, int(nsHandle)); err != nil {
		return "", rockerr.New("network.WireVeth", rockerr.KindNetworkSetupFailed, err)
	}

	ip, err = AllocateIP(s, id)
	if err != nil {
		return "", err
	}
	if err := s.RecordVethIP(containerSide, ip); err != nil {
		return "", err
	}

	if err := configureInNetns(id, containerSide, ip); err != nil {
		return "", err
	}

	return ip, nil
}

// configureInNetns switches the calling OS thread into id's namespace,
// configures the container-side veth's address, default route and
// loopback, then restores the original namespace. The caller's goroutine
// is locked to its OS thread for the duration since namespace membership
// is per-thread, not per-process.
func configureInNetns(id types.ContainerID, vethName, ip string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origin, err := netns.Get()
	if err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}
	defer origin.Close()
	defer netns.Set(origin)

	target, err := netns.GetFromName("ns-" + string(id))
	if err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}

	link, err := netlink.LinkByName(vethName)
	if err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}

	addr, err := netlink.ParseAddr(ip + "/16")
	if err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}
	if err := netlink.AddrAdd(link, addr); err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}

	gw := net.ParseIP(GatewayIP)
	defaultRoute := &netlink.Route{LinkIndex: link.Attrs().Index, Gw: gw}
	if err := netlink.RouteAdd(defaultRoute); err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}

	lo, err := netlink.LinkByName("lo")
	if err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}
	loAddr, err := netlink.ParseAddr("127.0.0.1/32")
	if err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}
	if err := netlink.AddrAdd(lo, loAddr); err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}
	if err := netlink.LinkSetUp(lo); err != nil {
		return rockerr.New("network.configureInNetns", rockerr.KindNetworkSetupFailed, err)
	}

	return nil
}

// TeardownVeth reverses WireVeth's bookkeeping: it looks up the IP recorded
// for id's container-side veth, releases it in the store along with the
// veth mapping itself. The veth device is destroyed automatically when
// its namespace is deleted, so this does not need to remove it directly.
func TeardownVeth(s *store.Store, id types.ContainerID) error {
	id6 := id.Short()
	_, containerSide := VethNames(id6)

	ip, ok, err := s.GetVethIP(containerSide)
	if err != nil {
		return err
	}
	if !ok {
		return rockerr.New("network.TeardownVeth", rockerr.KindIPNotFound, nil)
	}

	var acc rockerr.FirstError
	acc.Add(s.ReleaseIP(ip))
	acc.Add(s.DeleteVethIP(containerSide))
	return acc.Err()
}
