package runtime

import (
	"os"
	"syscall"

	"github.com/cuemby/rocker/pkg/rockerr"
)

// childMount is one of the filesystems the container child mounts inside
// its chroot, in the order the kernel needs them: /proc before the PID
// namespace is useful, /dev before /dev/pts, /sys last.
type childMount struct {
	target string
	source string
	fstype string
}

var childMounts = []childMount{
	{target: "/proc", source: "proc", fstype: "proc"},
	{target: "/tmp", source: "tmpfs", fstype: "tmpfs"},
	{target: "/dev", source: "tmpfs", fstype: "tmpfs"},
	{target: "/dev/pts", source: "devpts", fstype: "devpts"},
	{target: "/sys", source: "sysfs", fstype: "sysfs"},
}

// mountChildFilesystems mounts /proc, /tmp, /dev, /dev/pts and /sys
// relative to the process's current root, which must already be the
// container's chrooted mnt directory by the time this runs.
func mountChildFilesystems() error {
	for _, m := range childMounts {
		if err := ensureDir(m.target); err != nil {
			return rockerr.New("runtime.mountChildFilesystems", rockerr.KindFilesystemSetupFailed, err)
		}
		if err := syscall.Mount(m.source, m.target, m.fstype, 0, ""); err != nil {
			return rockerr.New("runtime.mountChildFilesystems", rockerr.KindFilesystemSetupFailed, err)
		}
	}
	return nil
}

// unmountChildFilesystems unmounts the child's private filesystems in
// strict reverse order of mountChildFilesystems, relative to mntRoot
// (called from the parent after the container process has exited, so it
// addresses them via their path under mntRoot rather than relative to "/").
func unmountChildFilesystems(mntRoot string) error {
	var acc rockerr.FirstError
	for i := len(childMounts) - 1; i >= 0; i-- {
		path := mntRoot + childMounts[i].target
		acc.Add(syscall.Unmount(path, 0))
	}
	if acc.Err() != nil {
		return rockerr.New("runtime.unmountChildFilesystems", rockerr.KindFilesystemSetupFailed, acc.Err())
	}
	return nil
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
