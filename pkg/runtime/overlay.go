package runtime

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
)

// BuildLowerDirs maps a manifest's layer digests to their on-disk fs
// directories, in manifest order. It does not reorder for overlayfs's
// topmost-first lowerdir convention: the join happens in the same order
// the manifest lists layers, preserving the upstream behavior this was
// ported from rather than silently correcting it. Whether that order is
// base-to-top or top-to-base depends on registry convention; no test in
// this repository pins the order, so an image whose layering comes out
// backwards is only noticed when it is run.
func BuildLowerDirs(paths Paths, hash types.ImageHash, layer6s []string) []string {
	dirs := make([]string, len(layer6s))
	for i, l6 := range layer6s {
		dirs[i] = paths.LayerFSDir(hash, l6)
	}
	return dirs
}

// MountOverlay creates the mnt/upperdir/workdir directories under id's
// container fs root and mounts overlayfs there with lowerDirs joined
// colon-separated in the order given; overlayfs gives the leftmost entry
// the highest priority.
func MountOverlay(paths Paths, id types.ContainerID, lowerDirs []string) error {
	mnt := paths.MountDir(id)
	upper := paths.UpperDir(id)
	work := paths.WorkDir(id)

	for _, dir := range []string{mnt, upper, work} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return rockerr.New("runtime.MountOverlay", rockerr.KindFilesystemSetupFailed, err)
		}
	}

	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", strings.Join(lowerDirs, ":"), upper, work)
	if err := syscall.Mount("overlay", mnt, "overlay", 0, opts); err != nil {
		return rockerr.New("runtime.MountOverlay", rockerr.KindFilesystemSetupFailed, err)
	}
	return nil
}

// UnmountOverlay unmounts id's overlay mount point. Best effort: used
// during teardown where every step runs regardless of earlier failures.
func UnmountOverlay(paths Paths, id types.ContainerID) error {
	if err := syscall.Unmount(paths.MountDir(id), 0); err != nil {
		return rockerr.New("runtime.UnmountOverlay", rockerr.KindFilesystemSetupFailed, err)
	}
	return nil
}
