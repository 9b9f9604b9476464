// Package runtime composes the store, image manager, cgroup manager and
// network manager into the container lifecycle: run, exec, ps, and the
// teardown sequence that unwinds a run's mounts, namespaces and
// bookkeeping in strict reverse order.
package runtime

import (
	"path/filepath"

	"github.com/cuemby/rocker/pkg/types"
)

// Paths centralizes the on-disk layout rocker's components agree on.
type Paths struct {
	DataDir string
}

func (p Paths) ImagesDir() string { return filepath.Join(p.DataDir, "images") }
func (p Paths) TmpDir() string    { return filepath.Join(p.DataDir, "tmp") }

// ContainersDir is rooted under /run, not DataDir: container state is
// ephemeral and should not survive a reboot the way cached images do.
func (p Paths) ContainersDir() string { return "/run/rocker/containers" }

func (p Paths) ContainerDir(id types.ContainerID) string {
	return filepath.Join(p.ContainersDir(), string(id))
}

func (p Paths) ContainerFSDir(id types.ContainerID) string {
	return filepath.Join(p.ContainerDir(id), "fs")
}

func (p Paths) MountDir(id types.ContainerID) string {
	return filepath.Join(p.ContainerFSDir(id), "mnt")
}

func (p Paths) UpperDir(id types.ContainerID) string {
	return filepath.Join(p.ContainerFSDir(id), "upperdir")
}

func (p Paths) WorkDir(id types.ContainerID) string {
	return filepath.Join(p.ContainerFSDir(id), "workdir")
}

func (p Paths) LayerFSDir(hash types.ImageHash, layer6 string) string {
	return filepath.Join(p.ImagesDir(), string(hash), layer6, "fs")
}
