package runtime

import (
	"context"
	"os"

	"github.com/cuemby/rocker/pkg/cgroup"
	"github.com/cuemby/rocker/pkg/image"
	applog "github.com/cuemby/rocker/pkg/log"
	"github.com/cuemby/rocker/pkg/metrics"
	"github.com/cuemby/rocker/pkg/network"
	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
)

// Runtime composes the store, image manager, cgroup manager and network
// manager into the container lifecycle operations the CLI calls.
type Runtime struct {
	Paths  Paths
	Store  *store.Store
	Images *image.Manager
}

// New builds a Runtime rooted at dataDir.
func New(dataDir string, s *store.Store, images *image.Manager) *Runtime {
	return &Runtime{
		Paths:  Paths{DataDir: dataDir},
		Store:  s,
		Images: images,
	}
}

// RunConfig describes a "run" invocation.
type RunConfig struct {
	Ref     types.ImageRef
	Command string
	Args    []string
	Limits  types.ResourceLimits
}

// Run materializes ref's rootfs, wires a fresh container's namespaces,
// network and cgroup, and waits for command to exit, then tears every
// resource back down in strict reverse order. Teardown failures are
// accumulated and the first one is returned even though every step
// still runs.
func (rt *Runtime) Run(ctx context.Context, cfg RunConfig) error {
	logger := applog.WithComponent("runtime")
	startTimer := metrics.NewTimer()

	id, err := NewContainerID(rt.Store)
	if err != nil {
		return err
	}

	pullTimer := metrics.NewTimer()
	hash, manifest, err := rt.Images.Ensure(ctx, cfg.Ref)
	if err != nil {
		metrics.SetupFailuresTotal.WithLabelValues("image_ensure").Inc()
		return err
	}
	pullTimer.ObserveDuration(metrics.ImagePullDuration)
	metrics.ImagesPulledTotal.Inc()

	lowerDirs := BuildLowerDirs(rt.Paths, hash, layerDigests6(manifest))
	if err := MountOverlay(rt.Paths, id, lowerDirs); err != nil {
		metrics.SetupFailuresTotal.WithLabelValues("overlay").Inc()
		return err
	}

	if err := network.SetupBridge(); err != nil {
		metrics.SetupFailuresTotal.WithLabelValues("bridge").Inc()
		cleanupAfterOverlay(rt, id)
		return err
	}

	if err := network.SetupNetns(id); err != nil {
		metrics.SetupFailuresTotal.WithLabelValues("netns").Inc()
		cleanupAfterOverlay(rt, id)
		return err
	}

	ip, err := network.WireVeth(rt.Store, id)
	if err != nil {
		metrics.SetupFailuresTotal.WithLabelValues("veth").Inc()
		cleanupAfterNetns(rt, id)
		return err
	}
	logger.Info().Str("container_id", string(id)).Str("ip", ip).Msg("container network configured")

	process, err := spawnContainer(id, network.NetnsPath(id), rt.Paths.MountDir(id), cfg.Command, cfg.Args)
	if err != nil {
		metrics.SetupFailuresTotal.WithLabelValues("spawn").Inc()
		cleanupAfterVeth(rt, id)
		return err
	}

	if err := rt.Store.RecordContainer(id, commandLine(cfg.Command, cfg.Args), hash, process.Pid); err != nil {
		metrics.SetupFailuresTotal.WithLabelValues("store").Inc()
		cleanupAfterVeth(rt, id)
		return err
	}

	if err := cgroup.CreateCgroup(ctx, id, process.Pid, cfg.Limits); err != nil {
		metrics.SetupFailuresTotal.WithLabelValues("cgroup").Inc()
		_ = rt.teardown(ctx, id)
		return err
	}

	metrics.ContainersStartedTotal.Inc()
	startTimer.ObserveDuration(metrics.ContainerStartDuration)

	state, waitErr := process.Wait()
	_ = state

	if err := rt.teardown(ctx, id); err != nil {
		metrics.ContainersExitedTotal.WithLabelValues("teardown_error").Inc()
		return err
	}

	if waitErr != nil {
		metrics.ContainersExitedTotal.WithLabelValues("error").Inc()
	} else {
		metrics.ContainersExitedTotal.WithLabelValues("clean").Inc()
	}

	logger.Info().Msgf("Container %s done", id)
	return waitErr
}

func layerDigests6(manifest types.Manifest) []string {
	out := make([]string, len(manifest.LayerDigests))
	for i, d := range manifest.LayerDigests {
		out[i] = image.LayerDigest(d)
	}
	return out
}

func commandLine(command string, args []string) string {
	line := command
	for _, a := range args {
		line += " " + a
	}
	return line
}

// teardown unwinds a running container's mounts, network wiring,
// bookkeeping, namespace and directory in the strict reverse order
// §4.5 specifies, accumulating but not stopping on the first failure.
func (rt *Runtime) teardown(ctx context.Context, id types.ContainerID) error {
	var acc rockerr.FirstError

	acc.Add(unmountChildFilesystems(rt.Paths.MountDir(id)))
	acc.Add(network.TeardownVeth(rt.Store, id))
	acc.Add(rt.Store.DeleteContainer(id))
	acc.Add(network.DeleteNetns(id))
	acc.Add(UnmountOverlay(rt.Paths, id))
	acc.Add(cgroup.StopCgroup(ctx, id))
	acc.Add(os.RemoveAll(rt.Paths.ContainerDir(id)))

	return acc.Err()
}

// cleanupAfterOverlay is run when setup fails after the overlay mount
// but before the netns/veth exist, so teardown only needs to unwind the
// overlay and container directory.
func cleanupAfterOverlay(rt *Runtime, id types.ContainerID) {
	_ = UnmountOverlay(rt.Paths, id)
	_ = os.RemoveAll(rt.Paths.ContainerDir(id))
}

func cleanupAfterNetns(rt *Runtime, id types.ContainerID) {
	_ = network.DeleteNetns(id)
	cleanupAfterOverlay(rt, id)
}

func cleanupAfterVeth(rt *Runtime, id types.ContainerID) {
	_ = network.TeardownVeth(rt.Store, id)
	cleanupAfterNetns(rt, id)
}
