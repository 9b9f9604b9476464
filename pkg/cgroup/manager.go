// Package cgroup installs resource limits for a running container by
// starting a systemd transient scope over the system D-Bus, and supports
// attaching additional PIDs to that scope's cgroup directly for the exec
// flow.
package cgroup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
)

const dbusCallTimeout = 5 * time.Second

// ScopeName is the systemd unit name a container's scope is registered
// under: "rocker-<id>.scope" in "system.slice".
func ScopeName(id types.ContainerID) string {
	return fmt.Sprintf("rocker-%s.scope", id)
}

// BuildProperties constructs the systemd property vector for a container's
// transient scope. The PIDs entry is always present; the accounting pairs
// are only added when their corresponding limit is set.
func BuildProperties(pid int, id types.ContainerID, limits types.ResourceLimits) ([]systemdDbus.Property, error) {
	props := []systemdDbus.Property{
		systemdDbus.PropPids(uint32(pid)),
		newProp("Description", fmt.Sprintf("rocker container: %s", id)),
	}

	if limits.Memory != "" {
		bytes, err := ParseMemoryLimit(limits.Memory)
		if err != nil {
			return nil, err
		}
		props = append(props,
			newProp("MemoryAccounting", true),
			newProp("MemoryMax", bytes),
		)
	}

	if limits.HasCPUs {
		quota := uint64(limits.CPUs * 1_000_000)
		props = append(props,
			newProp("CPUAccounting", true),
			newProp("CPUQuotaPerSecUSec", quota),
		)
	}

	if limits.HasPids {
		props = append(props,
			newProp("TasksAccounting", true),
			newProp("TasksMax", uint64(limits.PidsLimit)),
		)
	}

	return props, nil
}

func newProp(name string, value any) systemdDbus.Property {
	return systemdDbus.Property{Name: name, Value: dbus.MakeVariant(value)}
}

// CreateCgroup starts id's transient scope with pid seeded in from the
// start, accounting for whatever limits are set. It must be called after
// the container process exists (its PID seeds the scope) and should
// follow right after clone, since the child runs briefly uninstalled.
func CreateCgroup(ctx context.Context, id types.ContainerID, pid int, limits types.ResourceLimits) error {
	props, err := BuildProperties(pid, id, limits)
	if err != nil {
		return err
	}

	conn, err := systemdDbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return rockerr.New("cgroup.CreateCgroup", rockerr.KindCgroupSetupFailed, err)
	}
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, dbusCallTimeout)
	defer cancel()

	ch := make(chan string, 1)
	if _, err := conn.StartTransientUnitContext(callCtx, ScopeName(id), "replace", props, ch); err != nil {
		return rockerr.New("cgroup.CreateCgroup", rockerr.KindCgroupSetupFailed, err)
	}

	select {
	case <-ch:
	case <-callCtx.Done():
		return rockerr.New("cgroup.CreateCgroup", rockerr.KindCgroupSetupFailed, callCtx.Err())
	}

	return nil
}

// StopCgroup asks systemd to tear down id's transient scope. Failures here
// are folded into a teardown's first-error accumulator by the caller, not
// fatal on their own.
func StopCgroup(ctx context.Context, id types.ContainerID) error {
	conn, err := systemdDbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return rockerr.New("cgroup.StopCgroup", rockerr.KindCgroupSetupFailed, err)
	}
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, dbusCallTimeout)
	defer cancel()

	ch := make(chan string, 1)
	if _, err := conn.StopUnitContext(callCtx, ScopeName(id), "replace", ch); err != nil {
		return rockerr.New("cgroup.StopCgroup", rockerr.KindCgroupSetupFailed, err)
	}
	select {
	case <-ch:
	case <-callCtx.Done():
	}
	return nil
}

// isCgroupV2 reports cgroup v2 by the presence of the unified controllers
// file.
func isCgroupV2() bool {
	_, err := os.Stat("/sys/fs/cgroup/cgroup.controllers")
	return err == nil
}

var v1Controllers = []string{"cpu", "memory", "pids"}

// AttachProcess appends pid to id's scope cgroup.procs file(s), used by the
// exec flow to join an already-running container's cgroup. On v2 there is
// a single unified file; on v1 the write is repeated per controller.
func AttachProcess(id types.ContainerID, pid int) error {
	scope := ScopeName(id)
	pidLine := []byte(fmt.Sprintf("%d\n", pid))

	if isCgroupV2() {
		path := filepath.Join("/sys/fs/cgroup/system.slice", scope, "cgroup.procs")
		return attachAt(path, pidLine)
	}

	var acc rockerr.FirstError
	for _, controller := range v1Controllers {
		path := filepath.Join("/sys/fs/cgroup", controller, "system.slice", scope, "cgroup.procs")
		acc.Add(attachAt(path, pidLine))
	}
	return acc.Err()
}

func attachAt(path string, pidLine []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return rockerr.New("cgroup.AttachProcess", rockerr.KindCgroupSetupFailed, err)
	}
	defer f.Close()
	if _, err := f.Write(pidLine); err != nil {
		return rockerr.New("cgroup.AttachProcess", rockerr.KindCgroupSetupFailed, err)
	}
	return nil
}
