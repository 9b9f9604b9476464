package runtime

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/cuemby/rocker/pkg/cgroup"
	"github.com/cuemby/rocker/pkg/network"
	"github.com/cuemby/rocker/pkg/reexec"
	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
)

const (
	execAttachEntryPoint = "rocker-exec-attach"
	execRunEntryPoint    = "rocker-exec-run"
)

func init() {
	reexec.Register(execAttachEntryPoint, runExecAttach)
	reexec.Register(execRunEntryPoint, runExecRun)
}

// ErrContainerNotRunning is returned by Exec when id has no recorded PID.
// Callers present this as a user-visible message and exit 0 rather than
// treating it as an operational failure.
var ErrContainerNotRunning = rockerr.New("runtime.Exec", rockerr.KindContainerNotFound, nil)

// Exec joins command into the namespaces of the already-running
// container id. Because setns into a PID namespace only affects the
// joining process's future children, this goes through a double-fork:
// an attach process joins the target namespaces and then spawns a run
// process (inheriting those namespaces) that becomes the container's
// new PID-namespace-view process.
func (rt *Runtime) Exec(ctx context.Context, id types.ContainerID, command string, args []string) error {
	container, err := rt.Store.GetContainer(id)
	if err != nil {
		return ErrContainerNotRunning
	}

	mnt := rt.Paths.MountDir(id)
	cmd, err := reexec.Command(execAttachEntryPoint, append([]string{
		strconv.Itoa(container.PID), network.NetnsPath(id), mnt, string(id), command,
	}, args...)...)
	if err != nil {
		return rockerr.New("runtime.Exec", rockerr.KindNamespaceSetupFailed, err)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return rockerr.New("runtime.Exec", rockerr.KindNamespaceSetupFailed, err)
	}
	if err := cmd.Wait(); err != nil {
		return rockerr.New("runtime.Exec", rockerr.KindNamespaceSetupFailed, err)
	}
	return nil
}

// runExecAttach is the middle process: it joins the target container's
// mnt/pid/uts/ipc namespaces (by /proc/<pid>/ns/*) and its netns (by the
// persistent netns file), spawns the grandchild run process which
// inherits those joined namespaces, attaches the grandchild's PID to
// the container's cgroup, and waits for it.
func runExecAttach() {
	args := os.Args
	if len(args) < 6 {
		fmt.Fprintln(os.Stderr, "rocker-exec-attach: missing arguments")
		os.Exit(1)
	}
	pid, netnsPath, mnt, id := args[1], args[2], args[3], args[4]
	cmdArgs := args[5:]

	for _, ns := range []string{"ipc", "mnt", "pid", "uts"} {
		if err := setnsProc(pid, ns); err != nil {
			fmt.Fprintf(os.Stderr, "rocker-exec-attach: setns %s: %v\n", ns, err)
			os.Exit(1)
		}
	}
	if err := joinNetns(netnsPath); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-exec-attach: setns net: %v\n", err)
		os.Exit(1)
	}

	grandchild, err := reexec.Command(execRunEntryPoint, append([]string{id, mnt}, cmdArgs...)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rocker-exec-attach: building grandchild: %v\n", err)
		os.Exit(1)
	}
	grandchild.Stdin = os.Stdin
	grandchild.Stdout = os.Stdout
	grandchild.Stderr = os.Stderr

	if err := grandchild.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-exec-attach: starting grandchild: %v\n", err)
		os.Exit(1)
	}

	if err := cgroup.AttachProcess(types.ContainerID(id), grandchild.Process.Pid); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-exec-attach: attaching to cgroup: %v\n", err)
	}

	if err := grandchild.Wait(); err != nil {
		os.Exit(1)
	}
}

// runExecRun is the grandchild: it becomes the first process in the
// container's PID namespace view, sets its hostname, chroots into the
// already-mounted rootfs and execs the target command.
func runExecRun() {
	// os.Args layout: [rocker-exec-run, id, mnt, command, arg0, arg1, ...]
	args := os.Args
	if len(args) < 4 {
		fmt.Fprintln(os.Stderr, "rocker-exec-run: missing arguments")
		os.Exit(1)
	}
	id := args[1]
	mnt := args[2]
	execCommand := args[3]
	execArgs := args[3:]

	if err := unix.Sethostname([]byte(id)); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-exec-run: sethostname: %v\n", err)
		os.Exit(1)
	}

	if err := syscall.Chroot(mnt); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-exec-run: chroot: %v\n", err)
		os.Exit(1)
	}
	if err := os.Chdir("/"); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-exec-run: chdir: %v\n", err)
		os.Exit(1)
	}

	if err := syscall.Exec(execCommand, execArgs, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-exec-run: exec %s: %v\n", execCommand, err)
		os.Exit(1)
	}
}

func setnsProc(pid, ns string) error {
	path := fmt.Sprintf("/proc/%s/ns/%s", pid, ns)
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	var flag int
	switch ns {
	case "ipc":
		flag = unix.CLONE_NEWIPC
	case "mnt":
		flag = unix.CLONE_NEWNS
	case "pid":
		flag = unix.CLONE_NEWPID
	case "uts":
		flag = unix.CLONE_NEWUTS
	}
	return unix.Setns(fd, flag)
}
