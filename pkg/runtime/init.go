package runtime

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/cuemby/rocker/pkg/reexec"
)

// initEntryPoint is the re-exec name the container child dispatches
// through: the parent builds an *exec.Cmd with this as argv[0] and
// Cloneflags set for the mount/PID/UTS/IPC namespaces, and the resulting
// child process runs runInit instead of any normal rocker command.
const initEntryPoint = "rocker-init"

func init() {
	reexec.Register(initEntryPoint, runInit)
}

// runInit is the container child's entire body: join the pre-created
// network namespace, set the hostname, chroot into the assembled
// rootfs, mount the private filesystems the container needs, and
// execve the target command. It never returns on success because
// execve replaces the process image; on failure it exits non-zero so
// the parent's Wait observes a failed child.
func runInit() {
	// os.Args layout: [rocker-init, id, netnsPath, mnt, command, arg0, arg1, ...]
	args := os.Args
	if len(args) < 5 {
		fmt.Fprintln(os.Stderr, "rocker-init: missing arguments")
		os.Exit(1)
	}
	id, netnsPath, mnt, command := args[1], args[2], args[3], args[4]
	cmdArgs := args[4:]

	if err := joinNetns(netnsPath); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-init: joining netns: %v\n", err)
		os.Exit(1)
	}

	if err := unix.Sethostname([]byte(id)); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-init: sethostname: %v\n", err)
		os.Exit(1)
	}

	if err := syscall.Chroot(mnt); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-init: chroot: %v\n", err)
		os.Exit(1)
	}
	if err := os.Chdir("/"); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-init: chdir: %v\n", err)
		os.Exit(1)
	}

	if err := mountChildFilesystems(); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-init: mounting filesystems: %v\n", err)
		os.Exit(1)
	}

	if err := syscall.Exec(command, cmdArgs, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "rocker-init: exec %s: %v\n", command, err)
		os.Exit(1)
	}
}

// joinNetns opens the persistent namespace file at path and calls setns
// with CLONE_NEWNET. The mount/PID/UTS/IPC namespaces are already active
// in this process by virtue of the Cloneflags the parent set before
// re-exec; only the network namespace is joined explicitly here, since it
// was created ahead of time and shared across the host bridge wiring.
func joinNetns(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Setns(fd, unix.CLONE_NEWNET)
}
