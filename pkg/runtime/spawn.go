package runtime

import (
	"os"
	"syscall"

	"github.com/cuemby/rocker/pkg/reexec"
	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
)

// spawnContainer re-execs the current binary into initEntryPoint with
// Cloneflags for new mount, PID, UTS and IPC namespaces. Network is
// deliberately excluded from Cloneflags: the child joins the
// pre-created netns explicitly by fd once it's running, since the
// namespace has to exist (and be wired to the bridge) before the child
// starts. The child's stdio is inherited so the container's output
// reaches the caller's terminal directly.
func spawnContainer(id types.ContainerID, netnsPath, mnt, command string, args []string) (*os.Process, error) {
	cmd, err := reexec.Command(initEntryPoint, append([]string{string(id), netnsPath, mnt, command}, args...)...)
	if err != nil {
		return nil, rockerr.New("runtime.spawnContainer", rockerr.KindNamespaceSetupFailed, err)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWNS |
			syscall.CLONE_NEWPID |
			syscall.CLONE_NEWUTS |
			syscall.CLONE_NEWIPC,
	}

	if err := cmd.Start(); err != nil {
		return nil, rockerr.New("runtime.spawnContainer", rockerr.KindNamespaceSetupFailed, err)
	}

	return cmd.Process, nil
}
