// Package reexec lets rocker launch itself as a child process dedicated
// to a single entry point, the idiomatic Go substitute for calling
// fork(2) with a callback: the Go runtime's goroutine scheduler and
// multiple OS threads make a bare fork unsafe, so instead the binary
// re-executes /proc/self/exe with a registered name as argv[0] and the
// desired Cloneflags/namespace setup on the exec.Cmd, and the child
// dispatches to the matching registered function before any normal
// command-line parsing happens.
package reexec

import (
	"os"
	"os/exec"
)

var registry = map[string]func(){}

// Register associates name with fn. Init must be called at the very
// start of main() to dispatch into fn if os.Args[0] matches name.
func Register(name string, fn func()) {
	registry[name] = fn
}

// Init checks os.Args[0] against the registry and, on a match, runs the
// registered function and returns true. main() should exit immediately
// when Init returns true rather than falling through to normal command
// dispatch.
func Init() bool {
	fn, ok := registry[os.Args[0]]
	if !ok {
		return false
	}
	fn()
	return true
}

// Command builds an *exec.Cmd that re-executes the current binary with
// name substituted for argv[0], so that the child's Init call dispatches
// to name's registered function. Additional args are appended after name.
func Command(name string, args ...string) (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, err
	}
	cmd := &exec.Cmd{
		Path: self,
		Args: append([]string{name}, args...),
	}
	return cmd, nil
}
