// Package rockerr defines the error kinds rocker's components raise, so
// callers can distinguish failure classes with errors.Is/errors.As instead
// of matching on message strings.
package rockerr

import "fmt"

// Kind classifies a failure into one of the categories rocker's components
// are allowed to raise.
type Kind string

const (
	KindPermissionDenied      Kind = "permission_denied"
	KindInvalidMemoryLimit    Kind = "invalid_memory_limit"
	KindInvalidImageName      Kind = "invalid_image_name"
	KindInvalidManifest       Kind = "invalid_manifest"
	KindStoreUnavailable      Kind = "store_unavailable"
	KindImageFetchFailed      Kind = "image_fetch_failed"
	KindFilesystemSetupFailed Kind = "filesystem_setup_failed"
	KindNamespaceSetupFailed  Kind = "namespace_setup_failed"
	KindNetworkSetupFailed    Kind = "network_setup_failed"
	KindCgroupSetupFailed     Kind = "cgroup_setup_failed"
	KindContainerNotFound     Kind = "container_not_found"
	KindIPNotFound            Kind = "ip_not_found"
	KindImageInUse            Kind = "image_in_use"
)

// Error is a Kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, which is what
// lets callers write errors.Is(err, rockerr.KindImageFetchFailed)-style
// checks via a Kind sentinel (see Kind.Error below).
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// Error lets a bare Kind act as a sentinel for errors.Is(err, someKind).
func (k Kind) Error() string { return string(k) }

// New builds an Error for op with the given kind, optionally wrapping err.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// FirstError accumulates the first non-nil error passed to Add while still
// letting the caller run every step of a best-effort teardown sequence.
type FirstError struct {
	err error
}

// Add records err if it is the first non-nil error seen so far.
func (f *FirstError) Add(err error) {
	if err != nil && f.err == nil {
		f.err = err
	}
}

// Err returns the first error recorded, or nil if none was.
func (f *FirstError) Err() error { return f.err }
