// Package registry defines the boundary rocker's image manager talks
// across to fetch manifests and blobs from a Docker v2 (or OCI) registry.
// Client is the interface; DockerClient in docker.go is the concrete
// Docker Hub implementation the CLI wires behind it.
package registry

import (
	"context"
	"io"

	"github.com/cuemby/rocker/pkg/types"
)

// Client resolves an image reference against a registry and streams its
// manifest and layer/config blobs.
type Client interface {
	// Authenticate obtains whatever credential the registry requires to
	// pull ref (anonymous token, basic auth, etc.) and returns an opaque
	// token to present on subsequent requests.
	Authenticate(ctx context.Context, ref types.ImageRef) (string, error)

	// FetchManifest retrieves and parses ref's schema-v2 manifest.
	FetchManifest(ctx context.Context, ref types.ImageRef, token string) (types.Manifest, error)

	// FetchBlob streams the blob identified by digest (a config or layer
	// blob referenced from a manifest already fetched for ref). The
	// caller is responsible for closing the returned reader.
	FetchBlob(ctx context.Context, ref types.ImageRef, digest string, token string) (io.ReadCloser, error)
}
