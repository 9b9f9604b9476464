// Package types holds the shared data model rocker's components pass
// between each other: container and image identity, the schema-v2
// manifest shape, and resource-limit requests.
package types

import v1 "github.com/opencontainers/image-spec/specs-go/v1"

// ContainerID is a 12-hex-character identifier derived from 6 random bytes.
type ContainerID string

// Short returns the first 6 characters, used to name veth/netns resources
// (e.g. "ns-veth-<id[0:6]>").
func (id ContainerID) Short() string {
	s := string(id)
	if len(s) < 6 {
		return s
	}
	return s[:6]
}

func (id ContainerID) String() string { return string(id) }

// ImageRef is a parsed "name[:tag]" reference.
type ImageRef struct {
	Name string
	Tag  string
}

func (r ImageRef) String() string { return r.Name + ":" + r.Tag }

// ImageHash is the 12-character content identifier derived from a
// manifest's config digest (the bytes after "sha256:", truncated to 12).
type ImageHash string

func (h ImageHash) String() string { return string(h) }

// Manifest is the subset of a Docker/OCI schema-v2 manifest rocker needs:
// the config digest and the ordered list of layer digests.
type Manifest struct {
	SchemaVersion int
	MediaType     string
	ConfigDigest  string
	LayerDigests  []string // full "sha256:..." digests, manifest order
}

// FromOCIManifest adapts an OCI image-spec manifest into rocker's Manifest,
// failing any schemaVersion other than 2. The media type is copied through
// but not checked.
func FromOCIManifest(m v1.Manifest) (Manifest, bool) {
	if m.SchemaVersion != 2 {
		return Manifest{}, false
	}
	layers := make([]string, 0, len(m.Layers))
	for _, l := range m.Layers {
		layers = append(layers, string(l.Digest))
	}
	return Manifest{
		SchemaVersion: m.SchemaVersion,
		MediaType:     string(m.MediaType),
		ConfigDigest:  string(m.Config.Digest),
		LayerDigests:  layers,
	}, true
}

// Container describes a live container as reconstructed from the
// filesystem + store at ps/exec time.
type Container struct {
	ID        ContainerID
	ImageName string
	ImageHash ImageHash
	Command   string
	PID       int
}

// Image describes a cached image as reconstructed from the images
// directory + store at "images" list time.
type Image struct {
	Hash ImageHash
	Name string
	Tag  string
}

// ResourceLimits is the optional set of cgroup limits a "run" may request.
type ResourceLimits struct {
	Memory    string // e.g. "512M", parsed by cgroup.ParseMemoryLimit
	CPUs      float64
	HasCPUs   bool
	PidsLimit int
	HasPids   bool
}
