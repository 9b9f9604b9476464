package image

import (
	"strings"

	digest "github.com/opencontainers/go-digest"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
)

// ParseRef parses a "name[:tag]" image reference.
//
// Rules: split on ':'. One token containing '/' defaults its tag to
// "latest". One token without '/' gets prefixed with "library/" and
// defaults its tag to "latest". Two tokens apply the same library/
// prefixing rule to a bare first token. More than one colon fails with
// InvalidImageName ("too many colons").
func ParseRef(raw string) (types.ImageRef, error) {
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 1:
		name := parts[0]
		if !strings.Contains(name, "/") {
			name = "library/" + name
		}
		return types.ImageRef{Name: name, Tag: "latest"}, nil
	case 2:
		name, tag := parts[0], parts[1]
		if !strings.Contains(name, "/") {
			name = "library/" + name
		}
		return types.ImageRef{Name: name, Tag: tag}, nil
	default:
		return types.ImageRef{}, rockerr.New("image.ParseRef", rockerr.KindInvalidImageName, nil)
	}
}

// Hash slices a "sha256:abcdef..." config digest down to its 12-character
// content identifier: the first 12 hex characters of the digest's encoded
// form. Falls back to raw slicing if d doesn't parse as a digest (some
// registries emit malformed or truncated config digests).
func Hash(d string) types.ImageHash {
	return types.ImageHash(shortDigest(d))
}

// LayerDigest slices a layer's digest down to the same 12-char identifier
// used for its on-disk directory name.
func LayerDigest(d string) string {
	return shortDigest(d)
}

func shortDigest(d string) string {
	if parsed, err := digest.Parse(d); err == nil {
		encoded := parsed.Encoded()
		if len(encoded) >= 12 {
			return encoded[:12]
		}
		return encoded
	}
	const prefixLen = len("sha256:")
	if len(d) < prefixLen+12 {
		return d
	}
	return d[prefixLen : prefixLen+12]
}
