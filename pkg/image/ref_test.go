package image

import (
	"testing"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want types.ImageRef
	}{
		{"bare name", "alpine", types.ImageRef{Name: "library/alpine", Tag: "latest"}},
		{"name with slash, no tag", "cuemby/alpine", types.ImageRef{Name: "cuemby/alpine", Tag: "latest"}},
		{"bare name with tag", "alpine:3.19", types.ImageRef{Name: "library/alpine", Tag: "3.19"}},
		{"slash name with tag", "cuemby/alpine:3.19", types.ImageRef{Name: "cuemby/alpine", Tag: "3.19"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRef(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseRefTooManyColons(t *testing.T) {
	_, err := ParseRef("alpine:3.19:extra")
	require.ErrorIs(t, err, rockerr.KindInvalidImageName)
}

func TestHashSlicesConfigDigest(t *testing.T) {
	got := Hash("sha256:0123456789abcdef0123456789abcdef")
	require.Equal(t, types.ImageHash("0123456789ab"), got)
}

func TestLayerDigestSlicesLayerDigest(t *testing.T) {
	got := LayerDigest("sha256:fedcba9876543210fedcba9876543210")
	require.Equal(t, "fedcba987654", got)
}

func TestHashIndependentOfNameAndTag(t *testing.T) {
	a := Hash("sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := Hash("sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.Equal(t, a, b)
}
