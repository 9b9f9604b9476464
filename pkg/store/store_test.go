package store

import (
	"testing"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestImageDownloadedRoundTrip(t *testing.T) {
	s := openTestStore(t)
	hash := types.ImageHash("abc123def456")

	ok, err := s.IsImageDownloaded(hash)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.MarkImageDownloaded(hash, "sha256:deadbeef"))

	ok, err = s.IsImageDownloaded(hash)
	require.NoError(t, err)
	require.True(t, ok)

	list, err := s.ListDownloadedImages()
	require.NoError(t, err)
	require.Equal(t, []types.ImageHash{hash}, list)

	require.NoError(t, s.DeleteImage(hash))
	ok, err = s.IsImageDownloaded(hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetDownloadedImageRef(t *testing.T) {
	s := openTestStore(t)
	hash := types.ImageHash("abc123def456")

	_, ok, err := s.GetDownloadedImageRef(hash)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.MarkImageDownloaded(hash, "library/alpine:latest"))

	ref, ok, err := s.GetDownloadedImageRef(hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "library/alpine:latest", ref)
}

func TestContainerRoundTrip(t *testing.T) {
	s := openTestStore(t)
	id := types.ContainerID("aaaaaabbbbbb")

	exists, err := s.ContainerExists(id)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = s.GetContainer(id)
	require.ErrorIs(t, err, rockerr.KindContainerNotFound)

	require.NoError(t, s.MarkImageDownloaded(types.ImageHash("img000000001"), "library/alpine:latest"))
	require.NoError(t, s.RecordContainer(id, "/bin/sh", types.ImageHash("img000000001"), 4242))

	exists, err = s.ContainerExists(id)
	require.NoError(t, err)
	require.True(t, exists)

	c, err := s.GetContainer(id)
	require.NoError(t, err)
	require.Equal(t, id, c.ID)
	require.Equal(t, "/bin/sh", c.Command)
	require.Equal(t, types.ImageHash("img000000001"), c.ImageHash)
	require.Equal(t, "library/alpine:latest", c.ImageName)
	require.Equal(t, 4242, c.PID)

	list, err := s.ListContainers()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteContainer(id))
	_, err = s.GetContainer(id)
	require.ErrorIs(t, err, rockerr.KindContainerNotFound)
}

func TestGetContainerPartialRecordNotFound(t *testing.T) {
	s := openTestStore(t)
	id := types.ContainerID("partialonly1")
	require.NoError(t, s.put(containerCommandKey(id), []byte("/bin/sh")))

	_, err := s.GetContainer(id)
	require.ErrorIs(t, err, rockerr.KindContainerNotFound)
}

func TestReserveIPRejectsCollision(t *testing.T) {
	s := openTestStore(t)
	ip := "172.28.4.5"

	ok, err := s.ReserveIP(ip, types.ContainerID("c1"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ReserveIP(ip, types.ContainerID("c2"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.ReleaseIP(ip))
	ok, err = s.ReserveIP(ip, types.ContainerID("c2"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVethIPRoundTrip(t *testing.T) {
	s := openTestStore(t)
	veth := "ns-veth-abcdef"

	_, ok, err := s.GetVethIP(veth)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.RecordVethIP(veth, "172.28.1.2"))

	ip, ok, err := s.GetVethIP(veth)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "172.28.1.2", ip)

	require.NoError(t, s.DeleteVethIP(veth))
	_, ok, err = s.GetVethIP(veth)
	require.NoError(t, err)
	require.False(t, ok)
}
