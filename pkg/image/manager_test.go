package image

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	manifest      types.Manifest
	blobs         map[string][]byte
	fetchCalls    int32
	authCalls     int32
	manifestCalls int32
}

func (f *fakeClient) Authenticate(ctx context.Context, ref types.ImageRef) (string, error) {
	atomic.AddInt32(&f.authCalls, 1)
	return "token", nil
}

func (f *fakeClient) FetchManifest(ctx context.Context, ref types.ImageRef, token string) (types.Manifest, error) {
	atomic.AddInt32(&f.manifestCalls, 1)
	return f.manifest, nil
}

func (f *fakeClient) FetchBlob(ctx context.Context, ref types.ImageRef, digest string, token string) (io.ReadCloser, error) {
	atomic.AddInt32(&f.fetchCalls, 1)
	data := f.blobs[digest]
	return io.NopCloser(bytes.NewReader(data)), nil
}

func buildLayerBlob(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestEnsureDownloadsAndExtractsLayers(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	layer1 := buildLayerBlob(t, map[string]string{"etc/hostname": "base\n"})
	layer2 := buildLayerBlob(t, map[string]string{"usr/bin/app": "#!/bin/sh\n"})

	client := &fakeClient{
		manifest: types.Manifest{
			SchemaVersion: 2,
			ConfigDigest:  "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			LayerDigests: []string{
				"sha256:111111111111111111111111111111",
				"sha256:222222222222222222222222222222",
			},
		},
		blobs: map[string][]byte{
			"sha256:111111111111111111111111111111": layer1,
			"sha256:222222222222222222222222222222": layer2,
		},
	}

	mgr := NewManager(dir, client, s)
	ref := types.ImageRef{Name: "library/alpine", Tag: "latest"}

	hash, manifest, err := mgr.Ensure(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, types.ImageHash("aaaaaaaaaaaa"), hash)
	require.Len(t, manifest.LayerDigests, 2)

	fs1 := filepath.Join(dir, "images", string(hash), "111111111111", "fs", "etc", "hostname")
	fs2 := filepath.Join(dir, "images", string(hash), "222222222222", "fs", "usr", "bin", "app")
	_, err = os.Stat(fs1)
	require.NoError(t, err)
	_, err = os.Stat(fs2)
	require.NoError(t, err)

	downloaded, err := s.IsImageDownloaded(hash)
	require.NoError(t, err)
	require.True(t, downloaded)

	// Second ensure on the same ref must not fetch any blob again.
	_, _, err = mgr.Ensure(context.Background(), ref)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&client.fetchCalls))
}

func TestEnsureRejectsNonSchemaV2Manifest(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	client := &fakeClient{manifest: types.Manifest{SchemaVersion: 1}}
	mgr := NewManager(dir, client, s)

	_, _, err = mgr.Ensure(context.Background(), types.ImageRef{Name: "library/alpine", Tag: "latest"})
	require.Error(t, err)
}

func TestListEnumeratesDownloadedImages(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	hash := types.ImageHash("deadbeefcafe")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images", string(hash)), 0755))
	require.NoError(t, s.MarkImageDownloaded(hash, "library/alpine:latest"))

	mgr := NewManager(dir, &fakeClient{}, s)
	list, err := mgr.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, hash, list[0].Hash)
	require.Equal(t, "library/alpine", list[0].Name)
	require.Equal(t, "latest", list[0].Tag)
}
