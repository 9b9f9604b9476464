package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/rocker/pkg/types"
)

func TestAuthenticateReturnsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "repository:library/alpine:pull", r.URL.Query().Get("scope"))
		_ = json.NewEncoder(w).Encode(tokenResponse{Token: "abc123"})
	}))
	defer srv.Close()

	client := &DockerClient{HTTPClient: srv.Client(), AuthBase: srv.URL}
	token, err := client.Authenticate(context.Background(), types.ImageRef{Name: "library/alpine", Tag: "latest"})
	require.NoError(t, err)
	require.Equal(t, "abc123", token)
}

func TestAuthenticateSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "bob", user)
		require.Equal(t, "hunter2", pass)
		_ = json.NewEncoder(w).Encode(tokenResponse{Token: "xyz"})
	}))
	defer srv.Close()

	client := &DockerClient{HTTPClient: srv.Client(), AuthBase: srv.URL, Username: "bob", Password: "hunter2"}
	_, err := client.Authenticate(context.Background(), types.ImageRef{Name: "library/alpine", Tag: "latest"})
	require.NoError(t, err)
}

func TestFetchManifestParsesSchemaV2(t *testing.T) {
	manifest := v1.Manifest{
		SchemaVersion: 2,
		MediaType:     "application/vnd.docker.distribution.manifest.v2+json",
		Config:        v1.Descriptor{Digest: "sha256:configdigestabcdef1234567890"},
		Layers: []v1.Descriptor{
			{Digest: "sha256:layerone1234567890"},
			{Digest: "sha256:layertwo1234567890"},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "/v2/library/alpine/manifests/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/vnd.docker.distribution.manifest.v2+json")
		_ = json.NewEncoder(w).Encode(manifest)
	}))
	defer srv.Close()

	client := &DockerClient{HTTPClient: srv.Client(), RegistryBase: srv.URL}
	got, err := client.FetchManifest(context.Background(), types.ImageRef{Name: "library/alpine", Tag: "latest"}, "test-token")
	require.NoError(t, err)
	require.Equal(t, 2, got.SchemaVersion)
	require.Equal(t, "sha256:configdigestabcdef1234567890", got.ConfigDigest)
	require.Len(t, got.LayerDigests, 2)
}

func TestFetchManifestRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := &DockerClient{HTTPClient: srv.Client(), RegistryBase: srv.URL}
	_, err := client.FetchManifest(context.Background(), types.ImageRef{Name: "library/missing", Tag: "latest"}, "tok")
	require.Error(t, err)
}

func TestFetchBlobStreamsBody(t *testing.T) {
	const payload = "blob-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/library/alpine/blobs/sha256:deadbeef", r.URL.Path)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := &DockerClient{HTTPClient: srv.Client(), RegistryBase: srv.URL}
	rc, err := client.FetchBlob(context.Background(), types.ImageRef{Name: "library/alpine", Tag: "latest"}, "sha256:deadbeef", "tok")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, payload, string(body))
}
