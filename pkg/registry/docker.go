package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cuemby/rocker/pkg/types"
)

const (
	defaultRegistryBase = "https://registry-1.docker.io"
	defaultAuthBase     = "https://auth.docker.io"
	defaultService      = "registry-1.docker.io"
)

// DockerClient talks to a Docker Hub v2 registry: it gets an anonymous
// (or basic-auth-upgraded) bearer token from the auth server, then
// fetches manifests and blobs from the registry server.
type DockerClient struct {
	HTTPClient *http.Client
	Username   string
	Password   string

	// RegistryBase and AuthBase default to Docker Hub's servers; tests
	// override them to point at an httptest server.
	RegistryBase string
	AuthBase     string
}

// NewDockerClient returns a client that authenticates anonymously unless
// username/password are non-empty.
func NewDockerClient(username, password string) *DockerClient {
	return &DockerClient{
		HTTPClient:   http.DefaultClient,
		Username:     username,
		Password:     password,
		RegistryBase: defaultRegistryBase,
		AuthBase:     defaultAuthBase,
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (c *DockerClient) Authenticate(ctx context.Context, ref types.ImageRef) (string, error) {
	q := url.Values{}
	q.Set("service", defaultService)
	q.Set("scope", fmt.Sprintf("repository:%s:pull", ref.Name))

	reqURL := fmt.Sprintf("%s/token?%s", c.AuthBase, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry: token request failed: %s", resp.Status)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("registry: decoding token response: %w", err)
	}
	return tok.Token, nil
}

func (c *DockerClient) FetchManifest(ctx context.Context, ref types.ImageRef, token string) (types.Manifest, error) {
	reqURL := fmt.Sprintf("%s/v2/%s/manifests/%s", c.RegistryBase, ref.Name, ref.Tag)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.Manifest{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.docker.distribution.manifest.v2+json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return types.Manifest{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.Manifest{}, fmt.Errorf("registry: manifest request failed: %s: %s", resp.Status, body)
	}

	var m v1.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return types.Manifest{}, fmt.Errorf("registry: decoding manifest: %w", err)
	}

	manifest, ok := types.FromOCIManifest(m)
	if !ok {
		return types.Manifest{}, fmt.Errorf("registry: manifest is not schema v2")
	}
	return manifest, nil
}

func (c *DockerClient) FetchBlob(ctx context.Context, ref types.ImageRef, digest string, token string) (io.ReadCloser, error) {
	reqURL := fmt.Sprintf("%s/v2/%s/blobs/%s", c.RegistryBase, ref.Name, digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("registry: blob request for %s failed: %s: %s", digest, resp.Status, body)
	}
	return resp.Body, nil
}
