// Package image resolves image references against a registry, downloads
// and extracts their layers into content-addressed directories, and
// tracks which images are cached locally.
package image

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cuemby/rocker/pkg/registry"
	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

// Manager resolves image references, ensures their layers are present on
// disk, and answers "images" listing queries.
type Manager struct {
	imagesDir string
	tmpDir    string
	client    registry.Client
	store     *store.Store

	mu    sync.Mutex
	locks map[types.ImageHash]*sync.Mutex
}

// NewManager builds a Manager rooted at dataDir ("<dataDir>/images" and
// "<dataDir>/tmp"), talking to client and bookkeeping through s.
func NewManager(dataDir string, client registry.Client, s *store.Store) *Manager {
	return &Manager{
		imagesDir: filepath.Join(dataDir, "images"),
		tmpDir:    filepath.Join(dataDir, "tmp"),
		client:    client,
		store:     s,
		locks:     make(map[types.ImageHash]*sync.Mutex),
	}
}

func (m *Manager) lockFor(hash types.ImageHash) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[hash]
	if !ok {
		l = &sync.Mutex{}
		m.locks[hash] = l
	}
	return l
}

// Ensure resolves ref, fetches its manifest, and makes sure every layer is
// extracted under <imagesDir>/<hash>. Authentication and the manifest
// fetch always happen; if the image was already fully downloaded it
// returns the cached result without fetching any blob.
func (m *Manager) Ensure(ctx context.Context, ref types.ImageRef) (types.ImageHash, types.Manifest, error) {
	token, err := m.client.Authenticate(ctx, ref)
	if err != nil {
		return "", types.Manifest{}, rockerr.New("image.Ensure", rockerr.KindImageFetchFailed, err)
	}

	manifest, err := m.client.FetchManifest(ctx, ref, token)
	if err != nil {
		return "", types.Manifest{}, rockerr.New("image.Ensure", rockerr.KindInvalidManifest, err)
	}
	if manifest.SchemaVersion != 2 {
		return "", types.Manifest{}, rockerr.New("image.Ensure", rockerr.KindInvalidManifest, nil)
	}

	hash := Hash(manifest.ConfigDigest)

	lock := m.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()

	downloaded, err := m.store.IsImageDownloaded(hash)
	if err != nil {
		return "", types.Manifest{}, err
	}
	if downloaded {
		return hash, manifest, nil
	}

	if err := m.download(ctx, ref, token, hash, manifest); err != nil {
		return "", types.Manifest{}, err
	}

	if err := m.store.MarkImageDownloaded(hash, ref.String()); err != nil {
		return "", types.Manifest{}, err
	}

	return hash, manifest, nil
}

func (m *Manager) download(ctx context.Context, ref types.ImageRef, token string, hash types.ImageHash, manifest types.Manifest) error {
	tmp := filepath.Join(m.tmpDir, string(hash))
	final := filepath.Join(m.imagesDir, string(hash))

	cleanupTmp := func() { _ = os.RemoveAll(tmp) }
	cleanupFinal := func() { _ = os.RemoveAll(final) }

	if err := os.MkdirAll(tmp, 0755); err != nil {
		return rockerr.New("image.download", rockerr.KindImageFetchFailed, err)
	}
	defer cleanupTmp()

	g, gctx := errgroup.WithContext(ctx)
	blobPaths := make([]string, len(manifest.LayerDigests))
	for i, digest := range manifest.LayerDigests {
		i, digest := i, digest
		g.Go(func() error {
			path := filepath.Join(tmp, LayerDigest(digest)+".tar.gz")
			if err := m.fetchBlobTo(gctx, ref, digest, token, path); err != nil {
				return err
			}
			blobPaths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cleanupFinal()
		return rockerr.New("image.download", rockerr.KindImageFetchFailed, err)
	}

	// Layers extract in manifest order: overlayfs lowerdir priority
	// depends on this order at mount time (see runtime.BuildLowerDirs).
	for i, digest := range manifest.LayerDigests {
		layerDir := filepath.Join(final, LayerDigest(digest), "fs")
		if err := extractLayer(blobPaths[i], layerDir); err != nil {
			cleanupFinal()
			return rockerr.New("image.download", rockerr.KindImageFetchFailed, err)
		}
	}

	return nil
}

func (m *Manager) fetchBlobTo(ctx context.Context, ref types.ImageRef, digest, token, destPath string) error {
	rc, err := m.client.FetchBlob(ctx, ref, digest, token)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, rc)
	return err
}

func extractLayer(tarGzPath, destDir string) error {
	f, err := os.Open(tarGzPath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		case tar.TypeSymlink:
			_ = os.Symlink(hdr.Linkname, target)
		}
	}
}

// List enumerates cached images by joining the images directory's hash
// subdirectories with the store's downloaded_images records.
func (m *Manager) List() ([]types.Image, error) {
	entries, err := os.ReadDir(m.imagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]types.Image, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		hash := types.ImageHash(e.Name())
		ref, ok, err := m.store.GetDownloadedImageRef(hash)
		if err != nil || !ok {
			continue
		}
		name, tag := ref, "latest"
		if idx := strings.LastIndex(ref, ":"); idx != -1 {
			name, tag = ref[:idx], ref[idx+1:]
		}
		out = append(out, types.Image{Hash: hash, Name: name, Tag: tag})
	}
	return out, nil
}

// Resolve turns a "name[:tag]" reference into the hash of a cached image
// without ever touching the registry: it parses the reference with
// ParseRef and matches the name and tag against what's already recorded
// in downloaded_images.
func (m *Manager) Resolve(nameOrRef string) (types.ImageHash, error) {
	ref, err := ParseRef(nameOrRef)
	if err != nil {
		return "", err
	}

	images, err := m.List()
	if err != nil {
		return "", err
	}
	for _, img := range images {
		if img.Name == ref.Name && img.Tag == ref.Tag {
			return img.Hash, nil
		}
	}
	return "", rockerr.New("image.Resolve", rockerr.KindInvalidImageName, nil)
}

// Remove deletes hash's on-disk layer tree and its store marker. Callers
// are responsible for checking no running container references hash
// first (ImageInUse).
func (m *Manager) Remove(hash types.ImageHash) error {
	if err := os.RemoveAll(filepath.Join(m.imagesDir, string(hash))); err != nil {
		return rockerr.New("image.Remove", rockerr.KindImageFetchFailed, err)
	}
	return m.store.DeleteImage(hash)
}
