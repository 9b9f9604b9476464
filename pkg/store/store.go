// Package store is rocker's bookkeeping layer: a single-bucket, flat
// key-value keyspace backed by bbolt. Each rocker command invocation
// opens its own handle against the same on-disk file (the re-exec'd
// container and exec children never open it), so nothing here may assume
// it is the only writer alive at a given instant.
package store

import (
	"bytes"
	"path/filepath"
	"strconv"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("rocker")

// Store is a handle onto rocker's bbolt-backed bookkeeping database.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the database at <dataDir>/rocker.db.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "rocker.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, rockerr.New("store.Open", rockerr.KindStoreUnavailable, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, rockerr.New("store.Open", rockerr.KindStoreUnavailable, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
}

func (s *Store) get(key string) ([]byte, bool, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			val = append([]byte(nil), v...)
		}
		return nil
	})
	return val, val != nil, err
}

func (s *Store) delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func (s *Store) keysWithPrefix(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k[len(p):]))
		}
		return nil
	})
	return keys, err
}

// MarkImageDownloaded records that hash has a complete local rootfs,
// storing the "name:tag" reference it was pulled as so image listing can
// show a repository and tag without re-reading anything from disk.
func (s *Store) MarkImageDownloaded(hash types.ImageHash, ref string) error {
	return s.put(downloadedImageKey(hash), []byte(ref))
}

// IsImageDownloaded reports whether hash was previously marked downloaded.
func (s *Store) IsImageDownloaded(hash types.ImageHash) (bool, error) {
	_, ok, err := s.get(downloadedImageKey(hash))
	return ok, err
}

// GetDownloadedImageRef returns the "name:tag" string MarkImageDownloaded
// stored for hash, used by image listing to show a repository and tag.
func (s *Store) GetDownloadedImageRef(hash types.ImageHash) (string, bool, error) {
	v, ok, err := s.get(downloadedImageKey(hash))
	if err != nil || !ok {
		return "", ok, err
	}
	return string(v), true, nil
}

// ListDownloadedImages returns every image hash marked downloaded.
func (s *Store) ListDownloadedImages() ([]types.ImageHash, error) {
	suffixes, err := s.keysWithPrefix(prefixDownloadedImages)
	if err != nil {
		return nil, err
	}
	out := make([]types.ImageHash, 0, len(suffixes))
	for _, suf := range suffixes {
		out = append(out, types.ImageHash(suf))
	}
	return out, nil
}

// DeleteImage removes hash's downloaded marker (used by rmi).
func (s *Store) DeleteImage(hash types.ImageHash) error {
	return s.delete(downloadedImageKey(hash))
}

// RecordContainer persists the three keys a running container needs to be
// reconstructed by ps/exec: its command, its image hash, and its PID.
func (s *Store) RecordContainer(id types.ContainerID, command string, hash types.ImageHash, pid int) error {
	if err := s.put(containerCommandKey(id), []byte(command)); err != nil {
		return err
	}
	if err := s.put(containerImageHashKey(id), []byte(hash)); err != nil {
		return err
	}
	return s.put(containerPIDKey(id), []byte(strconv.Itoa(pid)))
}

// GetContainer reconstructs a Container from its three bookkeeping keys.
// Returns rockerr.KindContainerNotFound if any of the three keys is absent.
func (s *Store) GetContainer(id types.ContainerID) (types.Container, error) {
	cmd, ok, err := s.get(containerCommandKey(id))
	if err != nil {
		return types.Container{}, err
	}
	if !ok {
		return types.Container{}, rockerr.New("store.GetContainer", rockerr.KindContainerNotFound, nil)
	}
	hash, ok, err := s.get(containerImageHashKey(id))
	if err != nil {
		return types.Container{}, err
	}
	if !ok {
		return types.Container{}, rockerr.New("store.GetContainer", rockerr.KindContainerNotFound, nil)
	}
	pidBytes, ok, err := s.get(containerPIDKey(id))
	if err != nil {
		return types.Container{}, err
	}
	if !ok {
		return types.Container{}, rockerr.New("store.GetContainer", rockerr.KindContainerNotFound, nil)
	}
	pid, err := strconv.Atoi(string(pidBytes))
	if err != nil {
		return types.Container{}, rockerr.New("store.GetContainer", rockerr.KindContainerNotFound, err)
	}

	imageHash := types.ImageHash(hash)
	imageName, _, err := s.GetDownloadedImageRef(imageHash)
	if err != nil {
		return types.Container{}, err
	}

	return types.Container{
		ID:        id,
		ImageName: imageName,
		ImageHash: imageHash,
		Command:   string(cmd),
		PID:       pid,
	}, nil
}

// ListContainers reconstructs every container known to the store, skipping
// any id whose bookkeeping keys are incomplete rather than failing outright.
func (s *Store) ListContainers() ([]types.Container, error) {
	ids, err := s.keysWithPrefix(prefixContainerCommands)
	if err != nil {
		return nil, err
	}
	out := make([]types.Container, 0, len(ids))
	for _, idStr := range ids {
		c, err := s.GetContainer(types.ContainerID(idStr))
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// DeleteContainer removes all bookkeeping keys for id (teardown).
func (s *Store) DeleteContainer(id types.ContainerID) error {
	var acc rockerr.FirstError
	acc.Add(s.delete(containerCommandKey(id)))
	acc.Add(s.delete(containerImageHashKey(id)))
	acc.Add(s.delete(containerPIDKey(id)))
	return acc.Err()
}

// ContainerExists reports whether id has a recorded command key, used for
// the container-id collision check/reroll when allocating a new id.
func (s *Store) ContainerExists(id types.ContainerID) (bool, error) {
	_, ok, err := s.get(containerCommandKey(id))
	return ok, err
}

// ReserveIP records that ip is in use by container id, failing the write if
// ip is already taken so the caller can reroll and retry.
func (s *Store) ReserveIP(ip string, id types.ContainerID) (bool, error) {
	_, taken, err := s.get(usedIPKey(ip))
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}
	if err := s.put(usedIPKey(ip), []byte(id)); err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseIP frees ip, e.g. during container teardown.
func (s *Store) ReleaseIP(ip string) error {
	return s.delete(usedIPKey(ip))
}

// RecordVethIP remembers the IP assigned to a veth endpoint so it can be
// looked back up by GetVethIP without re-querying netlink.
func (s *Store) RecordVethIP(vethName, ip string) error {
	return s.put(vethIPKey(vethName), []byte(ip))
}

// GetVethIP returns the IP previously recorded for vethName.
func (s *Store) GetVethIP(vethName string) (string, bool, error) {
	v, ok, err := s.get(vethIPKey(vethName))
	return string(v), ok, err
}

// DeleteVethIP removes the veth->IP mapping during teardown.
func (s *Store) DeleteVethIP(vethName string) error {
	return s.delete(vethIPKey(vethName))
}
