package runtime

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
)

// NewContainerID generates a fresh 12-hex-character container id from 6
// random bytes, rerolling if it collides with an id already recorded in
// s (following the final, collision-aware generation behavior rather
// than an earlier draft that didn't check for reuse).
func NewContainerID(s *store.Store) (types.ContainerID, error) {
	for {
		var b [6]byte
		if _, err := rand.Read(b[:]); err != nil {
			return "", rockerr.New("runtime.NewContainerID", rockerr.KindNamespaceSetupFailed, err)
		}
		id := types.ContainerID(hex.EncodeToString(b[:]))

		exists, err := s.ContainerExists(id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
}
