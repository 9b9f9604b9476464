package network

import (
	"crypto/rand"
	"fmt"

	"github.com/cuemby/rocker/pkg/rockerr"
	"github.com/cuemby/rocker/pkg/store"
	"github.com/cuemby/rocker/pkg/types"
)

// AllocateIP samples a random 172.28.a.b address and reserves it in s,
// rerolling on collision against used_ip_addresses. There is no bounded
// retry count, matching the address space being large enough in practice
// that a reroll loop is not expected to spin meaningfully.
func AllocateIP(s *store.Store, owner types.ContainerID) (string, error) {
	for {
		var b [2]byte
		if _, err := rand.Read(b[:]); err != nil {
			return "", rockerr.New("network.AllocateIP", rockerr.KindNetworkSetupFailed, err)
		}
		candidate := fmt.Sprintf("172.28.%d.%d", b[0], b[1])

		reserved, err := s.ReserveIP(candidate, owner)
		if err != nil {
			return "", rockerr.New("network.AllocateIP", rockerr.KindNetworkSetupFailed, err)
		}
		if reserved {
			return candidate, nil
		}
	}
}
