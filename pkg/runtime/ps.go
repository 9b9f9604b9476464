package runtime

import (
	"os"

	"github.com/cuemby/rocker/pkg/types"
)

// List enumerates the live container set by joining the containers
// directory with the store's bookkeeping keys.
func (rt *Runtime) List() ([]types.Container, error) {
	entries, err := os.ReadDir(rt.Paths.ContainersDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []types.Container
	for _, e := range entries {
		if c, err := rt.Store.GetContainer(types.ContainerID(e.Name())); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}
