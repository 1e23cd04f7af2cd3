//go:build !linux
// +build !linux

package numa

import (
	"fmt"

	"github.com/srodi/nv-swaptop/pkg/types"
)

var errUnsupported = fmt.Errorf("numa requires linux: %w", types.ErrUnavailable)

// Topology is not available on this platform.
func (c *Collector) Topology(gpus []types.GpuDevice) ([]types.NumaNode, error) {
	return nil, errUnsupported
}

// ProcessMaps is not available on this platform.
func (c *Collector) ProcessMaps(pids []int, nodes []types.NumaNode) ([]types.ProcessNumaDistribution, error) {
	return nil, errUnsupported
}
