// Package numa discovers the NUMA topology and samples per-process page
// placement from numa_maps.
package numa

import (
	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/parse"
)

// Collector reads NUMA data through a host.System.
type Collector struct {
	sys    host.System
	policy parse.ClassifyPolicy
}

// NewCollector returns a collector that classifies nodes with policy.
func NewCollector(sys host.System, policy parse.ClassifyPolicy) *Collector {
	return &Collector{sys: sys, policy: policy}
}

// SetPolicy replaces the classification policy used by later Topology calls.
func (c *Collector) SetPolicy(policy parse.ClassifyPolicy) {
	c.policy = policy
}
