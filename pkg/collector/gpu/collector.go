// Package gpu collects NVIDIA device and per-process memory usage. The
// default build shells out to nvidia-smi; building with -tags nvml talks to
// the driver through NVML and falls back to nvidia-smi when NVML cannot be
// initialised.
package gpu

import (
	"context"
	"strings"
	"time"

	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/types"
)

// DefaultTimeout bounds one GPU query.
const DefaultTimeout = 5 * time.Second

type backend interface {
	devices(ctx context.Context) ([]types.GpuDevice, error)
	processes(ctx context.Context, devices []types.GpuDevice) ([]types.GpuProcess, error)
	close() error
}

// Collector queries the GPU driver with a per-call deadline.
type Collector struct {
	sys     host.System
	backend backend
	timeout time.Duration
}

// NewCollector returns a collector for the backend selected at build time.
func NewCollector(sys host.System, timeout time.Duration) *Collector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Collector{sys: sys, backend: newBackend(sys), timeout: timeout}
}

// SetTimeout changes the deadline applied to later queries.
func (c *Collector) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// Devices lists the GPUs ordered by index.
func (c *Collector) Devices() ([]types.GpuDevice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.backend.devices(ctx)
}

// Processes lists compute processes. devices resolves bus ids to indexes.
// Names the driver cannot report are looked up in /proc.
func (c *Collector) Processes(devices []types.GpuDevice) ([]types.GpuProcess, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	procs, err := c.backend.processes(ctx, devices)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string)
	for i := range procs {
		if unknownName(procs[i].Name) {
			procs[i].Name = host.CommForPID(c.sys, procs[i].PID, names)
		}
	}
	return procs, nil
}

// Close releases the driver handle, if any.
func (c *Collector) Close() error {
	return c.backend.close()
}

func unknownName(name string) bool {
	switch strings.TrimSpace(name) {
	case "", "[N/A]", "N/A", "[Not Found]", "[Insufficient Permissions]":
		return true
	}
	return false
}
