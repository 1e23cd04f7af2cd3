package gpu

import (
	"context"
	"fmt"
	"sort"

	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/parse"
	"github.com/srodi/nv-swaptop/pkg/types"
)

const smiBinary = "nvidia-smi"

var (
	deviceArgs  = []string{"--query-gpu=" + parse.GPUDeviceFields, "--format=csv,noheader,nounits"}
	processArgs = []string{"--query-compute-apps=" + parse.GPUProcessFields, "--format=csv,noheader,nounits"}
)

// smiBackend runs nvidia-smi and parses its CSV output.
type smiBackend struct {
	sys host.System
}

func (b *smiBackend) devices(ctx context.Context) ([]types.GpuDevice, error) {
	out, err := b.sys.RunCommand(ctx, smiBinary, deviceArgs...)
	if err != nil {
		return nil, err
	}
	devices, _, err := parse.ParseGPUDeviceCSV(string(out))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", smiBinary, err)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Index < devices[j].Index })
	return devices, nil
}

func (b *smiBackend) processes(ctx context.Context, devices []types.GpuDevice) ([]types.GpuProcess, error) {
	out, err := b.sys.RunCommand(ctx, smiBinary, processArgs...)
	if err != nil {
		return nil, err
	}
	procs, _, err := parse.ParseGPUProcessCSV(string(out), BusIndex(devices))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", smiBinary, err)
	}
	return procs, nil
}

func (b *smiBackend) close() error { return nil }

// BusIndex maps each device's normalised PCI bus id to its index.
func BusIndex(devices []types.GpuDevice) map[string]int {
	index := make(map[string]int, len(devices))
	for _, dev := range devices {
		if dev.PCIBusID != "" {
			index[parse.NormalizePCIBusID(dev.PCIBusID)] = dev.Index
		}
	}
	return index
}
