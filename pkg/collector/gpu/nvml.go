//go:build nvml
// +build nvml

package gpu

import (
	"context"
	"fmt"
	"math"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/srodi/nv-swaptop/pkg/collector/host"
	"github.com/srodi/nv-swaptop/pkg/types"
)

func newBackend(sys host.System) backend {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return &smiBackend{sys: sys}
	}
	return &nvmlBackend{}
}

// nvmlBackend reads the driver directly. NVML calls do not take a context;
// they return quickly, so ctx is only checked between devices.
type nvmlBackend struct{}

func nvmlError(what string, ret nvml.Return) error {
	return fmt.Errorf("nvml %s: %s: %w", what, nvml.ErrorString(ret), types.ErrCommandFailed)
}

func (b *nvmlBackend) devices(ctx context.Context) ([]types.GpuDevice, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, nvmlError("device count", ret)
	}
	if count == 0 {
		return nil, fmt.Errorf("nvml: no devices: %w", types.ErrUnavailable)
	}

	devices := make([]types.GpuDevice, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("nvml: %w: %w", types.ErrTimeout, err)
		}
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}
		name, _ := device.GetName()
		uuid, _ := device.GetUUID()
		mem, ret := device.GetMemoryInfo()
		if ret != nvml.SUCCESS {
			continue
		}
		temp := -1
		if t, ret := device.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
			temp = int(t)
		}
		busID := ""
		if pci, ret := device.GetPciInfo(); ret == nvml.SUCCESS {
			busID = fmt.Sprintf("%08X:%02X:%02X.0", pci.Domain, pci.Bus, pci.Device)
		}
		devices = append(devices, types.GpuDevice{
			Index:       i,
			Name:        name,
			UUID:        uuid,
			TotalBytes:  mem.Total,
			UsedBytes:   mem.Used,
			FreeBytes:   mem.Free,
			Temperature: temp,
			PCIBusID:    busID,
		})
	}
	return devices, nil
}

func (b *nvmlBackend) processes(ctx context.Context, devices []types.GpuDevice) ([]types.GpuProcess, error) {
	var procs []types.GpuProcess
	for _, dev := range devices {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("nvml: %w: %w", types.ErrTimeout, err)
		}
		device, ret := nvml.DeviceGetHandleByIndex(dev.Index)
		if ret != nvml.SUCCESS {
			continue
		}
		infos, ret := device.GetComputeRunningProcesses()
		if ret != nvml.SUCCESS {
			continue
		}
		for _, info := range infos {
			proc, ok := processFromInfo(info, dev.Index)
			if !ok {
				continue
			}
			proc.Name, _ = nvml.SystemGetProcessName(proc.PID)
			procs = append(procs, proc)
		}
	}
	return procs, nil
}

// processFromInfo converts one NVML process entry. Entries whose memory the
// driver cannot report carry NVML_VALUE_NOT_AVAILABLE and are skipped, like
// an [N/A] row from nvidia-smi.
func processFromInfo(info nvml.ProcessInfo, gpuIndex int) (types.GpuProcess, bool) {
	if info.Pid == 0 || info.UsedGpuMemory == math.MaxUint64 {
		return types.GpuProcess{}, false
	}
	return types.GpuProcess{
		PID:       int(info.Pid),
		GPUIndex:  gpuIndex,
		UsedBytes: info.UsedGpuMemory,
	}, true
}

func (b *nvmlBackend) close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return nvmlError("shutdown", ret)
	}
	return nil
}
