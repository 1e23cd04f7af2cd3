package parse

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/srodi/nv-swaptop/pkg/types"
)

// Column lists for nvidia-smi. The parsers below expect exactly this order,
// produced with --format=csv,noheader,nounits.
const (
	GPUDeviceFields  = "index,name,memory.total,memory.used,memory.free,temperature.gpu,pci.bus_id,uuid"
	GPUProcessFields = "gpu_bus_id,pid,process_name,used_memory"
)

const mib = 1 << 20

// ParseGPUDeviceCSV parses the device query. Sizes are MiB, with or without a
// " MiB" suffix. A header row is tolerated. Rows with an unusable numeric
// field are skipped and reported, even when that leaves no devices. Only a
// failure of the CSV reader itself is returned as an error.
func ParseGPUDeviceCSV(text string) ([]types.GpuDevice, []RowError, error) {
	var devices []types.GpuDevice
	var skipped []RowError

	err := eachRecord(text, func(row int, line string, fields []string) {
		if strings.EqualFold(fields[0], "index") {
			return
		}
		dev, err := gpuDevice(fields)
		if err != nil {
			skipped = append(skipped, RowError{Row: row, Line: line, Err: err})
			return
		}
		devices = append(devices, dev)
	})
	if err != nil {
		return nil, nil, structural("gpu devices", "%v", err)
	}
	return devices, skipped, nil
}

func gpuDevice(fields []string) (types.GpuDevice, error) {
	if len(fields) < 8 {
		return types.GpuDevice{}, malformedField("columns", strconv.Itoa(len(fields)))
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return types.GpuDevice{}, malformedField("index", fields[0])
	}
	total, err := mebibytes(fields[2])
	if err != nil {
		return types.GpuDevice{}, malformedField("memory.total", fields[2])
	}
	used, err := mebibytes(fields[3])
	if err != nil {
		return types.GpuDevice{}, malformedField("memory.used", fields[3])
	}
	free, err := mebibytes(fields[4])
	if err != nil {
		if !notAvailable(fields[4]) {
			return types.GpuDevice{}, malformedField("memory.free", fields[4])
		}
		free = 0
		if total > used {
			free = total - used
		}
	}
	temp := -1
	if !notAvailable(fields[5]) {
		if temp, err = strconv.Atoi(fields[5]); err != nil {
			return types.GpuDevice{}, malformedField("temperature.gpu", fields[5])
		}
	}
	return types.GpuDevice{
		Index:       index,
		Name:        fields[1],
		TotalBytes:  total,
		UsedBytes:   used,
		FreeBytes:   free,
		Temperature: temp,
		PCIBusID:    NormalizePCIBusID(fields[6]),
		UUID:        fields[7],
	}, nil
}

// ParseGPUProcessCSV parses the compute-apps query. The first column
// identifies the GPU either by bus id, resolved through busToIndex, or by a
// plain index. Processes on a GPU that cannot be resolved keep GPUIndex -1.
// A process name containing commas is rejoined as nvidia-smi printed it.
// Rows with an unusable field are skipped and reported.
func ParseGPUProcessCSV(text string, busToIndex map[string]int) ([]types.GpuProcess, []RowError, error) {
	var procs []types.GpuProcess
	var skipped []RowError

	err := eachRecord(text, func(row int, line string, fields []string) {
		if strings.EqualFold(fields[0], "gpu_bus_id") || strings.EqualFold(fields[0], "gpu_uuid") {
			return
		}
		if len(fields) == 1 && strings.HasPrefix(strings.ToLower(fields[0]), "no running") {
			return
		}
		proc, err := gpuProcess(fields, busToIndex)
		if err != nil {
			skipped = append(skipped, RowError{Row: row, Line: line, Err: err})
			return
		}
		procs = append(procs, proc)
	})
	if err != nil {
		return nil, nil, structural("gpu processes", "%v", err)
	}
	return procs, skipped, nil
}

func gpuProcess(fields []string, busToIndex map[string]int) (types.GpuProcess, error) {
	if len(fields) < 4 {
		return types.GpuProcess{}, malformedField("columns", strconv.Itoa(len(fields)))
	}
	last := len(fields) - 1
	pid, err := strconv.Atoi(fields[1])
	if err != nil || pid <= 0 {
		return types.GpuProcess{}, malformedField("pid", fields[1])
	}
	used, err := mebibytes(fields[last])
	if err != nil {
		return types.GpuProcess{}, malformedField("used_memory", fields[last])
	}
	return types.GpuProcess{
		PID:       pid,
		Name:      strings.Join(fields[2:last], ", "),
		GPUIndex:  resolveGPU(fields[0], busToIndex),
		UsedBytes: used,
	}, nil
}

func resolveGPU(id string, busToIndex map[string]int) int {
	if index, err := strconv.Atoi(id); err == nil && index >= 0 {
		return index
	}
	if index, ok := busToIndex[NormalizePCIBusID(id)]; ok {
		return index
	}
	return -1
}

// NormalizePCIBusID converts nvidia-smi's "00000000:01:00.0" into the sysfs
// form "0000:01:00.0". Ids already in sysfs form are only lower-cased.
func NormalizePCIBusID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	domain, rest, ok := strings.Cut(id, ":")
	if !ok {
		return id
	}
	if len(domain) > 4 {
		domain = domain[len(domain)-4:]
	}
	return domain + ":" + rest
}

// eachRecord walks CSV records, reporting each with its 1-based line number
// and the raw line. Empty lines are skipped.
func eachRecord(text string, fn func(row int, line string, fields []string)) error {
	lines := strings.Split(text, "\n")
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return err
		}
		row, _ := r.FieldPos(0)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		line := ""
		if row > 0 && row <= len(lines) {
			line = lines[row-1]
		}
		fn(row, line, fields)
	}
}

// mebibytes parses "1024" or "1024 MiB" into bytes.
func mebibytes(value string) (uint64, error) {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "MiB"))
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mib, nil
}

func notAvailable(value string) bool {
	switch strings.TrimSpace(value) {
	case "[N/A]", "N/A", "[Not Supported]", "":
		return true
	}
	return false
}
