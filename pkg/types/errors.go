package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable means the file or command backing a source does not
	// exist on this host. It does not change for the process lifetime.
	ErrUnavailable = errors.New("source unavailable")
	// ErrPermissionDenied means the source exists but cannot be read.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTimeout means a command did not finish within its deadline.
	ErrTimeout = errors.New("collection timed out")
	// ErrCommandFailed means a command ran but exited non-zero.
	ErrCommandFailed = errors.New("command failed")
	// ErrMalformed means the raw data could not be parsed.
	ErrMalformed = errors.New("malformed record")
)

// Source identifies one independently cached data source.
type Source string

const (
	SourceSwap         Source = "swap"
	SourceSwapDevices  Source = "swap_devices"
	SourceNumaTopology Source = "numa_topology"
	SourceNumaMaps     Source = "numa_maps"
	SourceGPUDevices   Source = "gpu_devices"
	SourceGPUProcesses Source = "gpu_processes"
)

// Sources lists every source in refresh order.
var Sources = []Source{
	SourceSwap,
	SourceSwapDevices,
	SourceNumaTopology,
	SourceNumaMaps,
	SourceGPUDevices,
	SourceGPUProcesses,
}

// ErrorKind is the coarse classification of a collection failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnavailable
	KindPermissionDenied
	KindMalformed
	KindTimeout
	KindFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindUnavailable:
		return "unavailable"
	case KindPermissionDenied:
		return "permission denied"
	case KindMalformed:
		return "malformed"
	case KindTimeout:
		return "timeout"
	default:
		return "failed"
	}
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	default:
		return KindFailed
	}
}

// Diagnostic is the last collection failure of a source.
type Diagnostic struct {
	Source Source
	Kind   ErrorKind
	Err    error
	At     time.Time
}

// Message is the short text shown in place of the missing data.
func (d Diagnostic) Message() string {
	switch d.Kind {
	case KindUnavailable:
		switch d.Source {
		case SourceGPUDevices, SourceGPUProcesses:
			return "No NVIDIA GPU detected"
		case SourceNumaTopology, SourceNumaMaps:
			return "NUMA unsupported"
		case SourceSwapDevices:
			return "Swap devices unavailable"
		}
		return fmt.Sprintf("%s unavailable", d.Source)
	case KindPermissionDenied:
		return fmt.Sprintf("Permission denied reading %s", d.Source)
	case KindTimeout:
		return fmt.Sprintf("Timed out collecting %s, showing last known data", d.Source)
	}
	if d.Err != nil {
		return fmt.Sprintf("%s: %v", d.Source, d.Err)
	}
	return string(d.Source)
}
