//go:build !nvml
// +build !nvml

package gpu

import "github.com/srodi/nv-swaptop/pkg/collector/host"

func newBackend(sys host.System) backend {
	return &smiBackend{sys: sys}
}
