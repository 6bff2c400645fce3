//go:build !nogpu

// Package gpu registers the wgpu compute backend with package compute.
//
// Import it for side effects to let framefx run blur and edge detection
// on the GPU:
//
//	import _ "github.com/gogpu/framefx/gpu"
//
// If the GPU cannot be initialized (no Vulkan/Metal/DX12 available), the
// compute Context falls back to the software backend once and keeps
// using it.
package gpu

import (
	"github.com/gogpu/framefx/compute"
	gpuimpl "github.com/gogpu/framefx/internal/gpu"
)

func init() {
	compute.Register(compute.BackendWGPU, func(cfg compute.Config) compute.Backend {
		return gpuimpl.New(cfg.DeviceProvider)
	})
}
