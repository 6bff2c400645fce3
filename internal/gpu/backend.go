// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package gpu implements the wgpu compute backend for framefx surfaces.
package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/framefx/compute"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

const (
	fenceTimeout = 5 * time.Second

	// convolveWG is the 2D workgroup edge of the convolution shader.
	convolveWG = 8

	// magnitudeWG is the 1D workgroup size of the magnitude shader.
	magnitudeWG = 256

	// maxGroupsPerDim is the WebGPU limit on workgroups per dimension.
	maxGroupsPerDim = 65535

	tapCount = 9
	tapSize  = 16 // i32 dx, i32 dy, f32 w, f32 pad
)

// errNoAdapter is returned when no GPU adapter can be enumerated.
var errNoAdapter = errors.New("wgpu: no GPU adapters found")

// Backend runs surface convolutions as wgpu compute passes.
// It implements compute.Backend.
type Backend struct {
	mu sync.Mutex

	provider any

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	convolve  pipeline
	magnitude pipeline

	externalDevice bool // true when using a shared device (don't destroy on Close)
}

var _ compute.Backend = (*Backend)(nil)

// New creates an uninitialized backend. provider may be nil or a
// gpucontext.DeviceProvider that also exposes HAL handles.
func New(provider any) *Backend {
	return &Backend{provider: provider}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return compute.BackendWGPU }

// Init opens the GPU device (or adopts the provider's) and builds both
// compute pipelines.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.provider != nil {
		if err := b.adoptDevice(b.provider); err != nil {
			return err
		}
	} else if err := b.openDevice(); err != nil {
		b.releaseDevice()
		return err
	}

	if err := b.createPipelines(); err != nil {
		b.destroyPipelines()
		b.releaseDevice()
		return fmt.Errorf("wgpu: create pipelines: %w", err)
	}
	return nil
}

// Close releases all GPU resources held by the backend.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyPipelines()
	b.releaseDevice()
}

func (b *Backend) adoptDevice(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	b.device = device
	b.queue = queue
	b.externalDevice = true
	compute.Logger().Info("wgpu: using shared GPU device")
	return nil
}

func (b *Backend) openDevice() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("wgpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("wgpu: create instance: %w", err)
	}
	b.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return errNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("wgpu: open device: %w", err)
	}
	b.device = openDev.Device
	b.queue = openDev.Queue
	compute.Logger().Info("wgpu: GPU initialized", "adapter", selected.Info.Name)
	return nil
}

func (b *Backend) releaseDevice() {
	if !b.externalDevice {
		if b.device != nil {
			b.device.Destroy()
		}
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	b.device = nil
	b.queue = nil
	b.instance = nil
	b.externalDevice = false
}

// pipeline bundles the objects of one single-bind-group compute pipeline.
type pipeline struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// bindingLayout is uniform params at binding 0, two read-only storage
// inputs and one read-write storage output. Both shaders share it.
var bindingLayout = []gputypes.BindGroupLayoutEntry{
	{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
	{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
	{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
	{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
}

func (b *Backend) createPipelines() error {
	var err error
	if b.convolve, err = b.createPipeline("framefx_convolve", convolveShaderSource); err != nil {
		return err
	}
	b.magnitude, err = b.createPipeline("framefx_magnitude", magnitudeShaderSource)
	return err
}

func (b *Backend) createPipeline(label, wgsl string) (pipeline, error) {
	var p pipeline

	spirv, err := compileSPIRV(wgsl)
	if err != nil {
		return p, fmt.Errorf("%s: %w", label, err)
	}
	p.shader, err = b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return p, fmt.Errorf("%s: create shader module: %w", label, err)
	}

	p.bindLayout, err = b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bgl",
		Entries: bindingLayout,
	})
	if err != nil {
		b.destroyPipeline(&p)
		return p, fmt.Errorf("%s: create bind group layout: %w", label, err)
	}

	p.pipeLayout, err = b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		b.destroyPipeline(&p)
		return p, fmt.Errorf("%s: create pipeline layout: %w", label, err)
	}

	p.pipeline, err = b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label,
		Layout:  p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: "main"},
	})
	if err != nil {
		b.destroyPipeline(&p)
		return p, fmt.Errorf("%s: create compute pipeline: %w", label, err)
	}

	compute.Logger().Debug("wgpu: pipeline created", "label", label, "spirv_words", len(spirv))
	return p, nil
}

func (b *Backend) destroyPipelines() {
	b.destroyPipeline(&b.convolve)
	b.destroyPipeline(&b.magnitude)
}

func (b *Backend) destroyPipeline(p *pipeline) {
	if b.device == nil {
		return
	}
	if p.pipeline != nil {
		b.device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		b.device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		b.device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		b.device.DestroyShaderModule(p.shader)
	}
	*p = pipeline{}
}

// compileSPIRV compiles WGSL to little-endian SPIR-V words.
func compileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// Convolve uploads src and the kernel taps, runs one compute pass and
// reads the result back into dst.
func (b *Backend) Convolve(dst, src *compute.Surface, k compute.Kernel) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return compute.ErrBackendUnavailable
	}

	w, h, ch := uint32(src.Width()), uint32(src.Height()), uint32(src.Channels()) //nolint:gosec // surface dimensions fit uint32
	params := packUint32s(w, h, ch, tapCount)
	taps := packTaps(k.Taps())

	return b.run(&b.convolve, params, taps, floatsToBytes(src.Data()), dst.Data(),
		[3]uint32{(w + convolveWG - 1) / convolveWG, (h + convolveWG - 1) / convolveWG, ch})
}

// Magnitude runs the element-wise magnitude shader.
func (b *Backend) Magnitude(dst, gx, gy *compute.Surface) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return compute.ErrBackendUnavailable
	}

	n := uint32(len(dst.Data())) //nolint:gosec // surface size fits uint32
	groups := (n + magnitudeWG - 1) / magnitudeWG
	gx1 := min(groups, maxGroupsPerDim)
	gy1 := (groups + gx1 - 1) / gx1
	params := packUint32s(n, gx1*magnitudeWG, 0, 0)

	return b.run(&b.magnitude, params, floatsToBytes(gx.Data()), floatsToBytes(gy.Data()), dst.Data(),
		[3]uint32{gx1, gy1, 1})
}

// run binds params and two inputs, dispatches p with the given workgroup
// counts, and copies the output buffer back into out.
func (b *Backend) run(p *pipeline, params, in1, in2 []byte, out []float32, groups [3]uint32) error {
	outSize := uint64(len(out)) * 4

	var buffers []hal.Buffer
	defer func() {
		for _, buf := range buffers {
			b.device.DestroyBuffer(buf)
		}
	}()
	newBuffer := func(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
		buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: max(size, 4), Usage: usage})
		if err != nil {
			return nil, fmt.Errorf("wgpu: create %s buffer: %w", label, err)
		}
		buffers = append(buffers, buf)
		return buf, nil
	}

	paramsBuf, err := newBuffer("params", uint64(len(params)), gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	in1Buf, err := newBuffer("input0", uint64(len(in1)), gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	in2Buf, err := newBuffer("input1", uint64(len(in2)), gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	outBuf, err := newBuffer("output", outSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc)
	if err != nil {
		return err
	}
	stagingBuf, err := newBuffer("staging", outSize, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	b.queue.WriteBuffer(paramsBuf, 0, params)
	b.queue.WriteBuffer(in1Buf, 0, in1)
	b.queue.WriteBuffer(in2Buf, 0, in2)

	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "framefx_bind",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: uint64(len(params))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: in1Buf.NativeHandle(), Offset: 0, Size: uint64(len(in1))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: in2Buf.NativeHandle(), Offset: 0, Size: uint64(len(in2))}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: outBuf.NativeHandle(), Offset: 0, Size: outSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	defer b.device.DestroyBindGroup(bg)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "framefx_encoder"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("framefx"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "framefx_pass"})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(groups[0], groups[1], groups[2])
	pass.End()
	encoder.CopyBufferToBuffer(outBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)
	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	fenceOK, err := b.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wgpu: wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, outSize)
	if err := b.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("wgpu: readback: %w", err)
	}
	bytesToFloats(readback, out)
	return nil
}

func packUint32s(vals ...uint32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// packTaps encodes exactly tapCount taps; unused slots have zero weight.
func packTaps(taps []compute.Tap) []byte {
	out := make([]byte, tapCount*tapSize)
	for i, t := range taps[:min(len(taps), tapCount)] {
		o := out[i*tapSize:]
		binary.LittleEndian.PutUint32(o[0:], uint32(int32(t.DX))) //nolint:gosec // two's complement i32
		binary.LittleEndian.PutUint32(o[4:], uint32(int32(t.DY))) //nolint:gosec // two's complement i32
		binary.LittleEndian.PutUint32(o[8:], math.Float32bits(t.W))
	}
	return out
}

func floatsToBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func bytesToFloats(data []byte, out []float32) {
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
}
