// Package framefx applies stylized filters to video frames.
//
// # Overview
//
// A frame is a Raster: a fixed-size, tightly packed RGBA byte buffer.
// framefx turns a source raster into a destination raster by running one
// of a closed set of filter pipelines:
//
//   - none: pass-through copy
//   - grayscale, invert: pointwise remaps
//   - cartoon: binomial blur, posterize, edge ink
//   - comic: contrast and saturation boost, halftone dots, hard edges
//   - sketch: luma grayscale darkened along edges
//
// # Quick Start
//
//	d := framefx.NewDispatcher(nil) // uses compute.Default()
//	f, _ := framefx.ParseFilter("cartoon", framefx.DefaultParams())
//	if err := d.Apply(ctx, f, src, dst); err != nil {
//		// already logged; dst keeps the previous frame
//	}
//
// # Stages
//
// The building blocks are exported on their own. Pointwise stages
// (Grayscale, Invert) modify a raster in place. Convolution stages
// (GaussianBlur, SobelEdges) return a compute.Surface that the caller
// releases after Materialize. Compositing stages (Posterize, Halftone,
// ThresholdDilate, Compose) work on rasters.
//
// # Compute Backends
//
// Convolutions run on a compute.Context. The software backend is always
// available; importing github.com/gogpu/framefx/gpu adds a wgpu compute
// backend that is preferred when a GPU can be opened.
//
// # Frame Loop
//
// Loop connects a Source, a Dispatcher and a Sink at a fixed frame rate
// (30 fps by default). Filter failures are logged and never stop the loop.
//
// # Logging
//
// framefx is silent by default. Call SetLogger to receive log/slog
// records from framefx and its compute backends.
package framefx
