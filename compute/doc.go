// Package compute provides the numeric execution context used by the
// convolution stages of framefx.
//
// # Surfaces
//
// A Surface is a float32 tensor of shape [1, h, w, c] with c in {1, 3},
// holding values normalized to [0, 1]. Surfaces are pooled and must be
// released explicitly. Group intermediate allocations in Context.Tidy so
// that every surface except the returned one is released on every exit
// path:
//
//	out, err := cc.Tidy(func(s *compute.Scope) (*compute.Surface, error) {
//		src, err := s.FromRGBA(pix, w, h, compute.LayoutRGB)
//		if err != nil {
//			return nil, err
//		}
//		dst := s.New(h, w, 3)
//		if err := cc.Convolve(ctx, dst, src, compute.BinomialRow); err != nil {
//			return nil, err
//		}
//		return dst, nil
//	})
//	if err != nil {
//		return err
//	}
//	defer out.Release()
//
// # Backends
//
// A Context runs convolutions on a Backend chosen once, on first use.
// The software backend is always registered. GPU backends register
// themselves on import:
//
//	import _ "github.com/gogpu/framefx/gpu" // enables the wgpu backend
//
// If the preferred backend fails to initialize, the Context logs the
// failure and falls back to the software backend. Selection happens at
// most once per Context.
package compute
