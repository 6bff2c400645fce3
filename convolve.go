package framefx

import (
	"context"
	"fmt"

	"github.com/gogpu/framefx/compute"
)

// sobelEpsilon keeps edge normalization finite on textureless frames.
const sobelEpsilon = 1e-5

// GaussianBlur converts src to an RGB surface and blurs every channel
// with the 5-tap binomial kernel [1 4 6 4 1]/16, first along rows and then
// along columns. Samples beyond the border repeat the nearest edge sample,
// so the result has the dimensions of src. Values are clamped to [0, 1].
//
// The caller owns the returned surface and must Release it. A nil cc
// means compute.Default().
func GaussianBlur(ctx context.Context, cc *compute.Context, src *Raster) (*compute.Surface, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if cc == nil {
		cc = compute.Default()
	}
	if err := cc.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return cc.Tidy(func(s *compute.Scope) (*compute.Surface, error) {
		in, err := s.FromRGBA(src.data, src.width, src.height, compute.LayoutRGB)
		if err != nil {
			return nil, err
		}
		rows := s.New(src.height, src.width, 3)
		if err := cc.Convolve(ctx, rows, in, compute.BinomialRow); err != nil {
			return nil, fmt.Errorf("blur rows: %w", err)
		}
		out := s.New(src.height, src.width, 3)
		if err := cc.Convolve(ctx, out, rows, compute.BinomialColumn); err != nil {
			return nil, fmt.Errorf("blur columns: %w", err)
		}
		if err := cc.Clamp(out, 0, 1); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// SobelEdges returns the normalized gradient magnitude of src as a
// 3-channel surface with values in [0, 1].
//
// The luminance is the mean of R, G and B. Both Sobel operators use
// edge-replicated borders rather than zero padding, so a uniform frame
// yields zero everywhere, border pixels included. The
// magnitude is divided by its maximum plus a small epsilon, which keeps
// the result finite when the maximum is zero.
//
// The caller owns the returned surface and must Release it. A nil cc
// means compute.Default().
func SobelEdges(ctx context.Context, cc *compute.Context, src *Raster) (*compute.Surface, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if cc == nil {
		cc = compute.Default()
	}
	if err := cc.EnsureReady(ctx); err != nil {
		return nil, err
	}
	h, w := src.height, src.width
	return cc.Tidy(func(s *compute.Scope) (*compute.Surface, error) {
		lum, err := s.FromRGBA(src.data, w, h, compute.LayoutMean)
		if err != nil {
			return nil, err
		}
		gx := s.New(h, w, 1)
		if err := cc.Convolve(ctx, gx, lum, compute.SobelX); err != nil {
			return nil, fmt.Errorf("sobel x: %w", err)
		}
		gy := s.New(h, w, 1)
		if err := cc.Convolve(ctx, gy, lum, compute.SobelY); err != nil {
			return nil, fmt.Errorf("sobel y: %w", err)
		}
		mag := s.New(h, w, 1)
		if err := cc.Magnitude(ctx, mag, gx, gy); err != nil {
			return nil, fmt.Errorf("magnitude: %w", err)
		}
		peak, err := cc.Max(mag)
		if err != nil {
			return nil, err
		}
		if err := cc.Scale(mag, 1/(peak+sobelEpsilon)); err != nil {
			return nil, err
		}
		out := s.New(h, w, 3)
		if err := cc.Broadcast(out, mag); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Materialize writes s into dst as bytes (v*255, clamped and rounded) with
// alpha 255. The surface must match the raster's dimensions.
func Materialize(s *compute.Surface, dst *Raster) error {
	if err := dst.Validate(); err != nil {
		return err
	}
	if s == nil {
		return compute.ErrReleased
	}
	if s.Width() != dst.width || s.Height() != dst.height {
		return fmt.Errorf("%w: surface %dx%d, raster %dx%d", ErrIncompatible,
			s.Width(), s.Height(), dst.width, dst.height)
	}
	return s.ToRGBA(dst.data)
}
