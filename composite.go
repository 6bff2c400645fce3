package framefx

import (
	"fmt"
	"math"

	"github.com/gogpu/framefx/internal/blend"
)

// CompositeMode selects the per-pixel rule used by Compose.
type CompositeMode int

const (
	// Multiply sets each channel to dst*src/255, rounded to nearest.
	Multiply CompositeMode = iota
	// Darken keeps the smaller of dst and src per channel.
	Darken
	// SourceOver replaces dst with src.
	SourceOver
)

// String returns the mode name.
func (m CompositeMode) String() string {
	if bm, ok := m.blendMode(); ok {
		return bm.String()
	}
	return fmt.Sprintf("CompositeMode(%d)", int(m))
}

func (m CompositeMode) blendMode() (blend.Mode, bool) {
	switch m {
	case Multiply:
		return blend.ModeMultiply, true
	case Darken:
		return blend.ModeDarken, true
	case SourceOver:
		return blend.ModeSourceOver, true
	}
	return 0, false
}

// Compose blends src into dst using mode. The rasters must be compatible.
// Source alpha is treated as opaque and dst keeps its alpha.
func Compose(dst, src *Raster, mode CompositeMode) error {
	if err := dst.Validate(); err != nil {
		return err
	}
	if err := src.Validate(); err != nil {
		return err
	}
	if !dst.Compatible(src) {
		return fmt.Errorf("%w: compose %dx%d onto %dx%d", ErrIncompatible,
			src.width, src.height, dst.width, dst.height)
	}
	bm, ok := mode.blendMode()
	if !ok {
		return fmt.Errorf("%w: composite mode %d", ErrInvalidParameter, int(mode))
	}
	fn := blend.GetFunc(bm)
	d, s := dst.data, src.data
	for i := 0; i < len(d); i += 4 {
		d[i], d[i+1], d[i+2], _ = fn(s[i], s[i+1], s[i+2], 255, d[i], d[i+1], d[i+2], 255)
	}
	return nil
}

// Posterize quantizes each color channel to levels evenly spaced values:
// round(v/255*(levels-1)) * 255/(levels-1), rounded to the nearest byte.
// Alpha is untouched. levels must be at least 2.
func Posterize(r *Raster, levels int) error {
	if levels < 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidLevels, levels)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	var lut [256]uint8
	n := float64(levels - 1)
	step := 255 / n
	for v := range lut {
		lut[v] = uint8(math.Round(math.Round(float64(v)/255*n) * step))
	}
	applyLUT(r, &lut)
	return nil
}

// ThresholdDilate turns an edge-magnitude raster into hard ink lines: a
// pixel whose channel mean exceeds cutoff becomes black, every other
// pixel white. Alpha is untouched.
func ThresholdDilate(r *Raster, cutoff uint8) error {
	if err := r.Validate(); err != nil {
		return err
	}
	d := r.data
	for i := 0; i < len(d); i += 4 {
		mean := (uint16(d[i]) + uint16(d[i+1]) + uint16(d[i+2])) / 3
		var v uint8 = 255
		if mean > uint16(cutoff) {
			v = 0
		}
		d[i], d[i+1], d[i+2] = v, v, v
	}
	return nil
}

// BoostContrastSaturation raises contrast around mid-gray and then pushes
// each channel away from the pixel's luminance:
//
//	lum = 0.2126R + 0.7152G + 0.0722B
//	c'  = (v-128)*contrast + 128
//	out = lum + (c'-lum)*saturation
//
// Each result is clamped to [0, 255]. Alpha is untouched.
func BoostContrastSaturation(r *Raster, contrast, saturation float64) error {
	if err := r.Validate(); err != nil {
		return err
	}
	d := r.data
	for i := 0; i < len(d); i += 4 {
		lum := luminance(d[i], d[i+1], d[i+2])
		for c := 0; c < 3; c++ {
			boosted := (float64(d[i+c])-128)*contrast + 128
			d[i+c] = clampByte(lum + (boosted-lum)*saturation)
		}
	}
	return nil
}

// luminance returns the Rec. 709 luma of an 8-bit color in [0, 255].
func luminance(r, g, b uint8) float64 {
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}

func clampByte(v float64) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(v))
}

func applyLUT(r *Raster, lut *[256]uint8) {
	d := r.data
	for i := 0; i < len(d); i += 4 {
		d[i], d[i+1], d[i+2] = lut[d[i]], lut[d[i+1]], lut[d[i+2]]
	}
}
