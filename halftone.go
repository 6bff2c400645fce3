package framefx

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/vector"

	"github.com/gogpu/framefx/internal/blend"
)

// kappa places cubic Bézier control points so that four segments
// approximate a circle: 4/3 * (sqrt(2) - 1).
const kappa = 0.5522847498

// Halftone overlays print-style dots on r. The raster is tiled into
// cellSize×cellSize cells. Each cell samples its top-left pixel and gets
// a black disc centered in the cell whose radius is (1-lum)*cellSize/2,
// where lum is the Rec. 709 luminance in [0, 1]. Disc edges are
// anti-aliased; ink is laid over the existing pixels at opacity maxAlpha
// scaled by coverage. Alpha is untouched.
//
// cellSize must be at least 1 and maxAlpha must lie in [0, 1].
func Halftone(r *Raster, cellSize int, maxAlpha float64) error {
	if cellSize < 1 {
		return fmt.Errorf("%w: cell size %d", ErrInvalidParameter, cellSize)
	}
	if !(maxAlpha >= 0 && maxAlpha <= 1) {
		return fmt.Errorf("%w: max alpha %v", ErrInvalidParameter, maxAlpha)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if maxAlpha == 0 {
		return nil
	}

	w, h := r.width, r.height
	z := vector.NewRasterizer(w, h)
	half := float32(cellSize) / 2
	dots := 0
	for y := 0; y < h; y += cellSize {
		for x := 0; x < w; x += cellSize {
			i := (y*w + x) * 4
			lum := luminance(r.data[i], r.data[i+1], r.data[i+2]) / 255
			radius := float32(1-lum) * half
			if radius <= 0 {
				continue
			}
			addDisc(z, float32(x)+half, float32(y)+half, radius)
			dots++
		}
	}
	if dots == 0 {
		return nil
	}

	coverage := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(coverage, coverage.Bounds(), image.Opaque, image.Point{})

	ink := uint8(math.Round(maxAlpha * 255))
	d := r.data
	for p, cov := range coverage.Pix {
		if cov == 0 {
			continue
		}
		a := blend.MulDiv255(ink, cov)
		i := p * 4
		d[i] = blend.Lerp255(d[i], 0, a)
		d[i+1] = blend.Lerp255(d[i+1], 0, a)
		d[i+2] = blend.Lerp255(d[i+2], 0, a)
	}
	Logger().Debug("framefx: halftone", "cell", cellSize, "dots", dots)
	return nil
}

// addDisc appends a closed circle of radius rad centered at (cx, cy).
func addDisc(z *vector.Rasterizer, cx, cy, rad float32) {
	k := rad * kappa
	z.MoveTo(cx+rad, cy)
	z.CubeTo(cx+rad, cy+k, cx+k, cy+rad, cx, cy+rad)
	z.CubeTo(cx-k, cy+rad, cx-rad, cy+k, cx-rad, cy)
	z.CubeTo(cx-rad, cy-k, cx-k, cy-rad, cx, cy-rad)
	z.CubeTo(cx+k, cy-rad, cx+rad, cy-k, cx+rad, cy)
	z.ClosePath()
}
