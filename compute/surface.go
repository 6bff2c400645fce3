package compute

import (
	"fmt"
	"sync"
)

// Layout selects how RGBA bytes are converted into a Surface.
type Layout uint8

const (
	// LayoutRGB keeps the three color channels (c = 3).
	LayoutRGB Layout = iota

	// LayoutMean averages R, G and B into one channel (c = 1).
	LayoutMean
)

// Surface is a float32 tensor of shape [1, h, w, c] with c in {1, 3}.
// Values are stored row-major with interleaved channels.
//
// A Surface belongs to the Context that allocated it and must be released
// exactly once. Release is idempotent; operations on a released Surface
// fail with ErrReleased.
type Surface struct {
	height   int
	width    int
	channels int
	data     []float32
	owner    *Context
}

// Shape returns the tensor shape [1, h, w, c].
func (s *Surface) Shape() [4]int { return [4]int{1, s.height, s.width, s.channels} }

// Height returns h.
func (s *Surface) Height() int { return s.height }

// Width returns w.
func (s *Surface) Width() int { return s.width }

// Channels returns c.
func (s *Surface) Channels() int { return s.channels }

// Data returns the backing values, or nil after Release.
func (s *Surface) Data() []float32 { return s.data }

// At returns the value at row y, column x, channel ch.
func (s *Surface) At(y, x, ch int) float32 {
	return s.data[(y*s.width+x)*s.channels+ch]
}

// Released reports whether the surface has been released.
func (s *Surface) Released() bool { return s.data == nil }

// Release returns the backing store to the pool.
func (s *Surface) Release() {
	if s == nil || s.data == nil {
		return
	}
	putFloats(s.data)
	s.data = nil
	if s.owner != nil {
		s.owner.live.Add(-1)
	}
}

func (s *Surface) String() string {
	return fmt.Sprintf("Surface[1,%d,%d,%d]", s.height, s.width, s.channels)
}

// sameShape reports whether a and b have identical shapes.
func sameShape(a, b *Surface) bool {
	return a.height == b.height && a.width == b.width && a.channels == b.channels
}

// ToRGBA writes the surface into an RGBA byte store of the same width and
// height: v*255, clamped and rounded. A single channel is replicated
// into R, G and B. Alpha is set to 255.
func (s *Surface) ToRGBA(pix []uint8) error {
	if s.Released() {
		return ErrReleased
	}
	n := s.height * s.width
	if len(pix) != n*4 {
		return fmt.Errorf("%w: %d bytes for %s", ErrShapeMismatch, len(pix), s)
	}
	switch s.channels {
	case 1:
		for i := 0; i < n; i++ {
			v := toByte(s.data[i])
			pix[i*4+0] = v
			pix[i*4+1] = v
			pix[i*4+2] = v
			pix[i*4+3] = 255
		}
	case 3:
		for i := 0; i < n; i++ {
			pix[i*4+0] = toByte(s.data[i*3+0])
			pix[i*4+1] = toByte(s.data[i*3+1])
			pix[i*4+2] = toByte(s.data[i*3+2])
			pix[i*4+3] = 255
		}
	default:
		return fmt.Errorf("%w: %d channels", ErrShapeMismatch, s.channels)
	}
	return nil
}

// toByte converts a normalized value to a byte, clamping and rounding.
func toByte(v float32) uint8 {
	v *= 255
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// floatBuffer wraps a slice for sync.Pool to avoid allocation warnings.
type floatBuffer struct {
	data []float32
}

var floatPool = sync.Pool{
	New: func() any { return &floatBuffer{} },
}

// getFloats returns a zeroed slice of length n.
func getFloats(n int) []float32 {
	b := floatPool.Get().(*floatBuffer)
	if cap(b.data) < n {
		return make([]float32, n)
	}
	data := b.data[:n]
	clear(data)
	return data
}

// putFloats returns a slice to the pool.
func putFloats(data []float32) {
	// 1080p RGB is ~6M floats; larger buffers are left to the GC.
	if cap(data) <= 4096*4096*3 {
		floatPool.Put(&floatBuffer{data: data[:cap(data)]})
	}
}
