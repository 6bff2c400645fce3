package compute

import "fmt"

// Scope tracks the surfaces allocated inside Context.Tidy.
// A Scope is not safe for concurrent use.
type Scope struct {
	ctx   *Context
	owned []*Surface
}

// New allocates a zeroed surface of shape [1, h, w, c] owned by the scope.
func (s *Scope) New(h, w, c int) *Surface {
	if h <= 0 || w <= 0 || (c != 1 && c != 3) {
		panic(fmt.Sprintf("compute: invalid surface shape [1,%d,%d,%d]", h, w, c))
	}
	sf := &Surface{
		height:   h,
		width:    w,
		channels: c,
		data:     getFloats(h * w * c),
		owner:    s.ctx,
	}
	s.ctx.live.Add(1)
	s.owned = append(s.owned, sf)
	return sf
}

// FromRGBA converts an RGBA byte store of size w*h*4 into a new surface
// owned by the scope. Samples are divided by 255; alpha is dropped.
func (s *Scope) FromRGBA(pix []uint8, w, h int, layout Layout) (*Surface, error) {
	if w <= 0 || h <= 0 || len(pix) != w*h*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrShapeMismatch, len(pix), w, h)
	}
	n := w * h
	switch layout {
	case LayoutRGB:
		sf := s.New(h, w, 3)
		for i := 0; i < n; i++ {
			sf.data[i*3+0] = float32(pix[i*4+0]) / 255
			sf.data[i*3+1] = float32(pix[i*4+1]) / 255
			sf.data[i*3+2] = float32(pix[i*4+2]) / 255
		}
		return sf, nil
	case LayoutMean:
		sf := s.New(h, w, 1)
		for i := 0; i < n; i++ {
			sum := float32(pix[i*4+0]) + float32(pix[i*4+1]) + float32(pix[i*4+2])
			sf.data[i] = sum / 3 / 255
		}
		return sf, nil
	default:
		return nil, fmt.Errorf("compute: unknown layout %d", layout)
	}
}

// release frees every owned surface except keep.
func (s *Scope) release(keep *Surface) {
	for _, sf := range s.owned {
		if sf != keep {
			sf.Release()
		}
	}
	s.owned = nil
}
