package compute

import (
	"fmt"
	"math"
)

// The element-wise operations below are memory-bound and run on the CPU
// for every backend.

// Max returns the largest value in s.
func (c *Context) Max(s *Surface) (float32, error) {
	if err := c.check(s); err != nil {
		return 0, err
	}
	m := float32(math.Inf(-1))
	for _, v := range s.data {
		if v > m {
			m = v
		}
	}
	return m, nil
}

// Scale multiplies every value of s by factor in place.
func (c *Context) Scale(s *Surface, factor float32) error {
	if err := c.check(s); err != nil {
		return err
	}
	for i := range s.data {
		s.data[i] *= factor
	}
	return nil
}

// Clamp limits every value of s to [lo, hi] in place.
func (c *Context) Clamp(s *Surface, lo, hi float32) error {
	if err := c.check(s); err != nil {
		return err
	}
	for i, v := range s.data {
		s.data[i] = min(max(v, lo), hi)
	}
	return nil
}

// Broadcast copies a single-channel src into every channel of dst.
func (c *Context) Broadcast(dst, src *Surface) error {
	if err := c.check(dst, src); err != nil {
		return err
	}
	if src.channels != 1 || dst.height != src.height || dst.width != src.width {
		return fmt.Errorf("%w: broadcast %s into %s", ErrShapeMismatch, src, dst)
	}
	ch := dst.channels
	for i, v := range src.data {
		for k := 0; k < ch; k++ {
			dst.data[i*ch+k] = v
		}
	}
	return nil
}
