package compute

import (
	"context"
	"math"
	"testing"
)

func TestSoftwareConvolveEdgeReplicate(t *testing.T) {
	cc := newTestContext(t)
	_, err := cc.Tidy(func(s *Scope) (*Surface, error) {
		src := s.New(1, 4, 1)
		copy(src.Data(), []float32{1, 0, 0, 0})
		dst := s.New(1, 4, 1)
		if err := cc.Convolve(context.Background(), dst, src, BinomialRow); err != nil {
			return nil, err
		}
		// x=0 sees samples {1,1,1,0,0}: (1+4+6)/16.
		want := []float64{11.0 / 16, 5.0 / 16, 1.0 / 16, 0}
		for i, w := range want {
			if got := float64(dst.Data()[i]); math.Abs(got-w) > 1e-7 {
				t.Errorf("dst[%d] = %v, want %v", i, got, w)
			}
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSoftwareBandsMatchInline(t *testing.T) {
	banded := New(WithBackend(BackendSoftware), WithWorkers(4))
	inline := New(WithBackend(BackendSoftware), WithWorkers(1))
	t.Cleanup(banded.Close)
	t.Cleanup(inline.Close)
	ctx := context.Background()

	run := func(cc *Context) []float32 {
		out, err := cc.Tidy(func(s *Scope) (*Surface, error) {
			src := s.New(70, 33, 1)
			for i := range src.Data() {
				src.Data()[i] = float32(i%17) / 16
			}
			gx, gy, mag := s.New(70, 33, 1), s.New(70, 33, 1), s.New(70, 33, 1)
			if err := cc.Convolve(ctx, gx, src, SobelX); err != nil {
				return nil, err
			}
			if err := cc.Convolve(ctx, gy, src, SobelY); err != nil {
				return nil, err
			}
			return mag, cc.Magnitude(ctx, mag, gx, gy)
		})
		if err != nil {
			t.Fatal(err)
		}
		defer out.Release()
		return append([]float32(nil), out.Data()...)
	}

	a, b := run(banded), run(inline)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d: banded %v, inline %v", i, a[i], b[i])
		}
	}
}

func TestSoftwareMagnitude(t *testing.T) {
	cc := newTestContext(t)
	_, err := cc.Tidy(func(s *Scope) (*Surface, error) {
		gx, gy, dst := s.New(1, 2, 1), s.New(1, 2, 1), s.New(1, 2, 1)
		copy(gx.Data(), []float32{3, -6})
		copy(gy.Data(), []float32{4, 8})
		if err := cc.Magnitude(context.Background(), dst, gx, gy); err != nil {
			return nil, err
		}
		if dst.Data()[0] != 5 || dst.Data()[1] != 10 {
			t.Errorf("Magnitude() = %v", dst.Data())
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
