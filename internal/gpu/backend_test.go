//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/framefx/compute"
)

// newTestBackend returns an initialized GPU backend or skips the test.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := New(nil)
	if err := b.Init(); err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func fillPattern(s *compute.Surface) {
	data := s.Data()
	for i := range data {
		data[i] = float32((i*37)%101) / 100
	}
}

func TestBackendConvolveMatchesSoftware(t *testing.T) {
	b := newTestBackend(t)

	cc := compute.New(compute.WithBackend(compute.BackendSoftware))
	t.Cleanup(cc.Close)
	ctx := context.Background()

	kernels := []compute.Kernel{compute.BinomialRow, compute.BinomialColumn, compute.SobelX, compute.SobelY}
	for _, k := range kernels {
		t.Run(k.Name(), func(t *testing.T) {
			_, err := cc.Tidy(func(s *compute.Scope) (*compute.Surface, error) {
				src := s.New(19, 23, 3)
				fillPattern(src)
				want := s.New(19, 23, 3)
				got := s.New(19, 23, 3)
				if err := cc.Convolve(ctx, want, src, k); err != nil {
					return nil, err
				}
				if err := b.Convolve(got, src, k); err != nil {
					return nil, err
				}
				for i, w := range want.Data() {
					if d := math.Abs(float64(got.Data()[i] - w)); d > 1e-5 {
						t.Fatalf("sample %d: got %v, want %v", i, got.Data()[i], w)
					}
				}
				return nil, nil
			})
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestBackendMagnitude(t *testing.T) {
	b := newTestBackend(t)

	cc := compute.New(compute.WithBackend(compute.BackendSoftware))
	t.Cleanup(cc.Close)

	_, err := cc.Tidy(func(s *compute.Scope) (*compute.Surface, error) {
		gx := s.New(7, 300, 1)
		gy := s.New(7, 300, 1)
		dst := s.New(7, 300, 1)
		for i := range gx.Data() {
			gx.Data()[i] = 3
			gy.Data()[i] = 4
		}
		if err := b.Magnitude(dst, gx, gy); err != nil {
			return nil, err
		}
		for i, v := range dst.Data() {
			if math.Abs(float64(v)-5) > 1e-5 {
				t.Fatalf("sample %d: got %v, want 5", i, v)
			}
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestNewWithoutProvider(t *testing.T) {
	var p gpucontext.DeviceProvider
	if b := New(p); b.provider != nil {
		t.Errorf("New(nil provider).provider = %v, want nil so Init opens its own device", b.provider)
	}
}

func TestPackTaps(t *testing.T) {
	buf := packTaps(compute.SobelX.Taps())
	if len(buf) != tapCount*tapSize {
		t.Fatalf("len = %d, want %d", len(buf), tapCount*tapSize)
	}
	// SobelX has six non-zero taps; the rest must carry zero weight.
	for i := 6; i < tapCount; i++ {
		if w := buf[i*tapSize+8 : i*tapSize+12]; w[0]|w[1]|w[2]|w[3] != 0 {
			t.Errorf("tap %d weight bytes = %v, want zero", i, w)
		}
	}
}

func TestCompileShaders(t *testing.T) {
	for name, src := range map[string]string{
		"convolve":  convolveShaderSource,
		"magnitude": magnitudeShaderSource,
	} {
		words, err := compileSPIRV(src)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		// SPIR-V magic number.
		if len(words) == 0 || words[0] != 0x07230203 {
			t.Errorf("%s: not a SPIR-V module", name)
		}
	}
}

func TestBackendUninitialized(t *testing.T) {
	b := New(nil)
	if err := b.Convolve(nil, nil, compute.SobelX); !errors.Is(err, compute.ErrBackendUnavailable) {
		t.Errorf("Convolve before Init = %v, want ErrBackendUnavailable", err)
	}
}
