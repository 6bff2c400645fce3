package framefx

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/framefx/compute"
)

func newTestDispatcher(t *testing.T, opts ...DispatcherOption) *Dispatcher {
	t.Helper()
	return NewDispatcher(newSoftwareContext(t), opts...)
}

func TestApplyInvertWhite(t *testing.T) {
	d := newTestDispatcher(t)
	src := NewRaster(4, 4)
	src.Fill(255, 255, 255, 180)
	dst := NewRaster(4, 4)

	if err := d.Apply(context.Background(), InvertFilter{}, src, dst); err != nil {
		t.Fatal(err)
	}
	want := NewRaster(4, 4)
	want.Fill(0, 0, 0, 180)
	if !dst.Equal(want) {
		t.Errorf("invert of white = %v, want all black with alpha 180", dst.Data())
	}
}

func TestApplyGrayscaleCheckerboard(t *testing.T) {
	d := newTestDispatcher(t)
	src := NewRaster(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			src.SetRGBA(x, y, v, v, v, 255)
		}
	}
	dst := NewRaster(4, 4)
	if err := d.Apply(context.Background(), GrayscaleFilter{}, src, dst); err != nil {
		t.Fatal(err)
	}
	if !dst.Equal(src) {
		t.Error("grayscale changed an already gray checkerboard")
	}
}

func TestApplyNoneCopies(t *testing.T) {
	d := newTestDispatcher(t)
	src := newPattern(7, 5)
	dst := NewRaster(7, 5)
	if err := d.Apply(context.Background(), nil, src, dst); err != nil {
		t.Fatal(err)
	}
	if !dst.Equal(src) {
		t.Error("nil filter should copy the source")
	}
}

func TestApplyCartoonFlat(t *testing.T) {
	d := newTestDispatcher(t)
	src := newFilled(64, 64, 100, 150, 200)
	dst := NewRaster(64, 64)
	if err := d.Apply(context.Background(), CartoonFilter{Levels: 6}, src, dst); err != nil {
		t.Fatal(err)
	}

	levels := map[uint8]bool{0: true, 51: true, 102: true, 153: true, 204: true, 255: true}
	data := dst.Data()
	for i := 0; i < len(data); i += 4 {
		for c := 0; c < 3; c++ {
			if !levels[data[i+c]] {
				t.Fatalf("sample %d = %d is not a posterize level", i+c, data[i+c])
			}
		}
	}
	// No gradients, so the edge map must not darken anything.
	if !dst.Equal(newFilled(64, 64, 102, 153, 204)) {
		t.Errorf("flat cartoon pixel = %v, want (102,153,204,255)", data[:4])
	}
	if n := d.Compute().LiveSurfaces(); n != 0 {
		t.Errorf("live surfaces = %d, want 0", n)
	}
}

// newStep returns a frame that is black left of column edge and white from
// it on.
func newStep(w, h, edge int) *Raster {
	r := newFilled(w, h, 255, 255, 255)
	for y := 0; y < h; y++ {
		for x := 0; x < edge; x++ {
			r.SetRGBA(x, y, 0, 0, 0, 255)
		}
	}
	return r
}

// materialized runs op on src and returns the result as a raster.
func materialized(t *testing.T, cc *compute.Context, op convolution, src *Raster) *Raster {
	t.Helper()
	s, err := op(context.Background(), cc, src)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Release()
	out := NewRaster(src.Width(), src.Height())
	if err := Materialize(s, out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestApplyCartoonInksEdges(t *testing.T) {
	d := newTestDispatcher(t)
	src := newStep(32, 32, 16)
	dst := NewRaster(32, 32)
	if err := d.Apply(context.Background(), CartoonFilter{Levels: 6}, src, dst); err != nil {
		t.Fatal(err)
	}

	posterized := materialized(t, d.Compute(), GaussianBlur, src)
	if err := Posterize(posterized, 6); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			got, _, _, _ := dst.RGBA(x, y)
			want, _, _, _ := posterized.RGBA(x, y)
			switch {
			case x == 15 || x == 16:
				if got >= want {
					t.Fatalf("edge (%d,%d) = %d, want darker than posterized %d", x, y, got, want)
				}
			case x <= 13 || x >= 19:
				if got != want {
					t.Fatalf("flat (%d,%d) = %d, want posterized %d", x, y, got, want)
				}
			}
		}
	}
}

func TestApplyComicFlatWhite(t *testing.T) {
	d := newTestDispatcher(t)
	f, err := DefaultFilter("comic")
	if err != nil {
		t.Fatal(err)
	}
	src := newFilled(32, 32, 255, 255, 255)
	dst := NewRaster(32, 32)
	if err := d.Apply(context.Background(), f, src, dst); err != nil {
		t.Fatal(err)
	}
	if !dst.Equal(src) {
		t.Errorf("comic of flat white = %v, want white", dst.Data()[:4])
	}
}

func TestApplyComicInksEdges(t *testing.T) {
	d := newTestDispatcher(t)
	f, err := DefaultFilter("comic")
	if err != nil {
		t.Fatal(err)
	}
	dst := NewRaster(32, 32)
	if err := d.Apply(context.Background(), f, newStep(32, 32, 16), dst); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 32; y++ {
		if r, g, b, _ := dst.RGBA(16, y); r != 0 || g != 0 || b != 0 {
			t.Fatalf("edge (16,%d) = (%d,%d,%d), want black ink", y, r, g, b)
		}
		if r, g, b, _ := dst.RGBA(24, y); r != 255 || g != 255 || b != 255 {
			t.Fatalf("white side (24,%d) = (%d,%d,%d), want white", y, r, g, b)
		}
	}
}

func TestApplyMatchesStageComposition(t *testing.T) {
	d := newTestDispatcher(t)
	cc := d.Compute()
	src := newPattern(40, 40)

	tests := []struct {
		name   string
		filter Filter
		stages func(t *testing.T) *Raster
	}{
		{
			name:   "cartoon",
			filter: CartoonFilter{Levels: 6},
			stages: func(t *testing.T) *Raster {
				out := materialized(t, cc, GaussianBlur, src)
				if err := Posterize(out, 6); err != nil {
					t.Fatal(err)
				}
				ink := materialized(t, cc, SobelEdges, out)
				Invert(ink)
				if err := Compose(out, ink, Multiply); err != nil {
					t.Fatal(err)
				}
				return out
			},
		},
		{
			name:   "comic",
			filter: ComicFilter{CellSize: 8, MaxAlpha: 0.35, Cutoff: 60, Contrast: 1.4, Saturation: 1.8},
			stages: func(t *testing.T) *Raster {
				out := src.Clone()
				if err := BoostContrastSaturation(out, 1.4, 1.8); err != nil {
					t.Fatal(err)
				}
				if err := Halftone(out, 8, 0.35); err != nil {
					t.Fatal(err)
				}
				ink := materialized(t, cc, SobelEdges, out)
				if err := ThresholdDilate(ink, 60); err != nil {
					t.Fatal(err)
				}
				if err := Compose(out, ink, Multiply); err != nil {
					t.Fatal(err)
				}
				return out
			},
		},
		{
			name:   "sketch",
			filter: SketchFilter{},
			stages: func(t *testing.T) *Raster {
				out := src.Clone()
				LumaGrayscale(out)
				ink := materialized(t, cc, SobelEdges, out)
				Invert(ink)
				if err := Compose(out, ink, Darken); err != nil {
					t.Fatal(err)
				}
				return out
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := NewRaster(40, 40)
			if err := d.Apply(context.Background(), tt.filter, src, dst); err != nil {
				t.Fatal(err)
			}
			if want := tt.stages(t); !dst.Equal(want) {
				t.Error("pipeline output differs from running its stages by hand")
			}
		})
	}
}

func TestApplyZeroValueFilters(t *testing.T) {
	d := newTestDispatcher(t)
	src := newPattern(40, 40)
	tests := []struct {
		name      string
		zero, set Filter
	}{
		{"cartoon", CartoonFilter{}, CartoonFilter{Levels: 6}},
		{"comic", ComicFilter{}, ComicFilter{CellSize: 8, Contrast: 1.4, Saturation: 1.8}},
		{"comic without boost", ComicFilter{CellSize: 8, MaxAlpha: 0.35, Cutoff: 60},
			ComicFilter{CellSize: 8, MaxAlpha: 0.35, Cutoff: 60, Contrast: 1.4, Saturation: 1.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, want := NewRaster(40, 40), NewRaster(40, 40)
			if err := d.Apply(context.Background(), tt.zero, src, got); err != nil {
				t.Fatalf("Apply(%#v) = %v", tt.zero, err)
			}
			if err := d.Apply(context.Background(), tt.set, src, want); err != nil {
				t.Fatal(err)
			}
			if !got.Equal(want) {
				t.Errorf("%#v did not take the defaults", tt.zero)
			}
		})
	}
}

func TestApplySketchFlat(t *testing.T) {
	d := newTestDispatcher(t)
	src := newFilled(16, 16, 255, 0, 0)
	dst := NewRaster(16, 16)
	if err := d.Apply(context.Background(), SketchFilter{}, src, dst); err != nil {
		t.Fatal(err)
	}
	if !dst.Equal(newFilled(16, 16, 77, 77, 77)) {
		t.Errorf("flat sketch pixel = %v, want luma gray 77", dst.Data()[:4])
	}
}

func TestApplySketchDarkensEdges(t *testing.T) {
	d := newTestDispatcher(t)
	src := newFilled(16, 16, 255, 255, 255)
	for y := 0; y < 16; y++ {
		for x := 0; x < 8; x++ {
			src.SetRGBA(x, y, 128, 128, 128, 255)
		}
	}
	dst := NewRaster(16, 16)
	if err := d.Apply(context.Background(), SketchFilter{}, src, dst); err != nil {
		t.Fatal(err)
	}
	if r, _, _, _ := dst.RGBA(8, 8); r != 0 {
		t.Errorf("strongest edge = %d, want 0", r)
	}
	if r, _, _, _ := dst.RGBA(15, 8); r != 255 {
		t.Errorf("flat white = %d, want 255", r)
	}
}

func TestApplyDeterministic(t *testing.T) {
	d := newTestDispatcher(t)
	src := newPattern(40, 30)
	for _, name := range FilterNames {
		t.Run(name, func(t *testing.T) {
			f, err := DefaultFilter(name)
			if err != nil {
				t.Fatal(err)
			}
			a, b := NewRaster(40, 30), NewRaster(40, 30)
			if err := d.Apply(context.Background(), f, src, a); err != nil {
				t.Fatal(err)
			}
			if err := d.Apply(context.Background(), f, src, b); err != nil {
				t.Fatal(err)
			}
			if !a.Equal(b) {
				t.Error("same input produced different output")
			}
			if n := d.Compute().LiveSurfaces(); n != 0 {
				t.Errorf("live surfaces = %d, want 0", n)
			}
		})
	}
}

func TestApplyInPlace(t *testing.T) {
	d := newTestDispatcher(t)
	r := newPattern(12, 12)
	want := r.Clone()
	Invert(want)
	if err := d.Apply(context.Background(), InvertFilter{}, r, r); err != nil {
		t.Fatal(err)
	}
	if !r.Equal(want) {
		t.Error("in-place invert produced a wrong result")
	}
}

func TestApplyStageFailureLeavesDestination(t *testing.T) {
	tests := []struct {
		name  string
		f     Filter
		hook  func(filter, stage string)
		stage string
		want  error
	}{
		{
			name:  "invalid levels",
			f:     CartoonFilter{Levels: 1},
			stage: "posterize",
			want:  ErrInvalidLevels,
		},
		{
			name:  "invalid halftone",
			f:     ComicFilter{CellSize: 0, MaxAlpha: 0.35},
			stage: "halftone",
			want:  ErrInvalidParameter,
		},
		{
			name: "panicking stage",
			f:    SketchFilter{},
			hook: func(_, stage string) {
				if stage == "compose" {
					panic("boom")
				}
			},
			stage: "compose",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []DispatcherOption
			if tt.hook != nil {
				opts = append(opts, WithStageHook(tt.hook))
			}
			d := newTestDispatcher(t, opts...)
			dst := newFilled(10, 10, 1, 2, 3)
			before := dst.Clone()

			err := d.Apply(context.Background(), tt.f, newPattern(10, 10), dst)
			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("Apply() = %v, want *StageError", err)
			}
			if se.Filter != tt.f.Name() || se.Stage != tt.stage {
				t.Errorf("StageError = %+v, want filter %s stage %s", se, tt.f.Name(), tt.stage)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Apply() = %v, want %v", err, tt.want)
			}
			if !dst.Equal(before) {
				t.Error("failed pipeline modified the destination")
			}
			if n := d.Compute().LiveSurfaces(); n != 0 {
				t.Errorf("live surfaces = %d, want 0", n)
			}
		})
	}
}

func TestApplyRejectsBadRasters(t *testing.T) {
	d := newTestDispatcher(t)
	ok := NewRaster(4, 4)
	tests := []struct {
		name     string
		src, dst *Raster
		want     error
	}{
		{"nil dst", ok, nil, ErrMalformedBuffer},
		{"nil src", nil, ok, ErrMalformedBuffer},
		{"short store", &Raster{width: 4, height: 4, data: make([]uint8, 3)}, ok, ErrMalformedBuffer},
		{"incompatible", NewRaster(5, 4), ok, ErrIncompatible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Apply(context.Background(), InvertFilter{}, tt.src, tt.dst)
			if !errors.Is(err, tt.want) {
				t.Errorf("Apply() = %v, want %v", err, tt.want)
			}
			if !strings.Contains(err.Error(), "invert") {
				t.Errorf("error %q should name the filter", err)
			}
		})
	}
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestApplySameDestinationSerialized holds the first frame inside a stage
// while two more frames for the same destination arrive. The middle frame
// is superseded; the destination only ever holds complete frames.
func TestApplySameDestinationSerialized(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	d := newTestDispatcher(t, WithStageHook(func(filter, stage string) {
		if filter == "invert" && stage == "invert" {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	}))

	const w, h = 32, 32
	dst := newFilled(w, h, 9, 9, 9)
	initial := dst.Clone()
	white := newFilled(w, h, 255, 255, 255)
	pattern := newPattern(w, h)
	last := newFilled(w, h, 40, 80, 120)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	run := func(i int, f Filter, src *Raster) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = d.Apply(context.Background(), f, src, dst)
		}()
	}
	l := d.lane(dst)

	run(0, InvertFilter{}, white)
	<-entered
	run(1, GrayscaleFilter{}, pattern)
	waitFor(t, func() bool { return l.latest.Load() == 2 })
	run(2, NoneFilter{}, last)
	waitFor(t, func() bool { return l.latest.Load() == 3 })

	// The first frame is parked mid-pipeline; nothing may be visible yet.
	if !dst.Equal(initial) {
		t.Fatal("destination changed before the pipeline finished")
	}
	close(release)
	wg.Wait()

	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("errs = %v", errs)
	}
	if !errors.Is(errs[1], ErrFrameSuperseded) {
		t.Errorf("middle frame = %v, want ErrFrameSuperseded", errs[1])
	}
	if !dst.Equal(last) {
		t.Error("destination does not hold the newest frame")
	}
}

// TestApplyConcurrentNeverMixes hammers one destination from several
// goroutines with a slow stage. Every observed result must be one whole
// frame.
func TestApplyConcurrentNeverMixes(t *testing.T) {
	d := newTestDispatcher(t, WithStageHook(func(_, stage string) {
		if stage == "copy" {
			time.Sleep(2 * time.Millisecond)
		}
	}))
	const w, h = 16, 16
	dst := NewRaster(w, h)
	black := newFilled(w, h, 0, 0, 0)
	white := newFilled(w, h, 255, 255, 255)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := black
			if i%2 == 1 {
				src = white
			}
			err := d.Apply(context.Background(), NoneFilter{}, src, dst)
			if err != nil && !errors.Is(err, ErrFrameSuperseded) {
				t.Errorf("Apply() = %v", err)
			}
		}()
	}
	wg.Wait()

	if !dst.Equal(black) && !dst.Equal(white) {
		t.Error("destination holds a mix of frames")
	}
}

func TestApplyDifferentDestinationsConcurrent(t *testing.T) {
	d := newTestDispatcher(t)
	src := newPattern(24, 24)
	want := NewRaster(24, 24)
	if err := d.Apply(context.Background(), ComicFilter{CellSize: 8, MaxAlpha: 0.35, Cutoff: 60, Contrast: 1.4, Saturation: 1.8}, src, want); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst := NewRaster(24, 24)
			f := ComicFilter{CellSize: 8, MaxAlpha: 0.35, Cutoff: 60, Contrast: 1.4, Saturation: 1.8}
			if err := d.Apply(context.Background(), f, src, dst); err != nil {
				t.Errorf("Apply() = %v", err)
				return
			}
			if !dst.Equal(want) {
				t.Error("concurrent comic differs from sequential result")
			}
		}()
	}
	wg.Wait()
}

func BenchmarkApplyCartoon(b *testing.B) {
	d := NewDispatcher(newSoftwareContext(b))
	src := newPattern(320, 240)
	dst := NewRaster(320, 240)
	b.ReportAllocs()
	for b.Loop() {
		if err := d.Apply(context.Background(), CartoonFilter{Levels: 6}, src, dst); err != nil {
			b.Fatal(err)
		}
	}
}
