package framefx

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/gogpu/framefx/compute"
)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStageHook registers fn to be called before every pipeline stage with
// the filter and stage names. A panic in fn is reported like a failing
// stage.
func WithStageHook(fn func(filter, stage string)) DispatcherOption {
	return func(d *Dispatcher) { d.hook = fn }
}

// Dispatcher runs filter pipelines from a source raster into a
// destination raster.
//
// Apply is transactional on the destination: every stage works on a
// scratch raster owned by the Dispatcher, and dst is overwritten by one
// final copy only after all stages succeeded. A failing or panicking
// stage is logged with the filter name and reported as a *StageError;
// dst then keeps its previous content.
//
// Calls that target the same destination are serialized with a queue of
// depth one. A call still waiting when a newer call for the same
// destination arrives is dropped with ErrFrameSuperseded, so a slow frame
// never lets stale frames pile up behind it. Calls for different
// destinations run concurrently.
//
// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	cc   *compute.Context
	hook func(filter, stage string)

	mu    sync.Mutex
	lanes map[weak.Pointer[Raster]]*lane
}

// lane serializes the frames written to one destination raster.
type lane struct {
	// latest is the generation of the newest call for this destination.
	latest atomic.Uint64

	mu  sync.Mutex
	out *Raster // pipeline result, copied to dst on success
	aux *Raster // edge maps
}

// NewDispatcher creates a Dispatcher that runs convolutions on cc.
// A nil cc means compute.Default().
func NewDispatcher(cc *compute.Context, opts ...DispatcherOption) *Dispatcher {
	if cc == nil {
		cc = compute.Default()
	}
	d := &Dispatcher{
		cc:    cc,
		lanes: make(map[weak.Pointer[Raster]]*lane),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Compute returns the compute context used for convolutions.
func (d *Dispatcher) Compute() *compute.Context { return d.cc }

// Apply runs f on src and writes the result to dst. src and dst must be
// compatible and may be the same raster. A nil f copies src.
//
// Errors are already logged when Apply returns; a frame loop may ignore
// them and continue with the next frame.
func (d *Dispatcher) Apply(ctx context.Context, f Filter, src, dst *Raster) error {
	if f == nil {
		f = NoneFilter{}
	}
	name := f.Name()
	if err := dst.Validate(); err != nil {
		return d.fail(&StageError{Filter: name, Stage: "validate", Err: err})
	}
	if err := src.Validate(); err != nil {
		return d.fail(&StageError{Filter: name, Stage: "validate", Err: err})
	}
	if !dst.Compatible(src) {
		return d.fail(&StageError{Filter: name, Stage: "validate", Err: fmt.Errorf("%w: %dx%d into %dx%d",
			ErrIncompatible, src.width, src.height, dst.width, dst.height)})
	}

	l := d.lane(dst)
	gen := l.latest.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.latest.Load() != gen {
		Logger().Debug("framefx: frame superseded", "filter", name)
		return ErrFrameSuperseded
	}

	l.prepare(dst.width, dst.height)
	begin := time.Now()
	stages, err := d.recipe(ctx, f, src, l)
	if err != nil {
		return d.fail(&StageError{Filter: name, Err: err})
	}
	for _, st := range stages {
		if err := d.runStage(name, st); err != nil {
			return d.fail(err)
		}
	}
	copy(dst.data, l.out.data)
	Logger().Debug("framefx: frame filtered", "filter", name, "elapsed", time.Since(begin))
	return nil
}

func (d *Dispatcher) fail(err error) error {
	if se, ok := err.(*StageError); ok {
		Logger().Warn("framefx: filter failed", "filter", se.Filter, "stage", se.Stage, "err", se.Err)
	}
	return err
}

// lane returns the lane for dst, creating it on first use. The lane is
// dropped once dst is garbage collected.
func (d *Dispatcher) lane(dst *Raster) *lane {
	key := weak.Make(dst)
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.lanes[key]; ok {
		return l
	}
	l := &lane{}
	d.lanes[key] = l
	runtime.AddCleanup(dst, d.dropLane, key)
	return l
}

func (d *Dispatcher) dropLane(key weak.Pointer[Raster]) {
	d.mu.Lock()
	delete(d.lanes, key)
	d.mu.Unlock()
}

// prepare (re)allocates the scratch rasters when the frame size changes.
func (l *lane) prepare(w, h int) {
	if l.out != nil && l.out.width == w && l.out.height == h {
		return
	}
	l.out = NewRaster(w, h)
	l.aux = NewRaster(w, h)
}

type stage struct {
	name string
	run  func() error
}

func (d *Dispatcher) runStage(filter string, st stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Filter: filter, Stage: st.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if d.hook != nil {
		d.hook(filter, st.name)
	}
	if err := st.run(); err != nil {
		return &StageError{Filter: filter, Stage: st.name, Err: err}
	}
	return nil
}

// recipe lists the stages of f. Every stage writes to l.out or l.aux.
func (d *Dispatcher) recipe(ctx context.Context, f Filter, src *Raster, l *lane) ([]stage, error) {
	out, aux := l.out, l.aux
	cp := stage{"copy", func() error { return out.CopyFrom(src) }}

	switch f := f.(type) {
	case NoneFilter:
		return []stage{cp}, nil
	case GrayscaleFilter:
		return []stage{cp, {"grayscale", func() error { Grayscale(out); return nil }}}, nil
	case InvertFilter:
		return []stage{cp, {"invert", func() error { Invert(out); return nil }}}, nil
	case CartoonFilter:
		f = f.withDefaults()
		return []stage{
			{"blur", func() error { return d.materialize(ctx, GaussianBlur, src, out) }},
			{"posterize", func() error { return Posterize(out, f.Levels) }},
			{"sobel", func() error { return d.materialize(ctx, SobelEdges, out, aux) }},
			{"ink", func() error { Invert(aux); return nil }},
			{"compose", func() error { return Compose(out, aux, Multiply) }},
		}, nil
	case ComicFilter:
		f = f.withDefaults()
		return []stage{
			cp,
			{"boost", func() error { return BoostContrastSaturation(out, f.Contrast, f.Saturation) }},
			{"halftone", func() error { return Halftone(out, f.CellSize, f.MaxAlpha) }},
			{"sobel", func() error { return d.materialize(ctx, SobelEdges, out, aux) }},
			{"threshold", func() error { return ThresholdDilate(aux, f.Cutoff) }},
			{"compose", func() error { return Compose(out, aux, Multiply) }},
		}, nil
	case SketchFilter:
		return []stage{
			cp,
			{"luma", func() error { LumaGrayscale(out); return nil }},
			{"sobel", func() error { return d.materialize(ctx, SobelEdges, out, aux) }},
			{"invert", func() error { Invert(aux); return nil }},
			{"compose", func() error { return Compose(out, aux, Darken) }},
		}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownFilter, f)
}

type convolution func(context.Context, *compute.Context, *Raster) (*compute.Surface, error)

// materialize runs op on in and writes the result into out, releasing the
// result surface.
func (d *Dispatcher) materialize(ctx context.Context, op convolution, in, out *Raster) error {
	s, err := op(ctx, d.cc, in)
	if err != nil {
		return err
	}
	defer s.Release()
	return Materialize(s, out)
}
