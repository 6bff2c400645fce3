package framefx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// DefaultFPS is the nominal frame rate of a Loop.
const DefaultFPS = 30

// Source produces frames. ReadFrame fills dst with the next frame and
// returns io.EOF when no frames remain. The frame size is fixed for the
// lifetime of a Loop.
type Source interface {
	ReadFrame(ctx context.Context, dst *Raster) error
}

// Sink consumes processed frames. The raster is only valid for the
// duration of the call.
type Sink interface {
	WriteFrame(ctx context.Context, r *Raster) error
}

// FilterSelector returns the filter for the next frame. It is called once
// per frame, so the selection may change between frames.
type FilterSelector func() Filter

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithFPS sets the frame cadence. A value <= 0 runs frames back to back
// without pacing.
func WithFPS(fps float64) LoopOption {
	return func(l *Loop) { l.fps = fps }
}

// WithMaxFrames stops the loop after n frames. Zero means no limit.
func WithMaxFrames(n int) LoopOption {
	return func(l *Loop) { l.maxFrames = n }
}

// Loop drives Source → Dispatcher → Sink, one frame per tick.
//
// Ticks that fire while a frame is still being processed are dropped.
// A frame whose filter fails still reaches the Sink with the previous
// output, so the export stream keeps its cadence.
type Loop struct {
	d      *Dispatcher
	src    Source
	sink   Sink
	choose FilterSelector

	fps       float64
	maxFrames int

	in  *Raster
	out *Raster

	frames   atomic.Int64
	failures atomic.Int64
}

// NewLoop creates a Loop for frames of width×height. A nil choose always
// selects NoneFilter.
func NewLoop(d *Dispatcher, src Source, sink Sink, choose FilterSelector, width, height int, opts ...LoopOption) *Loop {
	if choose == nil {
		choose = func() Filter { return NoneFilter{} }
	}
	l := &Loop{
		d:      d,
		src:    src,
		sink:   sink,
		choose: choose,
		fps:    DefaultFPS,
		in:     NewRaster(width, height),
		out:    NewRaster(width, height),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes frames until the source is exhausted, the frame limit is
// reached, or ctx is cancelled. Cancellation is observed between frames;
// a frame in progress completes.
//
// Run returns nil on io.EOF and on reaching the frame limit, ctx.Err()
// on cancellation, and the error of a failing Source or Sink otherwise.
// Filter failures never stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if l.fps > 0 {
		t := time.NewTicker(time.Duration(float64(time.Second) / l.fps))
		defer t.Stop()
		tick = t.C
	}
	for {
		if l.maxFrames > 0 && l.frames.Load() >= int64(l.maxFrames) {
			return nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		done, err := l.step(ctx)
		if done || err != nil {
			return err
		}
	}
}

// step processes one frame. done reports that the source is exhausted.
func (l *Loop) step(ctx context.Context) (done bool, err error) {
	if err := l.src.ReadFrame(ctx, l.in); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, fmt.Errorf("framefx: read frame: %w", err)
	}
	if err := l.d.Apply(ctx, l.choose(), l.in, l.out); err != nil {
		l.failures.Add(1)
	}
	if err := l.sink.WriteFrame(ctx, l.out); err != nil {
		return false, fmt.Errorf("framefx: write frame: %w", err)
	}
	l.frames.Add(1)
	return false, nil
}

// Frames returns the number of frames delivered to the sink.
func (l *Loop) Frames() int64 { return l.frames.Load() }

// Failures returns the number of frames whose filter failed.
func (l *Loop) Failures() int64 { return l.failures.Load() }
