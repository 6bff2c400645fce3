package framefx

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrMalformedBuffer is returned when a raster has no pixel store,
	// non-positive dimensions, or a store whose length is not w*h*4.
	ErrMalformedBuffer = errors.New("framefx: malformed raster buffer")

	// ErrIncompatible is returned when two rasters that must share
	// dimensions do not.
	ErrIncompatible = errors.New("framefx: incompatible raster dimensions")

	// ErrInvalidLevels is returned by Posterize for levels < 2.
	ErrInvalidLevels = errors.New("framefx: posterize levels must be >= 2")

	// ErrInvalidParameter is returned for out-of-range stage parameters.
	ErrInvalidParameter = errors.New("framefx: invalid stage parameter")

	// ErrFrameSuperseded is returned by Dispatcher.Apply when a newer frame
	// for the same destination arrived while this one was waiting.
	ErrFrameSuperseded = errors.New("framefx: frame superseded by a newer frame")

	// ErrUnknownFilter is returned by ParseFilter for unrecognized names.
	ErrUnknownFilter = errors.New("framefx: unknown filter")
)

// StageError reports a pipeline stage that failed while running a filter.
// The destination raster is left untouched when a StageError is returned.
type StageError struct {
	// Filter is the name of the filter that was running.
	Filter string

	// Stage names the failing stage (e.g. "posterize", "sobel").
	Stage string

	// Err is the underlying failure. Recovered panics are wrapped in an
	// error value.
	Err error
}

func (e *StageError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("framefx: filter %s: %v", e.Filter, e.Err)
	}
	return fmt.Sprintf("framefx: filter %s: stage %s: %v", e.Filter, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
