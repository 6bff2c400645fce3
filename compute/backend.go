package compute

import (
	"errors"

	"github.com/gogpu/gpucontext"
)

// Common compute errors.
var (
	// ErrBackendUnavailable is returned when no registered backend could be
	// initialized.
	ErrBackendUnavailable = errors.New("compute: no backend available")

	// ErrClosed is returned by operations on a closed Context.
	ErrClosed = errors.New("compute: context closed")

	// ErrReleased is returned when a released Surface is used.
	ErrReleased = errors.New("compute: surface already released")

	// ErrShapeMismatch is returned when operands have incompatible shapes.
	ErrShapeMismatch = errors.New("compute: shape mismatch")

	// ErrForeignSurface is returned when a Surface from another Context is used.
	ErrForeignSurface = errors.New("compute: surface belongs to another context")
)

// Backend executes the heavy numeric kernels of a Context.
//
// Implementations receive validated operands: shapes match, surfaces are
// live, and kernels have odd dimensions. A Backend is used by one Context
// and may assume calls are not concurrent with Close.
type Backend interface {
	// Name returns the backend identifier (e.g. "software", "wgpu").
	Name() string

	// Init acquires backend resources. It is called once, before any
	// other method. A non-nil error makes the Context fall back to the
	// next backend.
	Init() error

	// Close releases backend resources.
	Close()

	// Convolve applies k to every channel of src independently and writes
	// the same-size result to dst. Samples outside the surface take the
	// value of the nearest edge sample.
	Convolve(dst, src *Surface, k Kernel) error

	// Magnitude writes sqrt(gx*gx + gy*gy) element-wise into dst.
	Magnitude(dst, gx, gy *Surface) error
}

// Config is passed to backend factories.
type Config struct {
	// Workers sizes CPU worker pools. Zero means GOMAXPROCS.
	Workers int

	// DeviceProvider, when non-nil, supplies a GPU device owned by the
	// host application. GPU backends should use it instead of opening
	// their own device.
	DeviceProvider gpucontext.DeviceProvider
}
