package compute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
)

// Option configures a Context.
type Option func(*options)

type options struct {
	preferred string
	cfg       Config
}

// WithBackend makes the named backend the first one tried. The software
// backend remains the fallback unless name is BackendSoftware, in which
// case no other backend is tried.
func WithBackend(name string) Option {
	return func(o *options) { o.preferred = name }
}

// WithWorkers sets the number of CPU workers used by the software backend.
func WithWorkers(n int) Option {
	return func(o *options) { o.cfg.Workers = n }
}

// WithDeviceProvider lets a GPU backend share the host application's
// device instead of opening its own.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) { o.cfg.DeviceProvider = p }
}

// Context owns the backend that executes surface operations.
//
// The backend is selected lazily by the first EnsureReady call. Selection
// runs exactly once: concurrent callers wait for the in-flight
// initialization instead of starting their own, and a failed hardware
// backend is replaced by the software backend without being retried.
//
// Context is safe for concurrent use.
type Context struct {
	opts options

	start sync.Once
	ready chan struct{}

	// Written once before ready is closed.
	backend Backend
	initErr error

	// mu is held for reading while a backend call runs and for writing
	// while Close releases the backend.
	mu     sync.RWMutex
	closed atomic.Bool
	live   atomic.Int64

	// fallbacks counts backends skipped because Init failed.
	fallbacks atomic.Int32
}

// New creates a Context. No backend work happens until EnsureReady.
func New(opts ...Option) *Context {
	c := &Context{ready: make(chan struct{})}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

var defaultContext = sync.OnceValue(func() *Context { return New() })

// Default returns the process-wide Context.
func Default() *Context { return defaultContext() }

// EnsureReady selects and initializes the backend on first use and blocks
// until it is ready. It is idempotent and cheap after the first call.
//
// If ctx is done before initialization completes, EnsureReady returns
// ctx.Err(); initialization keeps running for later callers.
func (c *Context) EnsureReady(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.start.Do(func() {
		go func() {
			defer close(c.ready)
			c.backend, c.initErr = c.selectBackend()
		}()
	})
	select {
	case <-c.ready:
		return c.initErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Context) selectBackend() (Backend, error) {
	names := candidates(c.opts.preferred)
	var errs []error
	for _, name := range names {
		f := factory(name)
		if f == nil {
			continue
		}
		b := f(c.opts.cfg)
		if b == nil {
			continue
		}
		begin := time.Now()
		if err := initBackend(b); err != nil {
			c.fallbacks.Add(1)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			slogger().Warn("compute: backend unavailable, falling back",
				"backend", name, "err", err)
			continue
		}
		slogger().Info("compute: backend selected",
			"backend", b.Name(), "init", time.Since(begin))
		return b, nil
	}
	return nil, errors.Join(append([]error{ErrBackendUnavailable}, errs...)...)
}

// initBackend runs b.Init, converting a panic into an error so that a
// crashing driver still falls back.
func initBackend(b Backend) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("init panicked: %v", r)
		}
	}()
	return b.Init()
}

// Backend returns the name of the selected backend, or "" before the
// first successful EnsureReady.
func (c *Context) Backend() string {
	select {
	case <-c.ready:
		if c.backend != nil {
			return c.backend.Name()
		}
	default:
	}
	return ""
}

// Fallbacks returns how many backends failed to initialize before the
// current one was selected.
func (c *Context) Fallbacks() int { return int(c.fallbacks.Load()) }

// LiveSurfaces returns the number of surfaces allocated by this Context
// that have not been released.
func (c *Context) LiveSurfaces() int { return int(c.live.Load()) }

// Close releases the backend. It waits for an in-flight initialization
// and for backend calls already running; later calls fail with ErrClosed.
// Surfaces must not be used with a closed Context.
func (c *Context) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	started := true
	c.start.Do(func() {
		started = false
		close(c.ready)
	})
	if !started {
		return
	}
	<-c.ready
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		c.backend.Close()
	}
}

// Tidy runs fn with a fresh Scope and releases every surface allocated
// through that scope except the one fn returns, on every exit path
// including errors and panics. The returned surface is owned by the
// caller and must be released after use.
func (c *Context) Tidy(fn func(s *Scope) (*Surface, error)) (result *Surface, err error) {
	s := &Scope{ctx: c}
	defer func() {
		if r := recover(); r != nil {
			s.release(nil)
			panic(r)
		}
		if err != nil {
			s.release(nil)
			result = nil
			return
		}
		s.release(result)
	}()
	return fn(s)
}

// run calls fn with the ready backend. Close blocks until fn returns.
func (c *Context) run(ctx context.Context, fn func(b Backend) error) error {
	if err := c.EnsureReady(ctx); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return ErrClosed
	}
	return fn(c.backend)
}

func (c *Context) check(surfaces ...*Surface) error {
	for _, s := range surfaces {
		if s == nil || s.Released() {
			return ErrReleased
		}
		if s.owner != c {
			return ErrForeignSurface
		}
	}
	return nil
}

// Convolve applies k to each channel of src and writes the result to dst.
// dst and src must have the same shape and must not alias.
func (c *Context) Convolve(ctx context.Context, dst, src *Surface, k Kernel) error {
	if err := c.check(dst, src); err != nil {
		return err
	}
	if !sameShape(dst, src) {
		return fmt.Errorf("%w: convolve %s into %s", ErrShapeMismatch, src, dst)
	}
	if dst == src {
		return fmt.Errorf("%w: convolve in place", ErrShapeMismatch)
	}
	if !k.valid() {
		return fmt.Errorf("compute: invalid kernel %q (%dx%d)", k.name, k.width, k.height)
	}
	return c.run(ctx, func(b Backend) error { return b.Convolve(dst, src, k) })
}

// Magnitude writes sqrt(gx² + gy²) into dst. All three surfaces must have
// the same shape.
func (c *Context) Magnitude(ctx context.Context, dst, gx, gy *Surface) error {
	if err := c.check(dst, gx, gy); err != nil {
		return err
	}
	if !sameShape(dst, gx) || !sameShape(dst, gy) {
		return fmt.Errorf("%w: magnitude of %s and %s into %s", ErrShapeMismatch, gx, gy, dst)
	}
	return c.run(ctx, func(b Backend) error { return b.Magnitude(dst, gx, gy) })
}
