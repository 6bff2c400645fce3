package compute

import (
	"math"

	"github.com/gogpu/framefx/internal/parallel"
)

// SoftwareBackend runs convolutions on the CPU, splitting the surface into
// row bands that execute on a worker pool.
type SoftwareBackend struct {
	workers int
	pool    *parallel.WorkerPool
}

// NewSoftwareBackend creates a CPU backend. workers <= 0 means GOMAXPROCS.
func NewSoftwareBackend(workers int) *SoftwareBackend {
	return &SoftwareBackend{workers: workers}
}

// Name returns the backend identifier.
func (b *SoftwareBackend) Name() string { return BackendSoftware }

// Init starts the worker pool.
func (b *SoftwareBackend) Init() error {
	if b.pool == nil {
		b.pool = parallel.NewWorkerPool(b.workers)
	}
	return nil
}

// Close stops the worker pool.
func (b *SoftwareBackend) Close() {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
}

// Convolve applies k depthwise with edge-replicate padding.
func (b *SoftwareBackend) Convolve(dst, src *Surface, k Kernel) error {
	w, h, ch := src.width, src.height, src.channels
	hx, hy := k.width/2, k.height/2
	in, out := src.data, dst.data

	b.forRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				for c := 0; c < ch; c++ {
					var acc float32
					for ky := 0; ky < k.height; ky++ {
						sy := clampIndex(y+ky-hy, h)
						row := sy * w
						for kx := 0; kx < k.width; kx++ {
							wt := k.weights[ky*k.width+kx]
							if wt == 0 {
								continue
							}
							sx := clampIndex(x+kx-hx, w)
							acc += wt * in[(row+sx)*ch+c]
						}
					}
					out[(y*w+x)*ch+c] = acc
				}
			}
		}
	})
	return nil
}

// Magnitude computes the element-wise Euclidean norm of gx and gy.
func (b *SoftwareBackend) Magnitude(dst, gx, gy *Surface) error {
	rowLen := dst.width * dst.channels
	b.forRows(dst.height, func(y0, y1 int) {
		for i := y0 * rowLen; i < y1*rowLen; i++ {
			x, y := float64(gx.data[i]), float64(gy.data[i])
			dst.data[i] = float32(math.Sqrt(x*x + y*y))
		}
	})
	return nil
}

func (b *SoftwareBackend) forRows(rows int, fn func(y0, y1 int)) {
	pool := b.pool
	if pool == nil {
		fn(0, rows)
		return
	}
	pool.ForBands(rows, fn)
}

// clampIndex replicates edge samples for out-of-range indices.
func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
