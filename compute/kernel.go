package compute

// maxTaps is the largest kernel area supported by Kernel.
const maxTaps = 9

// Kernel is a small, immutable 2D convolution kernel of odd width and
// height. The anchor is the center tap.
type Kernel struct {
	name    string
	width   int
	height  int
	weights [maxTaps]float32
}

// Fixed kernels used by the convolution stage.
var (
	// BinomialRow is the 1x5 binomial [1 4 6 4 1]/16 applied along rows.
	BinomialRow = Kernel{name: "binomial-row", width: 5, height: 1,
		weights: [maxTaps]float32{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}}

	// BinomialColumn is the 5x1 binomial [1 4 6 4 1]/16 applied along columns.
	BinomialColumn = Kernel{name: "binomial-column", width: 1, height: 5,
		weights: [maxTaps]float32{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}}

	// SobelX is the horizontal Sobel derivative operator.
	SobelX = Kernel{name: "sobel-x", width: 3, height: 3,
		weights: [maxTaps]float32{
			-1, 0, 1,
			-2, 0, 2,
			-1, 0, 1,
		}}

	// SobelY is the vertical Sobel derivative operator.
	SobelY = Kernel{name: "sobel-y", width: 3, height: 3,
		weights: [maxTaps]float32{
			-1, -2, -1,
			0, 0, 0,
			1, 2, 1,
		}}
)

// Name returns the kernel identifier used in logs.
func (k Kernel) Name() string { return k.name }

// Width returns the number of columns.
func (k Kernel) Width() int { return k.width }

// Height returns the number of rows.
func (k Kernel) Height() int { return k.height }

// At returns the weight at column x, row y.
func (k Kernel) At(x, y int) float32 { return k.weights[y*k.width+x] }

// Weights returns a copy of the weights in row-major order.
func (k Kernel) Weights() []float32 {
	out := make([]float32, k.width*k.height)
	copy(out, k.weights[:len(out)])
	return out
}

// Tap is a single non-zero kernel weight with its offset from the anchor.
type Tap struct {
	DX, DY int
	W      float32
}

// Taps returns the non-zero weights of k as offsets from the anchor.
// GPU backends upload this form.
func (k Kernel) Taps() []Tap {
	hx, hy := k.width/2, k.height/2
	taps := make([]Tap, 0, k.width*k.height)
	for y := 0; y < k.height; y++ {
		for x := 0; x < k.width; x++ {
			if w := k.At(x, y); w != 0 {
				taps = append(taps, Tap{DX: x - hx, DY: y - hy, W: w})
			}
		}
	}
	return taps
}

func (k Kernel) valid() bool {
	return k.width > 0 && k.height > 0 && k.width%2 == 1 && k.height%2 == 1 &&
		k.width*k.height <= maxTaps
}
