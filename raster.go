package framefx

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
)

// Raster is a fixed-size RGBA pixel buffer: width*height samples of four
// 8-bit channels (R, G, B, A), row-major and tightly packed.
//
// The dimensions never change for the lifetime of a Raster. Stages either
// modify a Raster in place or write into a separately allocated Raster of
// the same dimensions.
type Raster struct {
	width  int
	height int
	data   []uint8
}

// NewRaster allocates a zeroed (transparent black) raster.
// It panics if width or height is not positive.
func NewRaster(width, height int) *Raster {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("framefx: invalid raster size %dx%d", width, height))
	}
	return &Raster{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}
}

// WrapRaster wraps an existing RGBA store without copying it.
// The store must hold exactly width*height*4 bytes.
func WrapRaster(width, height int, pix []uint8) (*Raster, error) {
	r := &Raster{width: width, height: height, data: pix}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate reports ErrMalformedBuffer if the raster violates its size
// invariant. A nil Raster is malformed.
func (r *Raster) Validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil raster", ErrMalformedBuffer)
	case r.width <= 0 || r.height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrMalformedBuffer, r.width, r.height)
	case r.data == nil:
		return fmt.Errorf("%w: missing pixel store", ErrMalformedBuffer)
	case len(r.data) != r.width*r.height*4:
		return fmt.Errorf("%w: store has %d bytes, want %d",
			ErrMalformedBuffer, len(r.data), r.width*r.height*4)
	}
	return nil
}

// Width returns the width of the raster.
func (r *Raster) Width() int { return r.width }

// Height returns the height of the raster.
func (r *Raster) Height() int { return r.height }

// Data returns the raw RGBA store.
func (r *Raster) Data() []uint8 { return r.data }

// Compatible reports whether r and o have identical dimensions.
func (r *Raster) Compatible(o *Raster) bool {
	return r != nil && o != nil && r.width == o.width && r.height == o.height
}

// RGBA returns the four channels of the pixel at (x, y).
// Out-of-bounds coordinates return transparent black.
func (r *Raster) RGBA(x, y int) (red, green, blue, alpha uint8) {
	if x < 0 || x >= r.width || y < 0 || y >= r.height {
		return 0, 0, 0, 0
	}
	i := (y*r.width + x) * 4
	return r.data[i], r.data[i+1], r.data[i+2], r.data[i+3]
}

// SetRGBA sets the pixel at (x, y). Out-of-bounds writes are ignored.
func (r *Raster) SetRGBA(x, y int, red, green, blue, alpha uint8) {
	if x < 0 || x >= r.width || y < 0 || y >= r.height {
		return
	}
	i := (y*r.width + x) * 4
	r.data[i+0] = red
	r.data[i+1] = green
	r.data[i+2] = blue
	r.data[i+3] = alpha
}

// Fill sets every pixel to the given color.
func (r *Raster) Fill(red, green, blue, alpha uint8) {
	for i := 0; i < len(r.data); i += 4 {
		r.data[i+0] = red
		r.data[i+1] = green
		r.data[i+2] = blue
		r.data[i+3] = alpha
	}
}

// CopyFrom copies src into r. Both rasters must be compatible.
func (r *Raster) CopyFrom(src *Raster) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if !r.Compatible(src) {
		return fmt.Errorf("%w: %dx%d <- %dx%d", ErrIncompatible,
			r.width, r.height, src.width, src.height)
	}
	copy(r.data, src.data)
	return nil
}

// Clone returns a deep copy of the raster.
func (r *Raster) Clone() *Raster {
	c := &Raster{width: r.width, height: r.height, data: make([]uint8, len(r.data))}
	copy(c.data, r.data)
	return c
}

// Equal reports whether r and o have the same dimensions and pixels.
func (r *Raster) Equal(o *Raster) bool {
	if !r.Compatible(o) {
		return false
	}
	for i := range r.data {
		if r.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// ToImage copies the raster into a new image.NRGBA.
func (r *Raster) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.width, r.height))
	copy(img.Pix, r.data)
	return img
}

// RasterFromImage converts any image into a new raster of the same size.
func RasterFromImage(img image.Image) *Raster {
	b := img.Bounds()
	r := NewRaster(b.Dx(), b.Dy())
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Stride == b.Dx()*4 {
		copy(r.data, nrgba.Pix)
		return r
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			r.SetRGBA(x, y, c.R, c.G, c.B, c.A)
		}
	}
	return r
}

// SavePNG writes the raster to a PNG file.
func (r *Raster) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := png.Encode(f, r.ToImage()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// At implements the image.Image interface.
func (r *Raster) At(x, y int) color.Color {
	red, green, blue, alpha := r.RGBA(x, y)
	return color.NRGBA{R: red, G: green, B: blue, A: alpha}
}

// Bounds implements the image.Image interface.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.width, r.height)
}

// ColorModel implements the image.Image interface.
func (r *Raster) ColorModel() color.Model {
	return color.NRGBAModel
}
