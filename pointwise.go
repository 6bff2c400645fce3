package framefx

// Grayscale replaces R, G and B of every pixel with their unweighted mean,
// truncated toward zero. Alpha is untouched.
//
// A nil or malformed raster is logged and left alone.
func Grayscale(r *Raster) {
	GrayscaleRegion(r, 0, 0)
}

// GrayscaleRegion is Grayscale restricted to the top-left width×height
// pixels. A zero width or height means the raster's own dimension; larger
// values are clamped to it.
func GrayscaleRegion(r *Raster, width, height int) {
	forRegion(r, "grayscale", width, height, func(px []uint8) {
		avg := uint8((uint16(px[0]) + uint16(px[1]) + uint16(px[2])) / 3)
		px[0], px[1], px[2] = avg, avg, avg
	})
}

// Invert replaces R, G and B of every pixel with 255 minus the value.
// Alpha is untouched. Applying Invert twice restores the raster exactly.
//
// A nil or malformed raster is logged and left alone.
func Invert(r *Raster) {
	InvertRegion(r, 0, 0)
}

// InvertRegion is Invert restricted to the top-left width×height pixels,
// with the same override rules as GrayscaleRegion.
func InvertRegion(r *Raster, width, height int) {
	forRegion(r, "invert", width, height, func(px []uint8) {
		px[0], px[1], px[2] = 255-px[0], 255-px[1], 255-px[2]
	})
}

// LumaGrayscale replaces R, G and B with the weighted luma
// 0.3R + 0.59G + 0.11B, rounded. Alpha is untouched.
func LumaGrayscale(r *Raster) {
	forRegion(r, "luma grayscale", 0, 0, func(px []uint8) {
		// Weights scaled by 100 keep the sum in integers.
		l := (30*uint32(px[0]) + 59*uint32(px[1]) + 11*uint32(px[2]) + 50) / 100
		px[0], px[1], px[2] = uint8(l), uint8(l), uint8(l)
	})
}

// forRegion calls fn with each 4-byte pixel of the top-left region.
func forRegion(r *Raster, op string, width, height int, fn func(px []uint8)) {
	if err := r.Validate(); err != nil {
		Logger().Warn("framefx: skipping pointwise stage", "stage", op, "err", err)
		return
	}
	if width <= 0 || width > r.width {
		width = r.width
	}
	if height <= 0 || height > r.height {
		height = r.height
	}
	stride := r.width * 4
	for y := 0; y < height; y++ {
		row := r.data[y*stride : y*stride+width*4]
		for i := 0; i < len(row); i += 4 {
			fn(row[i : i+4 : i+4])
		}
	}
}
