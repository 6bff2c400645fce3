// Package blend composites 8-bit RGBA pixels.
//
// Colors are straight (not premultiplied) RGBA with 8 bits per channel,
// matching the frame rasters of package framefx. All arithmetic rounds to
// nearest, so results are reproducible byte for byte.
package blend

import "fmt"

// Mode selects how a source pixel is combined with a destination pixel.
type Mode int

const (
	// ModeMultiply multiplies channels: D = S * D / 255.
	ModeMultiply Mode = iota
	// ModeDarken keeps the smaller channel: D = min(S, D).
	ModeDarken
	// ModeSourceOver replaces the destination color: D = S.
	ModeSourceOver
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeMultiply:
		return "multiply"
	case ModeDarken:
		return "darken"
	case ModeSourceOver:
		return "source-over"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Func blends one source pixel into one destination pixel.
type Func func(sr, sg, sb, sa, dr, dg, db, da byte) (byte, byte, byte, byte)

// GetFunc returns the pixel function for mode, or nil if mode is unknown.
func GetFunc(mode Mode) Func {
	switch mode {
	case ModeMultiply:
		return blendMultiply
	case ModeDarken:
		return blendDarken
	case ModeSourceOver:
		return blendSourceOver
	default:
		return nil
	}
}

// separable applies a per-channel function to color and keeps the
// destination alpha. The filter pipeline only blends opaque frames, so
// the source alpha does not take part.
func separable(sr, sg, sb, dr, dg, db, da byte, ch func(s, d byte) byte) (byte, byte, byte, byte) {
	return ch(sr, dr), ch(sg, dg), ch(sb, db), da
}

func blendMultiply(sr, sg, sb, _, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separable(sr, sg, sb, dr, dg, db, da, MulDiv255)
}

func blendDarken(sr, sg, sb, _, dr, dg, db, da byte) (byte, byte, byte, byte) {
	return separable(sr, sg, sb, dr, dg, db, da, minByte)
}

// blendSourceOver replaces the destination color and keeps its alpha.
func blendSourceOver(sr, sg, sb, _, _, _, _, da byte) (byte, byte, byte, byte) {
	return sr, sg, sb, da
}
