package blend

// div255 returns x/255 rounded to nearest without using division.
//
// Formula: ((x + 128) + ((x + 128) >> 8)) >> 8
//
// Exact for every x in [0, 255*255], so products of two bytes round the
// same way on every platform.
func div255(x uint16) uint16 {
	t := x + 128
	return (t + (t >> 8)) >> 8
}

// MulDiv255 returns round(a*b/255).
func MulDiv255(a, b byte) byte {
	return byte(div255(uint16(a) * uint16(b)))
}

// Lerp255 moves d toward s by a/255, rounded to nearest.
func Lerp255(d, s, a byte) byte {
	return byte(div255(uint16(s)*uint16(a) + uint16(d)*uint16(255-a)))
}

func minByte(a, b byte) byte {
	if a < b {
		return a
	}
	return b
}
