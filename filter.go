package framefx

import (
	"fmt"
	"strings"
)

// Filter is one of the pipelines a Dispatcher can run: NoneFilter,
// GrayscaleFilter, InvertFilter, CartoonFilter, ComicFilter or
// SketchFilter. The set is closed; filters are plain values and carry no
// state between frames.
type Filter interface {
	// Name returns the identifier used by ParseFilter and in logs.
	Name() string

	isFilter()
}

// NoneFilter copies the source unchanged.
type NoneFilter struct{}

// GrayscaleFilter replaces each pixel by the mean of its channels.
type GrayscaleFilter struct{}

// InvertFilter inverts the color channels.
type InvertFilter struct{}

// CartoonFilter blurs and posterizes the frame, then darkens it along the
// edges of the posterized result. Zero Levels means the default of 6.
type CartoonFilter struct {
	Levels int
}

// ComicFilter boosts contrast and saturation, lays a halftone dot screen
// over the result and inks its hard edges.
//
// Zero CellSize, Contrast and Saturation take their defaults (8, 1.4 and
// 1.8). MaxAlpha and Cutoff are used as given, so the zero value draws no
// dots and inks every nonzero edge.
type ComicFilter struct {
	CellSize   int
	MaxAlpha   float64
	Cutoff     uint8
	Contrast   float64
	Saturation float64
}

// SketchFilter renders a pencil-like grayscale with dark edges.
type SketchFilter struct{}

func (NoneFilter) Name() string      { return "none" }
func (GrayscaleFilter) Name() string { return "grayscale" }
func (InvertFilter) Name() string    { return "invert" }
func (CartoonFilter) Name() string   { return "cartoon" }
func (ComicFilter) Name() string     { return "comic" }
func (SketchFilter) Name() string    { return "sketch" }

func (NoneFilter) isFilter()      {}
func (GrayscaleFilter) isFilter() {}
func (InvertFilter) isFilter()    {}
func (CartoonFilter) isFilter()   {}
func (ComicFilter) isFilter()     {}
func (SketchFilter) isFilter()    {}

// Comic color boost factors.
const (
	comicContrast   = 1.4
	comicSaturation = 1.8
)

func (f CartoonFilter) withDefaults() CartoonFilter {
	if f.Levels == 0 {
		f.Levels = DefaultParams().Levels
	}
	return f
}

func (f ComicFilter) withDefaults() ComicFilter {
	if f.CellSize == 0 {
		f.CellSize = DefaultParams().CellSize
	}
	if f.Contrast == 0 {
		f.Contrast = comicContrast
	}
	if f.Saturation == 0 {
		f.Saturation = comicSaturation
	}
	return f
}

// Params holds the user-tunable filter parameters.
type Params struct {
	// CellSize is the halftone cell edge in pixels.
	CellSize int

	// Levels is the number of posterize levels per channel.
	Levels int

	// Cutoff is the edge intensity above which comic edges turn black.
	Cutoff int

	// MaxAlpha is the opacity of a fully covered halftone dot.
	MaxAlpha float64
}

// DefaultParams returns the documented defaults: cell size 8, 6 levels,
// cutoff 60 and max alpha 0.35.
func DefaultParams() Params {
	return Params{CellSize: 8, Levels: 6, Cutoff: 60, MaxAlpha: 0.35}
}

// Validate reports ErrInvalidLevels or ErrInvalidParameter for values the
// stages would reject.
func (p Params) Validate() error {
	switch {
	case p.Levels < 2:
		return fmt.Errorf("%w: got %d", ErrInvalidLevels, p.Levels)
	case p.CellSize < 1:
		return fmt.Errorf("%w: cell size %d", ErrInvalidParameter, p.CellSize)
	case p.Cutoff < 0 || p.Cutoff > 255:
		return fmt.Errorf("%w: cutoff %d", ErrInvalidParameter, p.Cutoff)
	case !(p.MaxAlpha >= 0 && p.MaxAlpha <= 1):
		return fmt.Errorf("%w: max alpha %v", ErrInvalidParameter, p.MaxAlpha)
	}
	return nil
}

// FilterNames lists the identifiers accepted by ParseFilter.
var FilterNames = []string{"none", "grayscale", "invert", "cartoon", "comic", "sketch"}

// ParseFilter maps a filter identifier to its Filter, filling tunable
// fields from p. Matching ignores case and surrounding space.
func ParseFilter(name string, p Params) (Filter, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return NoneFilter{}, nil
	case "grayscale":
		return GrayscaleFilter{}, nil
	case "invert":
		return InvertFilter{}, nil
	case "cartoon":
		return CartoonFilter{Levels: p.Levels}, nil
	case "comic":
		return ComicFilter{
			CellSize:   p.CellSize,
			MaxAlpha:   p.MaxAlpha,
			Cutoff:     uint8(p.Cutoff), //nolint:gosec // range checked by Validate
			Contrast:   comicContrast,
			Saturation: comicSaturation,
		}, nil
	case "sketch":
		return SketchFilter{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
}

// DefaultFilter returns the filter named name with DefaultParams.
func DefaultFilter(name string) (Filter, error) {
	return ParseFilter(name, DefaultParams())
}
