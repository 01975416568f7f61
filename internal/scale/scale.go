// Package scale maps price and index domains onto pixel space.
package scale

import "math"

// Point is a pixel coordinate.
type Point struct {
	X float64
	Y float64
}

// Padding insets a plotting area from its frame.
type Padding struct {
	Top    float64 `mapstructure:"top"`
	Right  float64 `mapstructure:"right"`
	Bottom float64 `mapstructure:"bottom"`
	Left   float64 `mapstructure:"left"`
}

// DefaultPadding leaves room for price labels on both sides.
var DefaultPadding = Padding{Top: 20, Right: 60, Bottom: 30, Left: 50}

// Bounds returns the min and max of values. ok is false for an empty slice.
func Bounds(values []float64) (lo, hi float64, ok bool) {
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, true
}

// safeRange substitutes 1 for a zero-width domain.
func safeRange(lo, hi float64) float64 {
	r := hi - lo
	if r == 0 {
		return 1
	}
	return r
}
