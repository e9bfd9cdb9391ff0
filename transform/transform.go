// Package transform provides the catalog of per-pixel color transforms.
//
// A transform is a pure function from a pixel's red, green and blue channel
// values to new channel values. Alpha is never passed to a transform and is
// left untouched by the engine that applies it.
//
// Transforms compute in wider types and narrow their results through Clamp
// or ClampRound, so every output channel lies in [0, 255]. The rounding
// policy is round-half-up, applied identically to every channel.
package transform

import "math"

// Func maps an (r, g, b) triple to a new triple.
//
// Implementations must be pure: the same input always yields the same
// output, and no state is shared between calls. The engine may call a Func
// from several goroutines at once.
type Func func(r, g, b uint8) (uint8, uint8, uint8)

// Round rounds v half-up to the nearest integer value.
func Round(v float64) float64 {
	return math.Floor(v + 0.5)
}

// Clamp narrows v to a channel value, saturating at 0 and 255.
// NaN maps to 0. The fractional part of in-range values is truncated.
func Clamp(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(v)
}

// ClampRound rounds v half-up and clamps it to [0, 255].
func ClampRound(v float64) uint8 {
	return Clamp(Round(v))
}

// Grayscale sets every channel to the rounded mean of r, g and b.
//
// The sum of three channels divided by three never lands exactly on .5, so
// (sum + 1) / 3 in integer arithmetic equals round-half-up of the mean.
func Grayscale(r, g, b uint8) (uint8, uint8, uint8) {
	gray := uint8((uint16(r) + uint16(g) + uint16(b) + 1) / 3)
	return gray, gray, gray
}

// Matrix is a 3x3 linear color transform. Row i holds the weights of the
// input red, green and blue channels for output channel i.
type Matrix [3][3]float64

// SepiaMatrix holds the classic sepia tone weights.
var SepiaMatrix = Matrix{
	{0.393, 0.769, 0.189},
	{0.349, 0.686, 0.168},
	{0.272, 0.534, 0.131},
}

// Apply computes the weighted sums for one pixel in float64 and narrows each
// with ClampRound.
func (m *Matrix) Apply(r, g, b uint8) (uint8, uint8, uint8) {
	fr, fg, fb := float64(r), float64(g), float64(b)
	return ClampRound(m[0][0]*fr + m[0][1]*fg + m[0][2]*fb),
		ClampRound(m[1][0]*fr + m[1][1]*fg + m[1][2]*fb),
		ClampRound(m[2][0]*fr + m[2][1]*fg + m[2][2]*fb)
}

// Func returns the matrix as a transform. The matrix is copied, so later
// changes to m do not affect the returned Func.
func (m Matrix) Func() Func {
	return m.Apply
}

// Sepia applies SepiaMatrix.
func Sepia(r, g, b uint8) (uint8, uint8, uint8) {
	return SepiaMatrix.Apply(r, g, b)
}
