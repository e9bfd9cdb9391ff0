package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rgb struct{ r, g, b uint8 }

func TestGrayscale(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   rgb
		want uint8
	}{
		{"black", rgb{0, 0, 0}, 0},
		{"white", rgb{255, 255, 255}, 255},
		{"exact mean", rgb{10, 20, 30}, 20},
		{"already gray", rgb{200, 200, 200}, 200},
		{"rounds down below half", rgb{1, 0, 0}, 0},
		{"rounds up above half", rgb{2, 0, 0}, 1},
		{"max sum minus one", rgb{255, 255, 254}, 255},
		{"mixed", rgb{255, 0, 128}, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, g, b := Grayscale(tt.in.r, tt.in.g, tt.in.b)
			assert.Equal(t, tt.want, r)
			assert.Equal(t, tt.want, g)
			assert.Equal(t, tt.want, b)
		})
	}
}

func TestGrayscaleMatchesRoundedMean(t *testing.T) {
	t.Parallel()

	for r := 0; r < 256; r += 5 {
		for g := 0; g < 256; g += 7 {
			for b := 0; b < 256; b += 11 {
				want := uint8(math.Floor(float64(r+g+b)/3 + 0.5))
				got, _, _ := Grayscale(uint8(r), uint8(g), uint8(b))
				require.Equal(t, want, got, "rgb(%d,%d,%d)", r, g, b)
			}
		}
	}
}

func TestGrayscaleIdempotent(t *testing.T) {
	t.Parallel()

	for v := 0; v < 256; v++ {
		r, g, b := Grayscale(uint8(v), uint8(v), uint8(v))
		assert.Equal(t, rgb{uint8(v), uint8(v), uint8(v)}, rgb{r, g, b})
	}
}

func TestSepia(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   rgb
		want rgb
	}{
		{"black", rgb{0, 0, 0}, rgb{0, 0, 0}},
		// Blue does not saturate: 0.937 * 255 = 238.935.
		{"white", rgb{255, 255, 255}, rgb{255, 255, 239}},
		{"dark", rgb{10, 20, 30}, rgb{25, 22, 17}},
		{"mid gray", rgb{100, 100, 100}, rgb{135, 120, 94}},
		{"pure red", rgb{255, 0, 0}, rgb{100, 89, 69}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, g, b := Sepia(tt.in.r, tt.in.g, tt.in.b)
			assert.Equal(t, tt.want, rgb{r, g, b})
		})
	}
}

func TestSepiaMatchesWeightedSums(t *testing.T) {
	t.Parallel()

	clamp := func(v float64) uint8 {
		return uint8(math.Min(255, math.Max(0, math.Floor(v+0.5))))
	}
	for r := 0; r < 256; r += 15 {
		for g := 0; g < 256; g += 17 {
			for b := 0; b < 256; b += 19 {
				fr, fg, fb := float64(r), float64(g), float64(b)
				want := rgb{
					clamp(0.393*fr + 0.769*fg + 0.189*fb),
					clamp(0.349*fr + 0.686*fg + 0.168*fb),
					clamp(0.272*fr + 0.534*fg + 0.131*fb),
				}
				gr, gg, gb := Sepia(uint8(r), uint8(g), uint8(b))
				require.Equal(t, want, rgb{gr, gg, gb}, "rgb(%d,%d,%d)", r, g, b)
			}
		}
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want uint8
	}{
		{-10, 0},
		{0, 0},
		{0.9, 0},
		{127.5, 127},
		{254.99, 254},
		{255, 255},
		{1e9, 255},
		{math.Inf(1), 255},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in), "Clamp(%v)", tt.in)
	}
}

func TestClampRound(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(128), ClampRound(127.5))
	assert.Equal(t, uint8(127), ClampRound(127.49))
	assert.Equal(t, uint8(255), ClampRound(254.5))
	assert.Equal(t, uint8(0), ClampRound(-0.4))
	assert.Equal(t, uint8(0), ClampRound(-300))
}

func TestMatrixFuncNegativeWeights(t *testing.T) {
	t.Parallel()

	invert := Matrix{
		{-1, 0, 0},
		{0, -1, 0},
		{0, 0, -1},
	}.Func()
	r, g, b := invert(10, 200, 255)
	assert.Equal(t, rgb{0, 0, 0}, rgb{r, g, b})
}

func TestMatrixFuncCopiesMatrix(t *testing.T) {
	t.Parallel()

	m := Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	fn := m.Func()
	m[0][0] = 0

	r, g, b := fn(10, 20, 30)
	assert.Equal(t, rgb{10, 20, 30}, rgb{r, g, b})
}

func TestLookup(t *testing.T) {
	t.Parallel()

	fn, err := Lookup(NameGrayscale)
	require.NoError(t, err)
	r, g, b := fn(10, 20, 30)
	assert.Equal(t, rgb{20, 20, 20}, rgb{r, g, b})

	fn, err = Lookup(NameSepia)
	require.NoError(t, err)
	r, g, b = fn(255, 255, 255)
	assert.Equal(t, rgb{255, 255, 239}, rgb{r, g, b})

	_, err = Lookup("Grayscale")
	require.ErrorIs(t, err, ErrUnknownTransform)

	_, err = Lookup("")
	require.ErrorIs(t, err, ErrUnknownTransform)
}

func TestNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{NameGrayscale, NameSepia}, Names())
}
