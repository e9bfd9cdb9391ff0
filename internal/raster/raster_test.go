package raster

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pixelpipe/internal/testutil"
	"github.com/meigma/pixelpipe/transform"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	src := testutil.Gradient(7, 5)
	img, err := Decode(bytes.NewReader(testutil.EncodePNG(t, src)))
	require.NoError(t, err)
	require.NoError(t, img.Validate())
	assert.Equal(t, uint32(7), img.Width)
	assert.Equal(t, uint32(5), img.Height)
	assert.Equal(t, src.Pix, img.Pix)

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(png.BestSpeed).Encode(&buf, img))

	again, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, again.Pix)
}

func TestDecodeOpaqueImage(t *testing.T) {
	t.Parallel()

	// Fully opaque NRGBA is written as 8-bit RGB and decodes as *image.RGBA.
	src := testutil.NewNRGBA(2, 1, []byte{10, 20, 30, 255, 200, 200, 200, 255})
	img, err := Decode(bytes.NewReader(testutil.EncodePNG(t, src)))
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 255, 200, 200, 200, 255}, img.Pix)
}

func TestDecodeInvalid(t *testing.T) {
	t.Parallel()

	_, err := Decode(bytes.NewReader([]byte("not a png")))
	require.Error(t, err)

	_, _, err = DecodeConfig(bytes.NewReader(nil))
	require.Error(t, err)
}

func TestDecodeConfig(t *testing.T) {
	t.Parallel()

	w, h, err := DecodeConfig(bytes.NewReader(testutil.EncodePNG(t, testutil.Gradient(9, 4))))
	require.NoError(t, err)
	assert.Equal(t, uint32(9), w)
	assert.Equal(t, uint32(4), h)
}

func TestFromImageConverts(t *testing.T) {
	t.Parallel()

	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(0, 0, color.Gray{Y: 42})
	gray.SetGray(1, 0, color.Gray{Y: 255})

	img, err := FromImage(gray)
	require.NoError(t, err)
	assert.Equal(t, []byte{42, 42, 42, 255, 255, 255, 255, 255}, img.Pix)
}

func TestDecodePalettedTranslucent(t *testing.T) {
	t.Parallel()

	src := image.NewPaletted(image.Rect(0, 0, 3, 1), color.Palette{
		color.NRGBA{R: 200, G: 100, B: 50, A: 128},
		color.NRGBA{R: 255, A: 0},
		color.NRGBA{R: 10, G: 20, B: 30, A: 1},
	})
	src.Pix = []uint8{0, 1, 2}

	img, err := Decode(bytes.NewReader(testutil.EncodePNG(t, src)))
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 100, 50, 128, 255, 0, 0, 0, 10, 20, 30, 1}, img.Pix)

	img.Apply(transform.Grayscale)
	assert.Equal(t, []byte{117, 117, 117, 128, 85, 85, 85, 0, 20, 20, 20, 1}, img.Pix)
}

func TestDecodeNRGBA64Translucent(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA64(image.Rect(0, 0, 2, 1))
	src.SetNRGBA64(0, 0, color.NRGBA64{R: 0xC8FF, G: 0x6401, B: 0x3280, A: 0x8000})
	src.SetNRGBA64(1, 0, color.NRGBA64{R: 0x0A00, G: 0x14FF, B: 0x1E00, A: 0x0100})

	img, err := Decode(bytes.NewReader(testutil.EncodePNG(t, src)))
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 100, 50, 128, 10, 20, 30, 1}, img.Pix)
}

func TestFromImagePalettedSubImage(t *testing.T) {
	t.Parallel()

	src := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{
		color.NRGBA{R: 1, G: 2, B: 3, A: 4},
		color.RGBA{R: 9, G: 8, B: 7, A: 255},
	})
	src.Pix = []uint8{0, 0, 0, 1}
	sub, ok := src.SubImage(image.Rect(1, 1, 2, 2)).(*image.Paletted)
	require.True(t, ok)

	img, err := FromImage(sub)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8, 7, 255}, img.Pix)

	img, err = FromImage(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 1, 2, 3, 4, 1, 2, 3, 4, 9, 8, 7, 255}, img.Pix)
}

func TestFromImageSubImage(t *testing.T) {
	t.Parallel()

	src := testutil.Gradient(4, 4)
	sub, ok := src.SubImage(image.Rect(1, 1, 3, 2)).(*image.NRGBA)
	require.True(t, ok)

	img, err := FromImage(sub)
	require.NoError(t, err)
	require.NoError(t, img.Validate())
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(1), img.Height)
	assert.Equal(t, src.Pix[src.PixOffset(1, 1):src.PixOffset(3, 1)], img.Pix)
}

func TestApplyKeepsAlpha(t *testing.T) {
	t.Parallel()

	img := &Image{Width: 2, Height: 1, Pix: []byte{10, 20, 30, 7, 200, 200, 200, 0}}
	img.Apply(transform.Grayscale)
	assert.Equal(t, []byte{20, 20, 20, 7, 200, 200, 200, 0}, img.Pix)
}

func TestApplyVisitsEveryPixel(t *testing.T) {
	t.Parallel()

	img := New(13, 11)
	calls := 0
	img.Apply(func(r, g, b uint8) (uint8, uint8, uint8) {
		calls++
		return 1, 2, 3
	})
	assert.Equal(t, 13*11, calls)
	for i := 0; i < len(img.Pix); i += Channels {
		require.Equal(t, []byte{1, 2, 3, 0}, img.Pix[i:i+Channels])
	}
}

func TestApplyGrayscaleIdempotent(t *testing.T) {
	t.Parallel()

	img, err := FromImage(testutil.Gradient(16, 16))
	require.NoError(t, err)

	img.Apply(transform.Grayscale)
	once := bytes.Clone(img.Pix)
	img.Apply(transform.Grayscale)
	assert.Equal(t, once, img.Pix)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, New(3, 2).Validate())
	require.NoError(t, (&Image{}).Validate())

	bad := &Image{Width: 3, Height: 2, Pix: make([]byte, 23)}
	require.ErrorIs(t, bad.Validate(), ErrInvalidImage)

	var buf bytes.Buffer
	require.ErrorIs(t, NewEncoder(png.DefaultCompression).Encode(&buf, bad), ErrInvalidImage)
	assert.Zero(t, buf.Len())
}
