// Package raster decodes PNG files into owned RGBA pixel buffers and encodes
// them back.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/meigma/pixelpipe/transform"
)

// Channels is the number of interleaved bytes per pixel (R, G, B, A).
const Channels = 4

// ErrInvalidImage is returned by Validate when the buffer length does not
// match the image dimensions.
var ErrInvalidImage = errors.New("raster: pixel buffer does not match dimensions")

// Image is a decoded raster image.
//
// Pix holds non-premultiplied RGBA bytes, row-major from the top row down,
// with no padding between rows. The pixel at (x, y) starts at
// Pix[(y*Width+x)*4].
type Image struct {
	Width  uint32
	Height uint32
	Pix    []byte
}

// New allocates a transparent black image.
func New(width, height uint32) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]byte, uint64(width)*uint64(height)*Channels),
	}
}

// Validate checks that len(Pix) == Width*Height*4.
func (img *Image) Validate() error {
	if uint64(len(img.Pix)) != uint64(img.Width)*uint64(img.Height)*Channels {
		return fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidImage, img.Width, img.Height, len(img.Pix))
	}
	return nil
}

// Apply runs fn over every pixel, writing the results back into Pix.
// Alpha bytes are left unchanged.
func (img *Image) Apply(fn transform.Func) {
	pix := img.Pix
	for i := 0; i+Channels <= len(pix); i += Channels {
		p := pix[i : i+3 : i+3]
		p[0], p[1], p[2] = fn(p[0], p[1], p[2])
	}
}

// NRGBA returns an image.NRGBA view that shares Pix.
func (img *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    img.Pix,
		Stride: int(img.Width) * Channels,
		Rect:   image.Rect(0, 0, int(img.Width), int(img.Height)),
	}
}

// FromImage converts src into an Image with non-premultiplied RGBA pixels.
//
// A zero-origin, tightly packed *image.NRGBA is taken over without copying;
// the caller must not use src afterwards. Everything else is copied.
// Translucent pixels keep their exact color for the NRGBA, NRGBA64 and
// paletted images produced by the PNG decoder; 16-bit channels keep their
// high byte.
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	width, height, err := dimensions(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}

	switch src := src.(type) {
	case *image.NRGBA:
		rowBytes := b.Dx() * Channels
		// Decoders allocate a fresh, tightly packed buffer; take it over as is.
		if b.Min == (image.Point{}) && src.Stride == rowBytes {
			return &Image{Width: width, Height: height, Pix: src.Pix[:rowBytes*b.Dy()]}, nil
		}
		dst := New(width, height)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := src.PixOffset(b.Min.X, y)
			copy(dst.Pix[(y-b.Min.Y)*rowBytes:], src.Pix[off:off+rowBytes])
		}
		return dst, nil

	case *image.NRGBA64:
		dst := New(width, height)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				p := row[x*8 : x*8+8 : x*8+8]
				dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = p[0], p[2], p[4], p[6]
				i += Channels
			}
		}
		return dst, nil

	case *image.Paletted:
		var lut [256][Channels]byte
		for idx, c := range src.Palette {
			if idx >= len(lut) {
				break
			}
			n := toNRGBA(c)
			lut[idx] = [Channels]byte{n.R, n.G, n.B, n.A}
		}
		dst := New(width, height)
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				copy(dst.Pix[i:i+Channels], lut[row[x]][:])
				i += Channels
			}
		}
		return dst, nil
	}

	// The remaining decoder outputs are opaque, so the premultiplied
	// conversion is exact for them.
	dst := New(width, height)
	draw.Draw(dst.NRGBA(), image.Rect(0, 0, b.Dx(), b.Dy()), src, b.Min, draw.Src)
	return dst, nil
}

// toNRGBA returns c as straight RGBA. The PNG decoder stores translucent
// palette entries as color.NRGBA, which is used as is.
func toNRGBA(c color.Color) color.NRGBA {
	if n, ok := c.(color.NRGBA); ok {
		return n
	}
	n, _ := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n
}

// Decode reads a PNG image from r.
func Decode(r io.Reader) (*Image, error) {
	src, err := png.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(src)
}

// DecodeConfig reads the dimensions of a PNG image without decoding pixels.
func DecodeConfig(r io.Reader) (width, height uint32, err error) {
	cfg, err := png.DecodeConfig(r)
	if err != nil {
		return 0, 0, err
	}
	return dimensions(cfg.Width, cfg.Height)
}

// Encoder writes images as PNG.
type Encoder struct {
	enc png.Encoder
}

// NewEncoder returns an encoder using the given compression level.
// Encoders may be shared between goroutines.
func NewEncoder(level png.CompressionLevel) *Encoder {
	return &Encoder{enc: png.Encoder{CompressionLevel: level, BufferPool: &bufferPool{}}}
}

// Encode writes img to w.
func (e *Encoder) Encode(w io.Writer, img *Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	return e.enc.Encode(w, img.NRGBA())
}

func dimensions(w, h int) (uint32, uint32, error) {
	if w < 0 || h < 0 || uint64(w) > math.MaxUint32 || uint64(h) > math.MaxUint32 {
		return 0, 0, fmt.Errorf("raster: dimensions %dx%d out of range", w, h)
	}
	return uint32(w), uint32(h), nil
}
