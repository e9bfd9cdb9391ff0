// Package testutil provides archive and image fixtures for tests.
package testutil

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ZipEntry describes one entry of a test archive.
// Names ending in "/" become directory entries.
type ZipEntry struct {
	Name   string
	Body   []byte
	Method uint16
	Mode   fs.FileMode
}

// Dir returns a directory entry for name.
func Dir(name string) ZipEntry {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return ZipEntry{Name: name}
}

// File returns a deflated file entry.
func File(name string, body []byte) ZipEntry {
	return ZipEntry{Name: name, Body: body, Method: zip.Deflate}
}

// BuildZip encodes entries, in order, as a zip archive.
// Entries using zstd.ZipMethodWinZip are compressed with zstd.
func BuildZip(tb testing.TB, entries ...ZipEntry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	for _, entry := range entries {
		hdr := &zip.FileHeader{Name: entry.Name, Method: entry.Method}
		if entry.Mode != 0 {
			hdr.SetMode(entry.Mode)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			tb.Fatalf("create zip entry %s: %v", entry.Name, err)
		}
		if strings.HasSuffix(entry.Name, "/") {
			continue
		}
		if _, err := w.Write(entry.Body); err != nil {
			tb.Fatalf("write zip entry %s: %v", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a zip archive of entries to dir/name and returns its path.
func WriteZip(tb testing.TB, dir, name string, entries ...ZipEntry) string {
	tb.Helper()
	return WriteFile(tb, filepath.Join(dir, name), BuildZip(tb, entries...))
}

// WriteFile writes data to path, creating parent directories, and returns path.
func WriteFile(tb testing.TB, path string, data []byte) string {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		tb.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// NewNRGBA returns a width x height image backed by a copy of pix.
// A nil pix yields a transparent black image.
func NewNRGBA(width, height int, pix []byte) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pix)
	return img
}

// Gradient returns an image whose pixels vary with their coordinates.
func Gradient(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		p := i / 4
		img.Pix[i] = uint8(p * 7)
		img.Pix[i+1] = uint8(p * 13)
		img.Pix[i+2] = uint8(p * 29)
		img.Pix[i+3] = uint8(255 - p%64)
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(tb testing.TB, img image.Image) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		tb.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WritePNG encodes img as PNG at path and returns path.
func WritePNG(tb testing.TB, path string, img image.Image) string {
	tb.Helper()
	return WriteFile(tb, path, EncodePNG(tb, img))
}

// ReadPNG decodes the PNG at path into a zero-origin NRGBA image.
func ReadPNG(tb testing.TB, path string) *image.NRGBA {
	tb.Helper()
	f, err := os.Open(path)
	if err != nil {
		tb.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		tb.Fatalf("decode %s: %v", path, err)
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if nrgba, ok := src.(*image.NRGBA); ok {
		// Copy rows so partially transparent pixels keep their exact color.
		for y := 0; y < b.Dy(); y++ {
			off := nrgba.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], nrgba.Pix[off:])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
