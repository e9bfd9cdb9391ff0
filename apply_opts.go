package pixelpipe

import (
	"image/png"
	"log/slog"

	"github.com/meigma/pixelpipe/internal/batch"
)

// DefaultMaxPixels is the default per-image pixel limit (100 megapixels).
const DefaultMaxPixels = batch.DefaultMaxPixels

// TransformOption configures ApplyTransform.
type TransformOption func(*transformConfig)

type transformConfig struct {
	workers     int
	compression png.CompressionLevel
	maxPixels   uint64
	logger      *slog.Logger
	progress    ProgressFunc
}

func newTransformConfig(opts []TransformOption) transformConfig {
	cfg := transformConfig{
		compression: png.DefaultCompression,
		maxPixels:   batch.DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// TransformWithWorkers sets the number of images processed at once.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func TransformWithWorkers(n int) TransformOption {
	return func(c *transformConfig) {
		c.workers = n
	}
}

// TransformWithCompression sets the PNG compression level of written images.
func TransformWithCompression(level png.CompressionLevel) TransformOption {
	return func(c *transformConfig) {
		c.compression = level
	}
}

// TransformWithMaxPixels rejects images with more than limit pixels before
// decoding them. The limit also caps the pixels held in memory across
// workers. Set limit to 0 to disable the limit.
func TransformWithMaxPixels(limit uint64) TransformOption {
	return func(c *transformConfig) {
		c.maxPixels = limit
	}
}

// TransformWithLogger sets the logger for the transform stage.
// Failed images are logged at warn level.
func TransformWithLogger(logger *slog.Logger) TransformOption {
	return func(c *transformConfig) {
		c.logger = logger
	}
}

// TransformWithProgress sets a callback invoked after each image.
func TransformWithProgress(fn ProgressFunc) TransformOption {
	return func(c *transformConfig) {
		c.progress = fn
	}
}
