package pixelpipe

import (
	"io/fs"
	"log/slog"

	"github.com/meigma/pixelpipe/internal/extract"
)

// DefaultMaxFileSize is the default per-entry extraction limit (1GB).
const DefaultMaxFileSize = extract.DefaultMaxFileSize

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	maxFileSize      uint64
	maxDecoderMemory uint64
	preserveMode     bool
	dirPerm          fs.FileMode
	logger           *slog.Logger
	progress         ProgressFunc
}

func newExtractConfig(opts []ExtractOption) extractConfig {
	cfg := extractConfig{
		maxFileSize:      extract.DefaultMaxFileSize,
		maxDecoderMemory: extract.DefaultMaxDecoderMemory,
		dirPerm:          extract.DefaultDirPerm,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ExtractWithMaxFileSize limits the uncompressed size of each archive entry.
// Set limit to 0 to disable the limit.
func ExtractWithMaxFileSize(limit uint64) ExtractOption {
	return func(c *extractConfig) {
		c.maxFileSize = limit
	}
}

// ExtractWithMaxDecoderMemory limits the memory used by the zstd decoder for
// entries compressed with zip method 93. Set limit to 0 to disable the limit.
func ExtractWithMaxDecoderMemory(limit uint64) ExtractOption {
	return func(c *extractConfig) {
		c.maxDecoderMemory = limit
	}
}

// ExtractWithPreserveMode preserves file permission modes from the archive.
// By default, extracted files get mode 0644.
func ExtractWithPreserveMode(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveMode = preserve
	}
}

// ExtractWithDirPerm sets the mode of directories created by Extract,
// outputDir included. The default is 0750.
func ExtractWithDirPerm(mode fs.FileMode) ExtractOption {
	return func(c *extractConfig) {
		c.dirPerm = mode
	}
}

// ExtractWithLogger sets the logger for extraction.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}

// ExtractWithProgress sets a callback invoked after each entry is written.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}
