package pixelpipe

import (
	"log/slog"

	"github.com/meigma/pixelpipe/internal/scan"
)

// MatchFunc reports whether a file name is selected by Scan.
type MatchFunc = scan.MatchFunc

// IsImage is the default Scan matcher. It selects names whose final
// extension is exactly ".png".
func IsImage(name string) bool {
	return scan.IsImage(name)
}

// ScanOption configures Scan.
type ScanOption func(*scanConfig)

type scanConfig struct {
	match    MatchFunc
	logger   *slog.Logger
	progress ProgressFunc
}

// ScanWithMatcher replaces the default ".png" matcher.
func ScanWithMatcher(fn MatchFunc) ScanOption {
	return func(c *scanConfig) {
		c.match = fn
	}
}

// ScanWithLogger sets the logger for scanning.
func ScanWithLogger(logger *slog.Logger) ScanOption {
	return func(c *scanConfig) {
		c.logger = logger
	}
}

// ScanWithProgress sets a callback invoked once the directory is listed.
func ScanWithProgress(fn ProgressFunc) ScanOption {
	return func(c *scanConfig) {
		c.progress = fn
	}
}

func newScanner(opts []ScanOption) *scan.Scanner {
	var cfg scanConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return scan.New(
		scan.WithMatcher(cfg.match),
		scan.WithLogger(cfg.logger),
		scan.WithProgress(cfg.progress),
	)
}
