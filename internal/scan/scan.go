// Package scan lists the image files directly inside a directory.
package scan

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meigma/pixelpipe/internal/pipetype"
)

// ImageExt is the file extension selected by the default matcher.
const ImageExt = ".png"

// MatchFunc reports whether a file name should be selected.
type MatchFunc func(name string) bool

// IsImage reports whether name ends in ".png". The comparison is
// case-sensitive and only the last dot counts, so "a.b.png" matches while
// "a.png.bak" and "a.PNG" do not.
func IsImage(name string) bool {
	return filepath.Ext(name) == ImageExt
}

// Scanner lists files in a single directory.
type Scanner struct {
	match    MatchFunc
	logger   *slog.Logger
	progress pipetype.ProgressFunc
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMatcher replaces the default ".png" matcher.
func WithMatcher(fn MatchFunc) Option {
	return func(s *Scanner) {
		if fn != nil {
			s.match = fn
		}
	}
}

// WithLogger sets the logger for scanning. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithProgress sets a callback invoked once a directory has been listed.
func WithProgress(fn pipetype.ProgressFunc) Option {
	return func(s *Scanner) {
		s.progress = fn
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{match: IsImage}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scanner) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Scan returns the absolute paths of the matching regular entries directly
// inside dir, sorted by name. Subdirectories are neither returned nor
// descended into. An empty result is not an error.
func (s *Scanner) Scan(dir string) ([]string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pipetype.ErrDirectoryRead, dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pipetype.ErrDirectoryRead, dir, err)
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.match(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(abs, entry.Name()))
	}

	s.log().Debug("directory scanned", "path", abs, "entry_count", len(entries), "file_count", len(paths))
	if s.progress != nil {
		s.progress(pipetype.ProgressEvent{
			Stage:      pipetype.StageScanning,
			Path:       abs,
			FilesDone:  len(paths),
			FilesTotal: len(paths),
		})
	}
	return paths, nil
}
