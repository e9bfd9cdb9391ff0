package pixelpipe

import (
	"context"

	"github.com/meigma/pixelpipe/internal/extract"
)

// Extract writes every entry of the zip archive at archivePath below
// outputDir and returns outputDir.
//
// outputDir and any missing parents are created. Directory entries may
// already exist. File entries are streamed to disk and appear at their final
// path only once fully written; an existing file at that path is replaced.
//
// A missing or malformed archive returns ErrArchiveOpen. The first entry that
// cannot be written stops extraction with ErrEntryCopy naming the entry;
// entries written before it are left in place.
func Extract(ctx context.Context, archivePath, outputDir string, opts ...ExtractOption) (string, error) {
	cfg := newExtractConfig(opts)
	x := extract.New(
		extract.WithMaxFileSize(cfg.maxFileSize),
		extract.WithMaxDecoderMemory(cfg.maxDecoderMemory),
		extract.WithPreserveMode(cfg.preserveMode),
		extract.WithDirPerm(cfg.dirPerm),
		extract.WithLogger(cfg.logger),
		extract.WithProgress(cfg.progress),
	)
	return x.Extract(ctx, archivePath, outputDir)
}

// Scan returns the absolute paths of the .png files directly inside dir,
// sorted by name.
//
// Only names whose final extension is exactly ".png" are selected:
// "a.b.png" is included while "a.png.bak" and "a.PNG" are not.
// Subdirectories are skipped. A directory that cannot be listed returns
// ErrDirectoryRead. ScanWithMatcher selects a different set of names.
func Scan(dir string, opts ...ScanOption) ([]string, error) {
	return newScanner(opts).Scan(dir)
}
