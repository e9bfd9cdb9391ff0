// Package extract writes the contents of a zip archive to a directory tree.
package extract

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/pixelpipe/internal/pipetype"
	"github.com/meigma/pixelpipe/internal/sink"
)

const (
	// DefaultMaxFileSize is the default per-entry size limit (1GB).
	DefaultMaxFileSize = 1 << 30

	// DefaultMaxDecoderMemory is the default zstd decoder memory limit (256MB).
	DefaultMaxDecoderMemory = 256 << 20

	// DefaultDirPerm is the default mode of created directories.
	DefaultDirPerm fs.FileMode = 0o750

	copyBufferSize = 32 << 10
)

// Extractor extracts zip archives.
type Extractor struct {
	maxFileSize      uint64
	maxDecoderMemory uint64
	preserveMode     bool
	dirPerm          fs.FileMode
	logger           *slog.Logger
	progress         pipetype.ProgressFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFileSize limits the uncompressed size of each file entry.
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(x *Extractor) {
		x.maxFileSize = limit
	}
}

// WithMaxDecoderMemory limits the memory used by the zstd decoder for
// entries stored with zip method 93. Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(x *Extractor) {
		x.maxDecoderMemory = limit
	}
}

// WithPreserveMode applies the permission bits recorded in the archive to
// extracted files. By default files get mode 0644.
func WithPreserveMode(preserve bool) Option {
	return func(x *Extractor) {
		x.preserveMode = preserve
	}
}

// WithDirPerm sets the mode of created directories, including outputDir.
func WithDirPerm(mode fs.FileMode) Option {
	return func(x *Extractor) {
		x.dirPerm = mode
	}
}

// WithLogger sets the logger for extraction. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Extractor) {
		x.logger = logger
	}
}

// WithProgress sets a callback invoked after each entry is written.
func WithProgress(fn pipetype.ProgressFunc) Option {
	return func(x *Extractor) {
		x.progress = fn
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	x := &Extractor{
		maxFileSize:      DefaultMaxFileSize,
		maxDecoderMemory: DefaultMaxDecoderMemory,
		dirPerm:          DefaultDirPerm,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// log returns the logger, falling back to a discard logger if nil.
func (x *Extractor) log() *slog.Logger {
	if x.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return x.logger
}

// Extract writes every entry of the archive at archivePath below outputDir
// and returns outputDir.
//
// Directory entries are created with their missing parents and may already
// exist. File entries are streamed to disk through a fixed-size buffer and
// become visible only once fully written. The first entry that fails stops
// extraction; entries already written are left in place.
//
// The archive is closed on every return path.
func (x *Extractor) Extract(ctx context.Context, archivePath, outputDir string) (_ string, err error) {
	rc, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", pipetype.ErrArchiveOpen, archivePath, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive %s: %w", archivePath, closeErr)
		}
	}()
	rc.RegisterDecompressor(zstd.ZipMethodWinZip, x.zstdDecompressor())

	if err := os.MkdirAll(outputDir, x.dirPerm); err != nil {
		return "", fmt.Errorf("%w: %s: %w", pipetype.ErrOutputDir, outputDir, err)
	}

	total := len(rc.File)
	x.log().Info("extracting archive", "archive", archivePath, "output_dir", outputDir, "entry_count", total)

	fileSink := sink.NewFileSink(outputDir,
		sink.WithPreserveMode(x.preserveMode),
		sink.WithDirPerm(x.dirPerm),
	)
	buf := make([]byte, copyBufferSize)
	var bytesTotal uint64
	for i, entry := range Entries(&rc.Reader) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := x.extractEntry(fileSink, entry, buf)
		if err != nil {
			x.log().Error("entry extraction failed", "entry", entry.Name, "error", err)
			return "", fmt.Errorf("%w: %s: %w", pipetype.ErrEntryCopy, entry.Name, err)
		}
		bytesTotal += n
		x.log().Debug("entry extracted", "entry", entry.Name, "kind", entry.Kind.String(), "bytes", n)
		x.reportProgress(entry.Name, n, i+1, total)
	}

	x.log().Info("extraction complete", "archive", archivePath, "entry_count", total, "bytes", bytesTotal)
	return outputDir, nil
}

// extractEntry writes one entry. Names are cleaned first, so "./img/a.png"
// lands at img/a.png.
func (x *Extractor) extractEntry(fileSink *sink.FileSink, entry *Entry, buf []byte) (uint64, error) {
	name, ok := sink.CleanPath(entry.Name)
	if !ok {
		return 0, pipetype.ErrUnsafePath
	}
	if entry.Kind == KindDirectory {
		return 0, fileSink.MkdirAll(name)
	}
	return x.extractFile(fileSink, name, entry, buf)
}

// extractFile streams one file entry into a staged writer.
func (x *Extractor) extractFile(fileSink *sink.FileSink, name string, entry *Entry, buf []byte) (uint64, error) {
	if x.maxFileSize > 0 && entry.Size > x.maxFileSize {
		return 0, fmt.Errorf("%w: declared %d bytes, limit %d", pipetype.ErrEntryTooLarge, entry.Size, x.maxFileSize)
	}

	src, err := entry.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	w, err := fileSink.Writer(name, entry.Mode)
	if err != nil {
		return 0, err
	}

	var reader io.Reader = src
	if x.maxFileSize > 0 {
		// One byte past the limit is enough to detect an understated size.
		reader = io.LimitReader(src, int64(min(x.maxFileSize, 1<<62))+1) //nolint:gosec // bounded above
	}
	counter := &sink.CountingWriter{W: w}
	if _, err := io.CopyBuffer(counter, reader, buf); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return counter.N, err
	}
	if x.maxFileSize > 0 && counter.N > x.maxFileSize {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return counter.N, fmt.Errorf("%w: more than %d bytes", pipetype.ErrEntryTooLarge, x.maxFileSize)
	}

	if err := w.Commit(); err != nil {
		return counter.N, fmt.Errorf("commit: %w", err)
	}
	return counter.N, nil
}

func (x *Extractor) zstdDecompressor() zip.Decompressor {
	if x.maxDecoderMemory == 0 {
		return zstd.ZipDecompressor()
	}
	return zstd.ZipDecompressor(zstd.WithDecoderMaxMemory(x.maxDecoderMemory))
}

func (x *Extractor) reportProgress(name string, n uint64, done, total int) {
	if x.progress == nil {
		return
	}
	x.progress(pipetype.ProgressEvent{
		Stage:      pipetype.StageExtracting,
		Path:       name,
		BytesDone:  n,
		FilesDone:  done,
		FilesTotal: total,
	})
}
