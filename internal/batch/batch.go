// Package batch applies a pixel transform to many PNG files concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/pixelpipe/internal/pipetype"
	"github.com/meigma/pixelpipe/internal/raster"
	"github.com/meigma/pixelpipe/internal/sink"
	"github.com/meigma/pixelpipe/transform"
)

const (
	// DefaultMaxPixels is the default per-image pixel limit (100 megapixels).
	// It also caps the total pixels decoded at once across workers.
	DefaultMaxPixels = 100_000_000

	dirPerm = 0o750
)

// Output describes one successfully written image.
type Output struct {
	// Source is the input path.
	Source string

	// Path is the written output path.
	Path string

	Width  uint32
	Height uint32

	// Size is the number of encoded bytes written.
	Size uint64

	// Digest is the sha256 digest of the encoded bytes.
	Digest digest.Digest
}

// Result collects the outcome of a batch.
type Result struct {
	// Outputs holds successful items in input order.
	Outputs []Output

	// Failures holds failed items in input order.
	Failures []*pipetype.ItemError
}

// Err joins all item failures, or returns nil if every item succeeded.
func (r *Result) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Processor decodes, transforms and re-encodes images.
type Processor struct {
	workers   int // 0 = GOMAXPROCS, <0 = serial, >0 = fixed count
	level     png.CompressionLevel
	maxPixels uint64
	logger    *slog.Logger
	progress  pipetype.ProgressFunc
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of images processed at once.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithCompression sets the PNG compression level of written images.
func WithCompression(level png.CompressionLevel) ProcessorOption {
	return func(p *Processor) {
		p.level = level
	}
}

// WithMaxPixels rejects images with more than limit pixels before they are
// decoded. Set limit to 0 to disable the limit.
func WithMaxPixels(limit uint64) ProcessorOption {
	return func(p *Processor) {
		p.maxPixels = limit
	}
}

// WithLogger sets the logger. If not set, logging is disabled.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithProgress sets a callback invoked after each image, successful or not.
// It may be called from several goroutines at once.
func WithProgress(fn pipetype.ProgressFunc) ProcessorOption {
	return func(p *Processor) {
		p.progress = fn
	}
}

// NewProcessor creates a Processor.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		level:     png.DefaultCompression,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// itemResult is the outcome of one item; at most one field is set.
// Both are nil for items skipped after cancellation.
type itemResult struct {
	output *Output
	err    *pipetype.ItemError
}

// run carries the state shared by the items of one Process call.
type run struct {
	fn      transform.Func
	sink    *sink.FileSink
	encoder *raster.Encoder
	budget  *semaphore.Weighted
}

// Process applies fn to every image in paths and writes each result to
// outputDir under the input's base name. Input files are never modified.
//
// Items are independent: a file that cannot be decoded or written is
// recorded in Result.Failures and the others continue. Outputs sharing a
// base name overwrite each other; the last commit wins.
//
// The returned error is non-nil only when outputDir cannot be created or
// ctx is canceled. On cancellation no new items are started and the
// partial Result is returned alongside ctx.Err().
func (p *Processor) Process(ctx context.Context, paths []string, outputDir string, fn transform.Func) (*Result, error) {
	if err := os.MkdirAll(outputDir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pipetype.ErrOutputDir, outputDir, err)
	}

	r := &run{
		fn:      fn,
		sink:    sink.NewFileSink(outputDir),
		encoder: raster.NewEncoder(p.level),
	}
	if p.maxPixels > 0 {
		r.budget = semaphore.NewWeighted(int64(min(p.maxPixels, 1<<62))) //nolint:gosec // bounded above
	}

	workers := p.workerCount(len(paths))
	p.log().Info("transforming images", "output_dir", outputDir, "file_count", len(paths), "workers", workers)

	results := make([]itemResult, len(paths))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out, err := p.processItem(ctx, r, path)
			if err != nil {
				results[i].err = err
				p.log().Warn("image failed", "path", path, "op", err.Op, "error", err.Err)
			} else {
				results[i].output = out
				p.log().Debug("image written", "path", out.Path, "bytes", out.Size, "digest", out.Digest.String())
			}
			p.reportProgress(path, out, int(done.Add(1)), len(paths))
			// Item failures never cancel siblings.
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // item goroutines always return nil

	res := &Result{}
	for _, item := range results {
		switch {
		case item.output != nil:
			res.Outputs = append(res.Outputs, *item.output)
		case item.err != nil:
			res.Failures = append(res.Failures, item.err)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	p.log().Info("transform complete", "output_dir", outputDir, "written", len(res.Outputs), "failed", len(res.Failures))
	return res, nil
}

// processItem runs decode, transform and encode for one input file.
func (p *Processor) processItem(ctx context.Context, r *run, path string) (*Output, *pipetype.ItemError) {
	decodeErr := func(err error) *pipetype.ItemError {
		return &pipetype.ItemError{Op: pipetype.OpDecode, Path: path, Err: fmt.Errorf("%w: %w", pipetype.ErrDecode, err)}
	}
	encodeErr := func(err error) *pipetype.ItemError {
		return &pipetype.ItemError{Op: pipetype.OpEncode, Path: path, Err: fmt.Errorf("%w: %w", pipetype.ErrEncode, err)}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, decodeErr(err)
	}
	defer f.Close()

	width, height, err := raster.DecodeConfig(f)
	if err != nil {
		return nil, decodeErr(err)
	}
	pixels := uint64(width) * uint64(height)
	if p.maxPixels > 0 && pixels > p.maxPixels {
		return nil, decodeErr(fmt.Errorf("%dx%d image exceeds %d pixel limit", width, height, p.maxPixels))
	}

	if r.budget != nil {
		weight := int64(max(pixels, 1)) //nolint:gosec // pixels <= maxPixels
		if err := r.budget.Acquire(ctx, weight); err != nil {
			return nil, decodeErr(err)
		}
		defer r.budget.Release(weight)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, decodeErr(err)
	}
	img, err := raster.Decode(f)
	if err != nil {
		return nil, decodeErr(err)
	}

	img.Apply(r.fn)

	name := filepath.Base(path)
	w, err := r.sink.Writer(name, 0)
	if err != nil {
		return nil, encodeErr(err)
	}
	digester := digest.Canonical.Digester()
	counter := &sink.CountingWriter{W: io.MultiWriter(w, digester.Hash())}
	if err := r.encoder.Encode(counter, img); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return nil, encodeErr(err)
	}
	if err := w.Commit(); err != nil {
		return nil, encodeErr(err)
	}

	return &Output{
		Source: path,
		Path:   filepath.Join(r.sink.Dir(), name),
		Width:  img.Width,
		Height: img.Height,
		Size:   counter.N,
		Digest: digester.Digest(),
	}, nil
}

// workerCount determines the number of images processed at once.
func (p *Processor) workerCount(items int) int {
	if p.workers < 0 || items < 2 {
		return 1
	}
	workers := p.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return max(1, min(workers, items))
}

func (p *Processor) reportProgress(path string, out *Output, done, total int) {
	if p.progress == nil {
		return
	}
	event := pipetype.ProgressEvent{
		Stage:      pipetype.StageTransforming,
		Path:       path,
		FilesDone:  done,
		FilesTotal: total,
	}
	if out != nil {
		event.BytesDone = out.Size
	}
	p.progress(event)
}
