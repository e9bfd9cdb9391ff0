package pixelpipe

import (
	"context"

	"github.com/meigma/pixelpipe/internal/batch"
	"github.com/meigma/pixelpipe/transform"
)

type (
	// Output describes one image written by ApplyTransform.
	Output = batch.Output

	// TransformResult holds the outputs and per-image failures of
	// ApplyTransform, both in input order.
	TransformResult = batch.Result
)

// ApplyTransform decodes each PNG in paths, applies fn to every pixel and
// writes the result to outputDir under the input's base name.
//
// Alpha is preserved and input files are never modified. Inputs sharing a
// base name write to the same output path; the last one written wins.
//
// Images are processed concurrently and independently. An image that cannot
// be decoded or written is recorded in TransformResult.Failures and does not
// stop the others. The returned error is reserved for failures of the whole
// batch: ErrOutputDir when outputDir cannot be created, or ctx.Err() when ctx
// is canceled, in which case the partial result is also returned.
func ApplyTransform(ctx context.Context, paths []string, outputDir string, fn transform.Func, opts ...TransformOption) (*TransformResult, error) {
	cfg := newTransformConfig(opts)
	p := batch.NewProcessor(
		batch.WithWorkers(cfg.workers),
		batch.WithCompression(cfg.compression),
		batch.WithMaxPixels(cfg.maxPixels),
		batch.WithLogger(cfg.logger),
		batch.WithProgress(cfg.progress),
	)
	return p.Process(ctx, paths, outputDir, fn)
}
