// Package pixelpipe extracts zip archives of PNG images and writes
// color-transformed copies of them.
//
// The pipeline has three stages, each usable on its own:
//   - [Extract] writes every entry of a zip archive below a directory
//   - [Scan] lists the .png files directly inside a directory
//   - [ApplyTransform] decodes each image, applies a per-pixel
//     [transform.Func] and writes the result to an output directory
//
// Transforms are pure functions of a pixel's red, green and blue channels;
// alpha is always preserved. The built-in transforms live in the
// [transform] package and can be looked up by name.
//
// # Quick Start
//
// Extract an archive and write grayscale copies of its images:
//
//	dir, err := pixelpipe.Extract(ctx, "photos.zip", "unzipped")
//	if err != nil {
//	    return err
//	}
//	paths, err := pixelpipe.Scan(dir)
//	if err != nil {
//	    return err
//	}
//	res, err := pixelpipe.ApplyTransform(ctx, paths, "grayscale", transform.Grayscale,
//	    pixelpipe.TransformWithWorkers(4),
//	)
//	if err != nil {
//	    return err
//	}
//	for _, f := range res.Failures {
//	    log.Printf("skipped %s: %v", f.Path, f.Err)
//	}
//
// # Pipelines
//
// [Run] sequences the stages from a [Config], which can be loaded from a
// YAML file with [LoadConfig]:
//
//	cfg := pixelpipe.DefaultConfig()
//	report, err := pixelpipe.Run(ctx, cfg, pixelpipe.RunWithLogger(logger))
//
// A failed stage stops the run, so images are never scanned from a partially
// extracted tree. Failures of individual images are collected in the report
// instead.
//
// # Errors
//
// Stage failures wrap one of the sentinel errors ([ErrArchiveOpen],
// [ErrEntryCopy], [ErrDirectoryRead], [ErrOutputDir]) and name the path
// involved. Per-image failures are [*ItemError] values wrapping [ErrDecode]
// or [ErrEncode].
package pixelpipe
