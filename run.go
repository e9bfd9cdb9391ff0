package pixelpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meigma/pixelpipe/transform"
)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	logger   *slog.Logger
	progress ProgressFunc
}

// RunWithLogger sets the logger used by every stage of the run.
func RunWithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// RunWithProgress sets a callback that receives the progress events of every
// stage of the run.
func RunWithProgress(fn ProgressFunc) RunOption {
	return func(c *runConfig) {
		c.progress = fn
	}
}

// Report summarizes a pipeline run.
type Report struct {
	// ExtractDir is the directory the archive was extracted to.
	ExtractDir string

	// Stages holds one entry per completed transform, in config order.
	Stages []StageReport

	// Duration is the wall time of the run.
	Duration time.Duration
}

// StageReport summarizes one transform of a run.
type StageReport struct {
	Transform string
	Dir       string

	// Inputs is the number of images scanned for this stage.
	Inputs int

	Result *TransformResult
}

// Written returns the number of images written across all stages.
func (r *Report) Written() int {
	n := 0
	for _, s := range r.Stages {
		n += len(s.Result.Outputs)
	}
	return n
}

// Failures returns every per-image failure across all stages.
func (r *Report) Failures() []*ItemError {
	var failures []*ItemError
	for _, s := range r.Stages {
		failures = append(failures, s.Result.Failures...)
	}
	return failures
}

// Err joins every per-image failure, or returns nil if there were none.
func (r *Report) Err() error {
	var errs []error
	for _, s := range r.Stages {
		if err := s.Result.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Transform, err))
		}
	}
	return errors.Join(errs...)
}

// Run executes the pipeline described by cfg: extract the archive, then for
// each output scan the extracted images and apply its transform.
//
// Every output rescans the extracted tree, so transforms never read each
// other's results. A stage failure (archive, directory listing or output
// directory) stops the run and is returned together with the report of the
// stages completed so far. Per-image failures do not stop the run; they are
// available from Report.Err.
func Run(ctx context.Context, cfg Config, opts ...RunOption) (_ *Report, err error) {
	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}
	logger := rc.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{}
	defer func() {
		report.Duration = time.Since(start)
		if err == nil {
			logger.Info("pipeline complete",
				"written", report.Written(),
				"failed", len(report.Failures()),
				"duration", report.Duration,
			)
		}
	}()
	logger.Info("pipeline started", "archive", cfg.Archive, "extract_dir", cfg.ExtractDir, "outputs", len(cfg.Outputs))

	extractOpts := []ExtractOption{
		ExtractWithPreserveMode(cfg.PreserveMode),
		ExtractWithLogger(logger),
		ExtractWithProgress(rc.progress),
	}
	if cfg.MaxFileSize > 0 {
		extractOpts = append(extractOpts, ExtractWithMaxFileSize(cfg.MaxFileSize))
	}
	dir, err := Extract(ctx, cfg.Archive, cfg.ExtractDir, extractOpts...)
	if err != nil {
		return report, fmt.Errorf("extract: %w", err)
	}
	report.ExtractDir = dir

	transformOpts := []TransformOption{
		TransformWithWorkers(cfg.Workers),
		TransformWithLogger(logger),
		TransformWithProgress(rc.progress),
	}
	if cfg.MaxPixels > 0 {
		transformOpts = append(transformOpts, TransformWithMaxPixels(cfg.MaxPixels))
	}
	scanner := newScanner([]ScanOption{ScanWithLogger(logger), ScanWithProgress(rc.progress)})

	for _, out := range cfg.Outputs {
		fn, err := transform.Lookup(out.Transform)
		if err != nil {
			return report, err
		}
		paths, err := scanner.Scan(cfg.scanPath())
		if err != nil {
			return report, fmt.Errorf("%s: scan: %w", out.Transform, err)
		}
		res, err := ApplyTransform(ctx, paths, out.Dir, fn, transformOpts...)
		if res != nil {
			report.Stages = append(report.Stages, StageReport{
				Transform: out.Transform,
				Dir:       out.Dir,
				Inputs:    len(paths),
				Result:    res,
			})
		}
		if err != nil {
			return report, fmt.Errorf("%s: %w", out.Transform, err)
		}
	}

	return report, nil
}
