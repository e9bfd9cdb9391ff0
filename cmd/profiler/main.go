package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/pixelpipe"
	"github.com/meigma/pixelpipe/transform"
)

type config struct {
	mode       string
	images     int
	width      int
	height     int
	dirCount   int
	method     string
	pattern    string
	workers    int
	level      string
	fgProfile  string
	duration   time.Duration
	iterations int
	pprofAddr  string
	cpuProfile string
	memProfile string
	traceFile  string
	tempDir    string
	keepTemp   bool
	randomSeed int64
}

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	archive, err := buildArchive(dir, cfg)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	var stopFG func() error
	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG = fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, archive, dir)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d images=%d pixels=%d elapsed=%s throughput=%.2f MP/s\n",
		cfg.mode,
		stats.ops,
		stats.images,
		stats.pixels,
		stats.elapsed,
		float64(stats.pixels)/1e6/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	images  int
	pixels  int64
	elapsed time.Duration
}

//nolint:gocritic // hugeParam acceptable for profiler
func runProfile(cfg config, archive, rootDir string) (profileStats, error) {
	ctx := context.Background()
	start := time.Now()
	var stats profileStats

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return stats.ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	extractDir := filepath.Join(rootDir, "unzipped")
	imagePixels := int64(cfg.width * cfg.height)
	transformOpts := []pixelpipe.TransformOption{
		pixelpipe.TransformWithWorkers(cfg.workers),
		pixelpipe.TransformWithCompression(parseLevel(cfg.level)),
	}

	switch cfg.mode {
	case "extract":
		for shouldContinue() {
			dest := filepath.Join(rootDir, "extract", fmt.Sprintf("iter-%d", stats.ops))
			if _, err := pixelpipe.Extract(ctx, archive, dest); err != nil {
				return profileStats{}, err
			}
			if err := os.RemoveAll(dest); err != nil {
				return profileStats{}, err
			}
			stats.images += cfg.images
			stats.ops++
		}

	case transform.NameGrayscale, transform.NameSepia:
		fn, err := transform.Lookup(cfg.mode)
		if err != nil {
			return profileStats{}, err
		}
		if _, err := pixelpipe.Extract(ctx, archive, extractDir); err != nil {
			return profileStats{}, err
		}
		paths, err := scanTree(extractDir, cfg.dirCount)
		if err != nil {
			return profileStats{}, err
		}

		start = time.Now()
		out := filepath.Join(rootDir, cfg.mode)
		for shouldContinue() {
			res, err := pixelpipe.ApplyTransform(ctx, paths, out, fn, transformOpts...)
			if err != nil {
				return profileStats{}, err
			}
			if err := res.Err(); err != nil {
				return profileStats{}, err
			}
			stats.images += len(res.Outputs)
			stats.ops++
		}

	case "run":
		for shouldContinue() {
			iterDir := filepath.Join(rootDir, "run", fmt.Sprintf("iter-%d", stats.ops))
			pipeline := pixelpipe.Config{
				Archive:    archive,
				ExtractDir: filepath.Join(iterDir, "unzipped"),
				ScanDir:    "dir00",
				Outputs: []pixelpipe.OutputConfig{
					{Transform: transform.NameGrayscale, Dir: filepath.Join(iterDir, "grayscale")},
					{Transform: transform.NameSepia, Dir: filepath.Join(iterDir, "sepia")},
				},
				Workers: cfg.workers,
			}
			report, err := pixelpipe.Run(ctx, pipeline)
			if err != nil {
				return profileStats{}, err
			}
			if err := report.Err(); err != nil {
				return profileStats{}, err
			}
			if err := os.RemoveAll(iterDir); err != nil {
				return profileStats{}, err
			}
			stats.images += report.Written()
			stats.ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	stats.pixels = int64(stats.images) * imagePixels
	stats.elapsed = time.Since(start)
	return stats, nil
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.mode, "mode", "run", "mode: extract, grayscale, sepia, run")
	flag.IntVar(&cfg.images, "images", 64, "number of images in the archive")
	flag.IntVar(&cfg.width, "width", 512, "image width in pixels")
	flag.IntVar(&cfg.height, "height", 512, "image height in pixels")
	flag.IntVar(&cfg.dirCount, "dir-count", 1, "number of directories in the archive")
	flag.StringVar(&cfg.method, "method", "deflate", "zip method: store, deflate or zstd")
	flag.StringVar(&cfg.pattern, "pattern", "gradient", "pattern: gradient or random")
	flag.IntVar(&cfg.workers, "workers", 0, "transform workers: <0 serial, 0 GOMAXPROCS, >0 fixed")
	flag.StringVar(&cfg.level, "level", "default", "png compression: default, none, speed, best")
	flag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.Parse()
	return cfg
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "pixelpipe-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

// buildArchive writes a zip of generated PNG images to dir and returns its path.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func buildArchive(dir string, cfg config) (string, error) {
	method, err := parseMethod(cfg.method)
	if err != nil {
		return "", err
	}
	dirCount := max(cfg.dirCount, 1)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional use for reproducible benchmarks
	for i := range cfg.images {
		data, err := makeImage(cfg.width, cfg.height, i, cfg.pattern, rng)
		if err != nil {
			return "", err
		}
		name := fmt.Sprintf("dir%02d/img%05d.png", i%dirCount, i)
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			return "", err
		}
		if _, err := w.Write(data); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, "images.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
		return "", err
	}
	return path, nil
}

func makeImage(width, height, seq int, pattern string, rng *rand.Rand) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	switch pattern {
	case "random":
		if _, err := rng.Read(img.Pix); err != nil {
			return nil, err
		}
	default:
		for i := 0; i < len(img.Pix); i += 4 {
			p := i/4 + seq
			img.Pix[i] = byte(p)
			img.Pix[i+1] = byte(p >> 3)
			img.Pix[i+2] = byte(p >> 6)
			img.Pix[i+3] = 255
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scanTree scans every generated directory below root.
func scanTree(root string, dirCount int) ([]string, error) {
	var paths []string
	for i := range max(dirCount, 1) {
		found, err := pixelpipe.Scan(filepath.Join(root, fmt.Sprintf("dir%02d", i)))
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func parseMethod(name string) (uint16, error) {
	switch name {
	case "store":
		return zip.Store, nil
	case "deflate":
		return zip.Deflate, nil
	case "zstd":
		return zstd.ZipMethodWinZip, nil
	default:
		return 0, fmt.Errorf("unknown zip method: %s", name)
	}
}

func parseLevel(name string) png.CompressionLevel {
	switch name {
	case "none":
		return png.NoCompression
	case "speed":
		return png.BestSpeed
	case "best":
		return png.BestCompression
	case "default":
		return png.DefaultCompression
	default:
		log.Fatalf("unknown png compression: %s", name)
		return png.DefaultCompression
	}
}
