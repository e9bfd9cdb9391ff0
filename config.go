package pixelpipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/meigma/pixelpipe/transform"
)

// Config describes a pipeline run.
//
// Relative paths are resolved against the working directory of the process.
type Config struct {
	// Archive is the zip archive to extract.
	Archive string `yaml:"archive"`

	// ExtractDir receives the archive contents.
	ExtractDir string `yaml:"extractDir"`

	// ScanDir is the directory below ExtractDir that is scanned for images.
	// Empty means ExtractDir itself.
	ScanDir string `yaml:"scanDir,omitempty"`

	// Outputs lists the transforms to apply, in order. Each one reads the
	// images scanned from ScanDir, never the output of another transform.
	Outputs []OutputConfig `yaml:"outputs"`

	// Workers is the number of images processed at once.
	// Values < 0 force serial processing. Zero uses GOMAXPROCS.
	Workers int `yaml:"workers,omitempty"`

	// MaxFileSize limits the size of each extracted entry. Zero uses
	// DefaultMaxFileSize.
	MaxFileSize uint64 `yaml:"maxFileSize,omitempty"`

	// MaxPixels limits the size of each decoded image. Zero uses
	// DefaultMaxPixels.
	MaxPixels uint64 `yaml:"maxPixels,omitempty"`

	// PreserveMode applies archive permission bits to extracted files.
	PreserveMode bool `yaml:"preserveMode,omitempty"`

	// AllowPartial treats per-image failures as success when reporting the
	// outcome of a run.
	AllowPartial bool `yaml:"allowPartial,omitempty"`
}

// OutputConfig binds a named transform to its output directory.
type OutputConfig struct {
	// Transform is a name from the transform catalog.
	Transform string `yaml:"transform"`

	// Dir receives the transformed images.
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration of the classic pipeline:
// extract myfile.zip to unzipped, then write grayscale and sepia copies of
// its images.
func DefaultConfig() Config {
	return Config{
		Archive:    "myfile.zip",
		ExtractDir: "unzipped",
		Outputs: []OutputConfig{
			{Transform: transform.NameGrayscale, Dir: "grayscale"},
			{Transform: transform.NameSepia, Dir: "sepia"},
		},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
// Unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
// An "outputs" key replaces the default outputs entirely.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every path is set, every transform is known and no
// output directory coincides with the extraction or scan directory.
func (c *Config) Validate() error {
	if c.Archive == "" {
		return fmt.Errorf("%w: archive is required", ErrInvalidConfig)
	}
	if c.ExtractDir == "" {
		return fmt.Errorf("%w: extractDir is required", ErrInvalidConfig)
	}
	if c.ScanDir != "" && !filepath.IsLocal(c.ScanDir) {
		return fmt.Errorf("%w: scanDir %q must be a relative path inside extractDir", ErrInvalidConfig, c.ScanDir)
	}
	if len(c.Outputs) == 0 {
		return fmt.Errorf("%w: at least one output is required", ErrInvalidConfig)
	}

	scanDir := filepath.Clean(c.scanPath())
	seen := make(map[string]int, len(c.Outputs))
	for i, out := range c.Outputs {
		if _, err := transform.Lookup(out.Transform); err != nil {
			return fmt.Errorf("%w: outputs[%d]: %w", ErrInvalidConfig, i, err)
		}
		if out.Dir == "" {
			return fmt.Errorf("%w: outputs[%d]: dir is required", ErrInvalidConfig, i)
		}
		dir := filepath.Clean(out.Dir)
		if dir == scanDir || dir == filepath.Clean(c.ExtractDir) {
			return fmt.Errorf("%w: outputs[%d]: dir %q overlaps the extracted images", ErrInvalidConfig, i, out.Dir)
		}
		if j, ok := seen[dir]; ok {
			return fmt.Errorf("%w: outputs[%d] and outputs[%d] share dir %q", ErrInvalidConfig, j, i, out.Dir)
		}
		seen[dir] = i
	}
	return nil
}

// scanPath returns the directory scanned for images.
func (c *Config) scanPath() string {
	if c.ScanDir == "" {
		return c.ExtractDir
	}
	return filepath.Join(c.ExtractDir, c.ScanDir)
}
