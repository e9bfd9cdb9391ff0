package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/meigma/pixelpipe"
	"github.com/meigma/pixelpipe/transform"
)

const (
	flagConfig       = "config"
	flagArchive      = "archive"
	flagExtractDir   = "extract-dir"
	flagScanDir      = "scan-dir"
	flagGrayscaleDir = "grayscale-dir"
	flagSepiaDir     = "sepia-dir"
	flagWorkers      = "workers"
	flagAllowPartial = "allow-partial"
	flagPreserveMode = "preserve-mode"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract the archive and write every configured transform",
		Long: `Extract the archive, then for each configured output scan the extracted
images and write transformed copies.

Settings are read from --config when given, otherwise the defaults are used:
myfile.zip is extracted to unzipped/ and grayscale and sepia copies are
written to grayscale/ and sepia/. Flags override both; a directory flag
replaces the first output of its transform.

The command fails when a stage fails, and when any image fails unless
--allow-partial is set.`,
		Args: cobra.NoArgs,
		RunE: runPipeline,
	}

	flags := cmd.Flags()
	flags.StringP(flagConfig, "c", "", "path to a YAML config file")
	flags.String(flagArchive, "", "zip archive to extract")
	flags.String(flagExtractDir, "", "directory that receives the archive contents")
	flags.String(flagScanDir, "", "directory below the extract dir to scan for images")
	flags.String(flagGrayscaleDir, "", "output directory for grayscale images")
	flags.String(flagSepiaDir, "", "output directory for sepia images")
	flags.Int(flagWorkers, 0, "images processed at once (0 = number of CPUs, <0 = serial)")
	flags.Bool(flagAllowPartial, false, "succeed even when some images fail")
	flags.Bool(flagPreserveMode, false, "apply archive permission bits to extracted files")
	return cmd
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	report, err := pixelpipe.Run(cmd.Context(), cfg, pixelpipe.RunWithLogger(slog.Default()))
	if err != nil {
		return err
	}

	for _, stage := range report.Stages {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %d of %d images to %s\n",
			stage.Transform, len(stage.Result.Outputs), stage.Inputs, stage.Dir); err != nil {
			return err
		}
	}

	failures := report.Failures()
	for _, f := range failures {
		slog.Error("image failed", "path", f.Path, "op", f.Op, "error", f.Err)
	}
	if len(failures) > 0 && !cfg.AllowPartial {
		return fmt.Errorf("%d images failed", len(failures))
	}
	return nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(flags *pflag.FlagSet) (pixelpipe.Config, error) {
	cfg := pixelpipe.DefaultConfig()
	if path, _ := flags.GetString(flagConfig); path != "" {
		loaded, err := pixelpipe.LoadConfig(path)
		if err != nil {
			return pixelpipe.Config{}, err
		}
		cfg = loaded
	}

	if flags.Changed(flagArchive) {
		cfg.Archive, _ = flags.GetString(flagArchive)
	}
	if flags.Changed(flagExtractDir) {
		cfg.ExtractDir, _ = flags.GetString(flagExtractDir)
	}
	if flags.Changed(flagScanDir) {
		cfg.ScanDir, _ = flags.GetString(flagScanDir)
	}
	if flags.Changed(flagGrayscaleDir) {
		dir, _ := flags.GetString(flagGrayscaleDir)
		setOutputDir(&cfg, transform.NameGrayscale, dir)
	}
	if flags.Changed(flagSepiaDir) {
		dir, _ := flags.GetString(flagSepiaDir)
		setOutputDir(&cfg, transform.NameSepia, dir)
	}
	if flags.Changed(flagWorkers) {
		cfg.Workers, _ = flags.GetInt(flagWorkers)
	}
	if flags.Changed(flagAllowPartial) {
		cfg.AllowPartial, _ = flags.GetBool(flagAllowPartial)
	}
	if flags.Changed(flagPreserveMode) {
		cfg.PreserveMode, _ = flags.GetBool(flagPreserveMode)
	}

	if err := cfg.Validate(); err != nil {
		return pixelpipe.Config{}, err
	}
	return cfg, nil
}

// setOutputDir points the first output of the named transform at dir,
// adding an output when the config has none. Further outputs of the same
// transform keep their configured directories.
func setOutputDir(cfg *pixelpipe.Config, name, dir string) {
	for i := range cfg.Outputs {
		if cfg.Outputs[i].Transform == name {
			cfg.Outputs[i].Dir = dir
			return
		}
	}
	cfg.Outputs = append(cfg.Outputs, pixelpipe.OutputConfig{Transform: name, Dir: dir})
}
