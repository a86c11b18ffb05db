package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "boneenhance/internal/errors"
	"boneenhance/internal/logger"
	"boneenhance/internal/models"
	"boneenhance/pkg/config"
	"boneenhance/pkg/enhance"
	"boneenhance/pkg/imageio"
	"boneenhance/pkg/measure"
	"boneenhance/pkg/visualization"
)

// options are the flags shared by both commands.
type options struct {
	configPath string
	initConfig string
	maskPath   string
	previewDir string
	logLevel   string
	workers    int
	compress   bool
}

// parseFlags parses the leading flags and returns the remaining positionals.
func parseFlags(prog, usage string, args []string, stderr io.Writer) (*options, []string, error) {
	opts := &options{}

	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.initConfig, "init-config", "", "Write the default configuration to this file and exit")
	fs.StringVar(&opts.maskPath, "mask", "", "Mask image; only voxels inside it contribute to parameter estimation and output")
	fs.StringVar(&opts.previewDir, "preview-dir", "", "Directory to save PNG slice previews of the measure")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.IntVar(&opts.workers, "workers", 0, "Number of goroutines (default from config: all CPUs)")
	fs.BoolVar(&opts.compress, "compress", false, "Write MetaImage outputs zlib-compressed")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return opts, fs.Args(), nil
}

// start parses the flags, applies the log level and handles -init-config.
// When done is true the command has finished and status is its exit code.
func start(argv []string, usage string, stdout, stderr io.Writer) (opts *options, positionals []string, status int, done bool) {
	prog := filepath.Base(argv[0])

	opts, positionals, err := parseFlags(prog, usage, argv[1:], stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil, nil, 0, true
	}
	if err != nil {
		return nil, nil, 1, true
	}
	logger.SetOutput(stderr)

	if opts.logLevel != "" {
		if err := logger.SetLevel(opts.logLevel); err != nil {
			return nil, nil, report(apperrors.NewUsageError("invalid -log-level", err), usage, stderr), true
		}
	}

	if opts.initConfig != "" {
		if err := config.CreateDefaultConfigFile(opts.initConfig); err != nil {
			return nil, nil, report(apperrors.NewIOError("failed to write default configuration", err), usage, stderr), true
		}
		fmt.Fprintf(stdout, "Wrote default configuration to %s\n", opts.initConfig)
		return nil, nil, 0, true
	}
	return opts, positionals, 0, false
}

// setup loads the configuration and applies flag overrides.
func setup(opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, apperrors.NewUsageError("invalid configuration", err)
	}
	if opts.workers > 0 {
		cfg.Processing.Workers = opts.workers
	}
	return cfg, nil
}

// report prints err and returns its exit status.
func report(err error, usage string, stderr io.Writer) int {
	if apperrors.IsUsage(err) {
		fmt.Fprintln(stderr, usage)
	}
	logger.WithError(err).Error("enhancement failed")
	return apperrors.ExitCode(err)
}

func readVolume(path string) (*models.Volume, error) {
	vol, err := imageio.Read(path)
	if err != nil {
		return nil, apperrors.NewIOError(fmt.Sprintf("failed to read %s", path), err)
	}
	return vol, nil
}

func writeVolume(path string, vol *models.Volume, opts *options) error {
	if err := imageio.Write(path, vol, imageio.WriteOptions{Compress: opts.compress}); err != nil {
		return apperrors.NewIOError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func readMask(opts *options) (*models.Mask, error) {
	if opts.maskPath == "" {
		return nil, nil
	}
	vol, err := readVolume(opts.maskPath)
	if err != nil {
		return nil, err
	}
	return models.MaskFromVolume(vol), nil
}

// writePreviews stores slices of the measure when -preview-dir is set.
func writePreviews(vol *models.Volume, cfg *config.Config, opts *options, stdout io.Writer) error {
	if opts.previewDir == "" {
		return nil
	}
	dir := filepath.Join(opts.previewDir, cfg.Output.PreviewAxis)
	fmt.Fprintf(stdout, "Saving %s-axis previews to: %s\n", cfg.Output.PreviewAxis, dir)
	if err := visualization.NewViewer(vol).SaveSliceSequence(cfg.Output.PreviewAxis, dir); err != nil {
		return apperrors.NewIOError("failed to write previews", err)
	}
	return nil
}

// newMultiScale configures the multiscale filter shared by both commands.
func newMultiScale(m measure.EigenToMeasure, estimator measure.ParameterEstimator,
	sigmas []float64, mask *models.Mask, cfg *config.Config) *enhance.MultiScale {
	filter := enhance.NewMultiScale(m, sigmas)
	filter.Mask = mask
	filter.Workers = cfg.Processing.Workers
	filter.Hessian.NormalizeAcrossScale = cfg.Hessian.NormalizeAcrossScale

	if len(cfg.Measure.Parameters) > 0 {
		filter.Parameters = append([]float64(nil), cfg.Measure.Parameters...)
	} else {
		filter.Estimator = estimator
	}
	return filter
}

// runMultiScale runs filter with a progress line on stdout.
func runMultiScale(ctx context.Context, filter *enhance.MultiScale, input *models.Volume, stdout io.Writer) (*models.Volume, error) {
	fmt.Fprintln(stdout, "Running multiScaleFilter...")
	printer := NewProgressPrinter(stdout)
	filter.Progress = printer.Update

	start := time.Now()
	out, err := filter.Run(ctx, input)
	printer.Done()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperrors.NewProcessingError("interrupted", err)
		}
		return nil, apperrors.NewProcessingError("multiscale enhancement failed", err)
	}

	logger.WithFields(logrus.Fields{
		"scales":   len(filter.Sigmas),
		"duration": time.Since(start).String(),
	}).Info("multiscale enhancement finished")
	return out, nil
}

func enhanceLabel(bright bool) string {
	if bright {
		return "Enhancing bright objects"
	}
	return "Enhancing dark objects"
}

// RunDescoteaux executes descoteaux-enhance with argv including the program name
// and returns the process exit status.
func RunDescoteaux(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	usage := DescoteauxUsage(filepath.Base(argv[0]))

	opts, positionals, status, done := start(argv, usage, stdout, stderr)
	if done {
		return status
	}

	args, err := ParseDescoteauxArgs(positionals)
	if err != nil {
		return report(err, usage, stderr)
	}
	if err := descoteaux(ctx, args, opts, stdout); err != nil {
		return report(err, usage, stderr)
	}
	return 0
}

func descoteaux(ctx context.Context, args *DescoteauxArgs, opts *options, stdout io.Writer) error {
	cfg, err := setup(opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Read in the following parameters:")
	fmt.Fprintf(stdout, "  InputFileName:           %s\n", args.InputFileName)
	fmt.Fprintf(stdout, "  OutputMeasure:           %s\n", args.OutputMeasure)
	fmt.Fprintf(stdout, "  SetEnhanceBrightObjects: %s\n", enhanceLabel(args.EnhanceBright))
	fmt.Fprintf(stdout, "  NumberOfSigma:           %d\n", len(args.Sigmas))
	fmt.Fprintf(stdout, "  SigmaArray:              %v\n", args.Sigmas)
	fmt.Fprintln(stdout)

	fmt.Fprintf(stdout, "Reading in %s\n", args.InputFileName)
	input, err := readVolume(args.InputFileName)
	if err != nil {
		return err
	}
	mask, err := readMask(opts)
	if err != nil {
		return err
	}

	estimator := measure.NewDescoteauxEstimator()
	estimator.FrobeniusNormWeight = cfg.Descoteaux.FrobeniusNormWeight
	filter := newMultiScale(&measure.Descoteaux{EnhanceType: measure.EnhanceTypeFor(args.EnhanceBright)},
		estimator, args.Sigmas, mask, cfg)

	out, err := runMultiScale(ctx, filter, input, stdout)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Writing results to %s\n", args.OutputMeasure)
	if err := writeVolume(args.OutputMeasure, out, opts); err != nil {
		return err
	}
	return writePreviews(out, cfg, opts, stdout)
}

// RunKrcah executes krcah-enhance with argv including the program name and
// returns the process exit status.
func RunKrcah(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	usage := KrcahUsage(filepath.Base(argv[0]))

	opts, positionals, status, done := start(argv, usage, stdout, stderr)
	if done {
		return status
	}

	args, err := ParseKrcahArgs(positionals)
	if err != nil {
		return report(err, usage, stderr)
	}
	if err := krcah(ctx, args, opts, stdout); err != nil {
		return report(err, usage, stderr)
	}
	return 0
}

func krcah(ctx context.Context, args *KrcahArgs, opts *options, stdout io.Writer) error {
	cfg, err := setup(opts)
	if err != nil {
		return err
	}

	parameterSet := measure.UseJournalParameters
	parameterLabel := "Using journal article parameters"
	if args.UseImplementationParameters {
		parameterSet = measure.UseImplementationParameters
		parameterLabel = "Using implementation parameters"
	}

	fmt.Fprintln(stdout, "Read in the following parameters:")
	fmt.Fprintf(stdout, "  InputFileName:               %s\n", args.InputFileName)
	fmt.Fprintf(stdout, "  OutputPreprocessed:          %s\n", args.OutputPreprocessed)
	fmt.Fprintf(stdout, "  OutputMeasure:               %s\n", args.OutputMeasure)
	fmt.Fprintf(stdout, "  SetEnhanceBrightObjects:     %s\n", enhanceLabel(args.EnhanceBright))
	fmt.Fprintf(stdout, "  UseImplementationParameters: %s\n", parameterLabel)
	fmt.Fprintf(stdout, "  NumberOfSigma:               %d\n", len(args.Sigmas))
	fmt.Fprintf(stdout, "  SigmaArray:                  %v\n", args.Sigmas)
	fmt.Fprintln(stdout)

	fmt.Fprintf(stdout, "Reading in %s\n", args.InputFileName)
	input, err := readVolume(args.InputFileName)
	if err != nil {
		return err
	}
	mask, err := readMask(opts)
	if err != nil {
		return err
	}

	preprocessing := enhance.NewKrcahPreprocessing()
	preprocessing.Sigma = cfg.Preprocessing.Sigma
	preprocessing.ScalingConstant = cfg.Preprocessing.ScalingConstant
	preprocessing.Workers = cfg.Processing.Workers

	fmt.Fprintln(stdout, "Running preprocessing...")
	printer := NewProgressPrinter(stdout)
	preprocessing.Progress = printer.Update
	preprocessed, err := preprocessing.Run(ctx, input)
	printer.Done()
	if err != nil {
		return apperrors.NewProcessingError("preprocessing failed", err)
	}

	fmt.Fprintf(stdout, "Writing out %s\n", args.OutputPreprocessed)
	if err := writeVolume(args.OutputPreprocessed, preprocessed, opts); err != nil {
		return err
	}

	estimator := &measure.KrcahEstimator{ParameterSet: parameterSet}
	filter := newMultiScale(&measure.Krcah{EnhanceType: measure.EnhanceTypeFor(args.EnhanceBright)},
		estimator, args.Sigmas, mask, cfg)

	out, err := runMultiScale(ctx, filter, preprocessed, stdout)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Writing results to %s\n", args.OutputMeasure)
	if err := writeVolume(args.OutputMeasure, out, opts); err != nil {
		return err
	}
	return writePreviews(out, cfg, opts, stdout)
}
