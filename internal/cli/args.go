// Package cli implements the descoteaux-enhance and krcah-enhance commands.
package cli

import (
	"fmt"
	"math"
	"strconv"

	apperrors "boneenhance/internal/errors"
	"boneenhance/internal/logger"
)

const (
	descoteauxPositionals = 5
	krcahPositionals      = 7
)

// DescoteauxUsage returns the usage line for the Descoteaux command.
func DescoteauxUsage(prog string) string {
	return fmt.Sprintf("Usage: %s [flags] <InputFileName> <OutputMeasure>"+
		" <EnhanceBrightObjects 0|1> <NumberOfSigma> <Sigma1> [<Sigma2> <Sigma3> ...]", prog)
}

// KrcahUsage returns the usage line for the Krcah command.
func KrcahUsage(prog string) string {
	return fmt.Sprintf("Usage: %s [flags] <InputFileName> <OutputPreprocessed> <OutputMeasure>"+
		" <EnhanceBrightObjects 0|1> <UseImplementationParameters 0|1>"+
		" <NumberOfSigma> <Sigma1> [<Sigma2> <Sigma3> ...]", prog)
}

// DescoteauxArgs holds the positional arguments of descoteaux-enhance.
type DescoteauxArgs struct {
	InputFileName string
	OutputMeasure string
	EnhanceBright bool
	Sigmas        []float64
}

// KrcahArgs holds the positional arguments of krcah-enhance.
type KrcahArgs struct {
	InputFileName               string
	OutputPreprocessed          string
	OutputMeasure               string
	EnhanceBright               bool
	UseImplementationParameters bool
	Sigmas                      []float64
}

// ParseDescoteauxArgs validates the positional arguments, flags excluded.
func ParseDescoteauxArgs(positionals []string) (*DescoteauxArgs, error) {
	if len(positionals) < descoteauxPositionals {
		return nil, apperrors.NewUsageError(
			fmt.Sprintf("expected at least %d arguments, got %d", descoteauxPositionals, len(positionals)), nil)
	}

	bright, err := parseSwitch("EnhanceBrightObjects", positionals[2])
	if err != nil {
		return nil, err
	}
	sigmas, err := parseSigmas(positionals[3:])
	if err != nil {
		return nil, err
	}

	return &DescoteauxArgs{
		InputFileName: positionals[0],
		OutputMeasure: positionals[1],
		EnhanceBright: bright,
		Sigmas:        sigmas,
	}, nil
}

// ParseKrcahArgs validates the positional arguments, flags excluded.
func ParseKrcahArgs(positionals []string) (*KrcahArgs, error) {
	if len(positionals) < krcahPositionals {
		return nil, apperrors.NewUsageError(
			fmt.Sprintf("expected at least %d arguments, got %d", krcahPositionals, len(positionals)), nil)
	}

	bright, err := parseSwitch("EnhanceBrightObjects", positionals[3])
	if err != nil {
		return nil, err
	}
	implementation, err := parseSwitch("UseImplementationParameters", positionals[4])
	if err != nil {
		return nil, err
	}
	sigmas, err := parseSigmas(positionals[5:])
	if err != nil {
		return nil, err
	}

	return &KrcahArgs{
		InputFileName:               positionals[0],
		OutputPreprocessed:          positionals[1],
		OutputMeasure:               positionals[2],
		EnhanceBright:               bright,
		UseImplementationParameters: implementation,
		Sigmas:                      sigmas,
	}, nil
}

// parseSwitch accepts exactly "0" or "1".
func parseSwitch(name, value string) (bool, error) {
	switch value {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, apperrors.NewUsageError(fmt.Sprintf("%s must be 0 or 1, got %q", name, value), nil)
	}
}

// parseSigmas reads NumberOfSigma followed by that many sigma values.
func parseSigmas(args []string) ([]float64, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, apperrors.NewUsageError(fmt.Sprintf("NumberOfSigma must be an integer, got %q", args[0]), err)
	}
	if n < 1 {
		return nil, apperrors.NewUsageError(fmt.Sprintf("NumberOfSigma must be at least 1, got %d", n), nil)
	}

	values := args[1:]
	if len(values) < n {
		return nil, apperrors.NewUsageError(
			fmt.Sprintf("NumberOfSigma is %d but only %d sigma values were given", n, len(values)), nil)
	}
	if extra := values[n:]; len(extra) > 0 {
		logger.WithField("ignored", extra).Warn("ignoring arguments after the last sigma")
	}

	sigmas := make([]float64, n)
	for i := range sigmas {
		s, err := strconv.ParseFloat(values[i], 64)
		if err != nil {
			return nil, apperrors.NewUsageError(fmt.Sprintf("Sigma%d must be a number, got %q", i+1, values[i]), err)
		}
		if s <= 0 || math.IsInf(s, 0) || math.IsNaN(s) {
			return nil, apperrors.NewUsageError(fmt.Sprintf("Sigma%d must be positive and finite, got %g", i+1, s), nil)
		}
		sigmas[i] = s
	}
	return sigmas, nil
}
