package study

import (
	"fmt"

	"qcluster/domain/core"
)

// Correction selects the multiple-testing correction strategy.
type Correction string

const (
	CorrectionNone     Correction = "none"
	CorrectionBinomial Correction = "binomial"
	CorrectionFDR      Correction = "fdr"
)

// ParseCorrection maps a configuration string to a Correction.
func ParseCorrection(s string) (Correction, error) {
	switch Correction(s) {
	case CorrectionNone, CorrectionBinomial, CorrectionFDR:
		return Correction(s), nil
	case "":
		return CorrectionNone, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidCorrection, s)
}

// Config is the semantic configuration surface of an analysis run.
type Config struct {
	K           int        `json:"k"`
	Shuffles    int        `json:"number_permutation_shuffles"`
	Alpha       float64    `json:"alpha"`
	UseExposure bool       `json:"use_exposure"`
	UseWeights  bool       `json:"use_weights"`
	Correction  Correction `json:"correction"`
	Seed        *int64     `json:"seed,omitempty"`

	// Workers bounds permutation-trial parallelism; <= 0 means sequential.
	Workers int `json:"workers,omitempty"`
}

// DefaultConfig returns the documented defaults: k=5, 99 shuffles,
// alpha 0.05, case clustering, no correction.
func DefaultConfig() Config {
	return Config{K: 5, Shuffles: 99, Alpha: 0.05, Correction: CorrectionNone}
}

// Validate rejects a configuration before any computation happens.
// population is the number of eligible individuals.
func (c Config) Validate(population int) error {
	if c.K < 1 || c.K >= population {
		return fmt.Errorf("%w: k=%d with population %d", core.ErrInvalidNeighbors, c.K, population)
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("%w: %g", core.ErrInvalidAlpha, c.Alpha)
	}
	if c.Shuffles < 1 {
		return fmt.Errorf("%w: %d", core.ErrInvalidShuffles, c.Shuffles)
	}
	switch c.Correction {
	case CorrectionNone, CorrectionBinomial, CorrectionFDR:
	default:
		return fmt.Errorf("%w: %q", core.ErrInvalidCorrection, c.Correction)
	}
	return nil
}

// MinPValue is the floor of the empirical p-value scale for this shuffle
// count: 1/(shuffles+1).
func (c Config) MinPValue() float64 {
	return 1.0 / float64(c.Shuffles+1)
}
