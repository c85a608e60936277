package reconcile

import (
	"fmt"
	"math"
	"regexp"
)

// Scoring defaults.
const (
	DefaultMinimumScore = 0.5
	DefaultNameWeight   = 0.6
	DefaultDomainWeight = 0.4
)

// MatchMode selects how the similarity pass scores candidate pairs.
// It is either FuzzyMode or ExactMode.
type MatchMode interface {
	matchMode()
}

// FuzzyMode accepts username-matched pairs whose combined name/domain
// similarity reaches Threshold.
type FuzzyMode struct {
	Threshold float64
}

// ExactMode disables fuzzy scoring. With a nil Pattern the similarity pass is
// skipped; otherwise username-matched pairs match when Pattern extracts the
// same key from both names.
type ExactMode struct {
	Pattern *regexp.Regexp
}

func (FuzzyMode) matchMode() {}
func (ExactMode) matchMode() {}

// ScoringConfig holds the immutable thresholds for the similarity pass.
type ScoringConfig struct {
	Mode         MatchMode
	NameWeight   float64
	DomainWeight float64
}

// DefaultScoringConfig returns fuzzy matching at the default threshold.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Mode:         FuzzyMode{Threshold: DefaultMinimumScore},
		NameWeight:   DefaultNameWeight,
		DomainWeight: DefaultDomainWeight,
	}
}

// NewScoringConfig builds a validated config. A minScore of 0 selects exact
// mode, in which pattern (if non-empty) is compiled and used for key matching.
func NewScoringConfig(minScore float64, pattern string, nameWeight, domainWeight float64) (ScoringConfig, error) {
	cfg := ScoringConfig{NameWeight: nameWeight, DomainWeight: domainWeight}

	if minScore == 0 {
		mode := ExactMode{}
		if pattern != "" {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return ScoringConfig{}, fmt.Errorf("%w: pattern: %w", ErrInvalidConfig, err)
			}
			mode.Pattern = re
		}
		cfg.Mode = mode
	} else {
		cfg.Mode = FuzzyMode{Threshold: minScore}
	}

	if err := cfg.Validate(); err != nil {
		return ScoringConfig{}, err
	}

	return cfg, nil
}

// Validate checks threshold and weight ranges.
func (c ScoringConfig) Validate() error {
	switch m := c.Mode.(type) {
	case FuzzyMode:
		if math.IsNaN(m.Threshold) || m.Threshold <= 0 || m.Threshold > 1 {
			return fmt.Errorf("%w: fuzzy threshold must be in (0, 1], got %v", ErrInvalidConfig, m.Threshold)
		}
	case ExactMode:
	case nil:
		return fmt.Errorf("%w: match mode is required", ErrInvalidConfig)
	default:
		return fmt.Errorf("%w: unknown match mode %T", ErrInvalidConfig, m)
	}

	if c.NameWeight < 0 || c.DomainWeight < 0 || math.IsNaN(c.NameWeight) || math.IsNaN(c.DomainWeight) {
		return fmt.Errorf("%w: weights must be non-negative", ErrInvalidConfig)
	}

	if c.NameWeight+c.DomainWeight <= 0 {
		return fmt.Errorf("%w: weights must not both be zero", ErrInvalidConfig)
	}

	return nil
}

// MinimumScore returns the acceptance threshold of the similarity pass,
// or 0 in exact mode.
func (c ScoringConfig) MinimumScore() float64 {
	if m, ok := c.Mode.(FuzzyMode); ok {
		return m.Threshold
	}

	return 0
}
