package reconcile_test

import (
	"errors"
	"testing"

	"github.com/persistorai/credsync/internal/reconcile"
)

func TestDefaultScoringConfig(t *testing.T) {
	cfg := reconcile.DefaultScoringConfig()

	mode, ok := cfg.Mode.(reconcile.FuzzyMode)
	if !ok {
		t.Fatalf("Mode = %T, want FuzzyMode", cfg.Mode)
	}

	if mode.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", mode.Threshold)
	}

	if cfg.MinimumScore() != 0.5 {
		t.Errorf("MinimumScore() = %v, want 0.5", cfg.MinimumScore())
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNewScoringConfig_ZeroSelectsExact(t *testing.T) {
	cfg, err := reconcile.NewScoringConfig(0, "", 0.6, 0.4)
	if err != nil {
		t.Fatalf("NewScoringConfig: %v", err)
	}

	mode, ok := cfg.Mode.(reconcile.ExactMode)
	if !ok {
		t.Fatalf("Mode = %T, want ExactMode", cfg.Mode)
	}

	if mode.Pattern != nil {
		t.Error("expected nil pattern")
	}

	if cfg.MinimumScore() != 0 {
		t.Errorf("MinimumScore() = %v, want 0", cfg.MinimumScore())
	}
}

func TestNewScoringConfig_ExactWithPattern(t *testing.T) {
	cfg, err := reconcile.NewScoringConfig(0, `^(\w+)`, 0.6, 0.4)
	if err != nil {
		t.Fatalf("NewScoringConfig: %v", err)
	}

	mode := cfg.Mode.(reconcile.ExactMode)
	if mode.Pattern == nil || mode.Pattern.String() != `^(\w+)` {
		t.Errorf("Pattern = %v, want ^(\\w+)", mode.Pattern)
	}
}

func TestNewScoringConfig_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		minScore float64
		pattern  string
		nameW    float64
		domainW  float64
	}{
		{name: "negative threshold", minScore: -0.1, nameW: 0.6, domainW: 0.4},
		{name: "threshold above one", minScore: 1.5, nameW: 0.6, domainW: 0.4},
		{name: "bad pattern", minScore: 0, pattern: "(", nameW: 0.6, domainW: 0.4},
		{name: "negative weight", minScore: 0.5, nameW: -1, domainW: 0.4},
		{name: "zero weights", minScore: 0.5, nameW: 0, domainW: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reconcile.NewScoringConfig(tc.minScore, tc.pattern, tc.nameW, tc.domainW)
			if !errors.Is(err, reconcile.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestScoringConfig_ValidateNilMode(t *testing.T) {
	cfg := reconcile.ScoringConfig{NameWeight: 1}
	if err := cfg.Validate(); !errors.Is(err, reconcile.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestNewScoringConfig_ThresholdOne(t *testing.T) {
	cfg, err := reconcile.NewScoringConfig(1, "", 0.6, 0.4)
	if err != nil {
		t.Fatalf("NewScoringConfig: %v", err)
	}

	if cfg.MinimumScore() != 1 {
		t.Errorf("MinimumScore() = %v, want 1", cfg.MinimumScore())
	}
}
