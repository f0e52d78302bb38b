package sim

import "fmt"

// DimensionConfig groups the parameters of adaptive Fock truncation.
type DimensionConfig struct {
	Threshold     float64 // probability mass the truncation must keep, in (0, 1)
	GrowthStep    int     // dimensions added per failed trial (must be > 0)
	SafetyMargin  int     // added to the first index reaching Threshold (must be > 0)
	MaxDimensions int     // upper bound on trial dimensions (0 = unbounded)
}

// EngineConfig groups everything a Context is built from.
type EngineConfig struct {
	Seed                 int64   // master seed of the random stream
	Contractions         bool    // auto-contract after Kraus and POVM application
	ContractionTolerance float64 // purity / basis-state / completeness tolerance (must be > 0)
	Dimension            DimensionConfig
}

// NewDimensionConfig creates a DimensionConfig with all fields explicitly set.
func NewDimensionConfig(threshold float64, growthStep, safetyMargin, maxDimensions int) DimensionConfig {
	return DimensionConfig{
		Threshold:     threshold,
		GrowthStep:    growthStep,
		SafetyMargin:  safetyMargin,
		MaxDimensions: maxDimensions,
	}
}

// NewEngineConfig creates an EngineConfig with all fields explicitly set.
func NewEngineConfig(seed int64, contractions bool, tolerance float64, dim DimensionConfig) EngineConfig {
	return EngineConfig{
		Seed:                 seed,
		Contractions:         contractions,
		ContractionTolerance: tolerance,
		Dimension:            dim,
	}
}

// DefaultEngineConfig returns the configuration the CLI starts from.
func DefaultEngineConfig() EngineConfig {
	return NewEngineConfig(42, false, 1e-6, NewDimensionConfig(0.9999, 5, 3, 0))
}

// Validate checks that every field is usable.
func (c EngineConfig) Validate() error {
	if c.ContractionTolerance <= 0 {
		return fmt.Errorf("contraction tolerance must be positive, got %g", c.ContractionTolerance)
	}
	return c.Dimension.Validate()
}

// Validate checks that every field is usable.
func (c DimensionConfig) Validate() error {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("dimension threshold must be in (0, 1), got %g", c.Threshold)
	}
	if c.GrowthStep <= 0 {
		return fmt.Errorf("dimension growth step must be positive, got %d", c.GrowthStep)
	}
	if c.SafetyMargin <= 0 {
		return fmt.Errorf("dimension safety margin must be positive, got %d", c.SafetyMargin)
	}
	if c.MaxDimensions < 0 {
		return fmt.Errorf("max dimensions must be >= 0, got %d", c.MaxDimensions)
	}
	return nil
}
