package scoring

import (
	"fmt"
	"math"
)

// Criterion is one weighted axis of comparison between a client and a
// property.
type Criterion string

const (
	CriterionBudget    Criterion = "budget"
	CriterionType      Criterion = "property_type"
	CriterionRooms     Criterion = "rooms"
	CriterionLocation  Criterion = "location"
	CriterionAmenities Criterion = "amenities"
)

// Config enumerates the active criteria and their integer percent weights.
// Weights must sum to exactly 100.
type Config struct {
	Weights map[Criterion]int `mapstructure:"weights"`
}

// DefaultConfig returns the baseline criteria weighting.
func DefaultConfig() Config {
	return Config{
		Weights: map[Criterion]int{
			CriterionBudget:    30,
			CriterionType:      20,
			CriterionLocation:  20,
			CriterionRooms:     15,
			CriterionAmenities: 15,
		},
	}
}

// Validate checks the weight table. Violations are a startup error: callers
// are expected to refuse to run with an invalid configuration.
func (c Config) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("criteria weights are not configured")
	}

	sum := 0
	for criterion, weight := range c.Weights {
		if !knownCriterion(criterion) {
			return fmt.Errorf("unknown criterion %q", criterion)
		}
		if weight < 0 {
			return fmt.Errorf("criterion %q has negative weight %d", criterion, weight)
		}
		sum += weight
	}

	if sum != 100 {
		return fmt.Errorf("criteria weights must sum to 100, got %d", sum)
	}

	return nil
}

func knownCriterion(c Criterion) bool {
	switch c {
	case CriterionBudget, CriterionType, CriterionRooms, CriterionLocation, CriterionAmenities:
		return true
	}
	return false
}

// CombineConfig holds the blend weights for the rule-based and semantic
// scores. Weights must sum to 1.0.
type CombineConfig struct {
	Rule     float64 `mapstructure:"rule-weight"`
	Semantic float64 `mapstructure:"semantic-weight"`
}

// DefaultCombineConfig returns the standard 70/30 blend.
func DefaultCombineConfig() CombineConfig {
	return CombineConfig{Rule: 0.7, Semantic: 0.3}
}

// Validate checks the blend weights once at load time.
func (c CombineConfig) Validate() error {
	if c.Rule < 0 || c.Semantic < 0 {
		return fmt.Errorf("combine weights must be non-negative")
	}
	if math.Abs(c.Rule+c.Semantic-1.0) > 1e-9 {
		return fmt.Errorf("combine weights must sum to 1.0, got %g", c.Rule+c.Semantic)
	}
	return nil
}
