package pso

import (
	"fmt"
	"math"
)

// PersonalBestRule selects how a particle decides that a new position
// improves on its personal best.
type PersonalBestRule string

const (
	// PersonalBestStrictLess always requires a strictly smaller fitness,
	// whatever the optimization direction.
	PersonalBestStrictLess PersonalBestRule = "strict-less"
	// PersonalBestDirection compares in the run's optimization direction.
	PersonalBestDirection PersonalBestRule = "direction"
)

// Config holds the PSO hyperparameters for a run.
type Config struct {
	// InertiaWeight (w) scales the particle's current velocity.
	InertiaWeight float64
	// CognitiveCoefficient (c1) scales attraction to the personal best.
	CognitiveCoefficient float64
	// SocialCoefficient (c2) scales attraction to the global best.
	SocialCoefficient float64

	// Maximize selects maximization; the zero value minimizes.
	Maximize bool

	// MaxIterations is the fixed iteration budget. Zero or negative runs
	// no iterations.
	MaxIterations int

	// Verbose logs per-iteration progress at info level and every particle
	// move at debug level.
	Verbose bool

	// RandomSeed seeds the engine's generator when no source is injected.
	// Zero picks a time-based seed.
	RandomSeed int64

	// PersonalBestRule defaults to PersonalBestStrictLess when empty.
	PersonalBestRule PersonalBestRule
}

// DefaultConfig returns w=0.5, c1=1.5, c2=1.5, minimization and 100 iterations.
func DefaultConfig() Config {
	return Config{
		InertiaWeight:        0.5,
		CognitiveCoefficient: 1.5,
		SocialCoefficient:    1.5,
		MaxIterations:        100,
		PersonalBestRule:     PersonalBestStrictLess,
	}
}

// Validate checks that the coefficients are finite and the rule is known.
func (c Config) Validate() error {
	coefficients := []struct {
		name  string
		value float64
	}{
		{"inertia weight", c.InertiaWeight},
		{"cognitive coefficient", c.CognitiveCoefficient},
		{"social coefficient", c.SocialCoefficient},
	}
	for _, coef := range coefficients {
		if math.IsNaN(coef.value) || math.IsInf(coef.value, 0) {
			return fmt.Errorf("%s must be finite, got %v", coef.name, coef.value)
		}
	}

	switch c.PersonalBestRule {
	case "", PersonalBestStrictLess, PersonalBestDirection:
	default:
		return fmt.Errorf("unknown personal best rule %q", c.PersonalBestRule)
	}
	return nil
}

// ParsePersonalBestRule converts a textual rule name.
func ParsePersonalBestRule(s string) (PersonalBestRule, error) {
	rule := PersonalBestRule(s)
	switch rule {
	case PersonalBestStrictLess, PersonalBestDirection:
		return rule, nil
	}
	return "", fmt.Errorf("unknown personal best rule %q (want %q or %q)",
		s, PersonalBestStrictLess, PersonalBestDirection)
}

// improvesPersonalBest applies the configured personal best rule.
func (c Config) improvesPersonalBest(fitness, best float64) bool {
	if c.PersonalBestRule == PersonalBestDirection && c.Maximize {
		return fitness > best
	}
	return fitness < best
}
