// Package candidate defines the contract a problem must satisfy to be
// optimized, and the candidate and particle types built on top of it.
package candidate

import (
	"fmt"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

const component = "candidate"

// Rand is the random source used to draw initial representations.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Problem is the capability set every optimization problem implements.
type Problem interface {
	// Fitness scores a representation. It must be a pure function of its
	// argument and must not modify it.
	Fitness(representation []float64) float64

	// RandomInitialRepresentation draws a starting point from a
	// domain-appropriate distribution.
	RandomInitialRepresentation(rng Rand) []float64

	// Validate checks an explicitly supplied representation.
	Validate(representation []float64) error
}

// Candidate is a point in a problem's search space.
type Candidate struct {
	Problem        Problem
	Representation []float64
}

// NewCandidate builds a candidate for problem. A non-nil representation is
// validated by the problem and copied; a nil one is drawn from
// problem.RandomInitialRepresentation using rng.
func NewCandidate(problem Problem, representation []float64, rng Rand) (*Candidate, error) {
	if problem == nil {
		return nil, optimization.PreconditionErrorf("problem is required").
			WithComponent(component).WithOperation("NewCandidate")
	}

	if representation != nil {
		if err := problem.Validate(representation); err != nil {
			return nil, optimization.ValidationErrorf(err, "invalid representation %v", representation).
				WithComponent(component).WithOperation("NewCandidate")
		}
	} else {
		if rng == nil {
			return nil, optimization.PreconditionErrorf("random source is required to draw a representation").
				WithComponent(component).WithOperation("NewCandidate")
		}
		representation = problem.RandomInitialRepresentation(rng)
	}

	if len(representation) == 0 {
		return nil, optimization.ValidationErrorf(nil, "representation must not be empty").
			WithComponent(component).WithOperation("NewCandidate")
	}

	return &Candidate{
		Problem:        problem,
		Representation: append([]float64(nil), representation...),
	}, nil
}

// Fitness evaluates the candidate's current representation.
func (c *Candidate) Fitness() float64 {
	return c.Problem.Fitness(c.Representation)
}

// Dimensions returns the length of the representation.
func (c *Candidate) Dimensions() int {
	return len(c.Representation)
}

func (c *Candidate) String() string {
	return fmt.Sprint(c.Representation)
}
