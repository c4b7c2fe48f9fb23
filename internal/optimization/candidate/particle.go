package candidate

import (
	"github.com/copyleftdev/swarmopt/internal/optimization"
)

// Particle is a candidate carrying the mutable state PSO needs. The engine
// updates these fields in place; a particle never shares its slices with
// another particle.
type Particle struct {
	Candidate

	Velocity           []float64
	BestRepresentation []float64
	BestFitness        float64
}

// NewParticle builds a particle following the NewCandidate rules, then
// records the starting point as its personal best and zeroes its velocity.
func NewParticle(problem Problem, representation []float64, rng Rand) (*Particle, error) {
	c, err := NewCandidate(problem, representation, rng)
	if err != nil {
		return nil, err
	}

	return &Particle{
		Candidate:          *c,
		Velocity:           make([]float64, len(c.Representation)),
		BestRepresentation: append([]float64(nil), c.Representation...),
		BestFitness:        c.Fitness(),
	}, nil
}

// NewPopulation draws size random particles for problem.
func NewPopulation(problem Problem, size int, rng Rand) ([]*Particle, error) {
	if size <= 0 {
		return nil, optimization.PreconditionErrorf("population size must be positive, got %d", size).
			WithComponent(component).WithOperation("NewPopulation")
	}

	population := make([]*Particle, 0, size)
	for i := 0; i < size; i++ {
		p, err := NewParticle(problem, nil, rng)
		if err != nil {
			return nil, err
		}
		population = append(population, p)
	}
	return population, nil
}

// Clone returns a deep copy of p. The problem is shared since problems are
// immutable during a run.
func (p *Particle) Clone() *Particle {
	if p == nil {
		return nil
	}
	return &Particle{
		Candidate: Candidate{
			Problem:        p.Problem,
			Representation: append([]float64(nil), p.Representation...),
		},
		Velocity:           append([]float64(nil), p.Velocity...),
		BestRepresentation: append([]float64(nil), p.BestRepresentation...),
		BestFitness:        p.BestFitness,
	}
}

// Solution snapshots the particle's current position and fitness.
func (p *Particle) Solution() *optimization.Solution {
	return &optimization.Solution{
		Parameters: append([]float64(nil), p.Representation...),
		Value:      p.Fitness(),
	}
}
