// Package benchmark provides standard continuous test functions as
// box-bounded optimization problems.
package benchmark

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
)

// ObjectiveFunction scores a point.
type ObjectiveFunction func(x []float64) float64

// Problem is an objective restricted to a box. Initial representations are
// drawn uniformly inside the box and explicit ones must lie within it.
type Problem struct {
	name      string
	objective ObjectiveFunction
	bounds    [][2]float64
}

var _ candidate.Problem = (*Problem)(nil)

// NewProblem builds a box-bounded problem. Each bound is [min, max] with
// min <= max.
func NewProblem(name string, objective ObjectiveFunction, bounds [][2]float64) (*Problem, error) {
	if objective == nil {
		return nil, fmt.Errorf("objective function is required")
	}
	if len(bounds) == 0 {
		return nil, fmt.Errorf("bounds are required")
	}
	for i, b := range bounds {
		if math.IsNaN(b[0]) || math.IsNaN(b[1]) || b[0] > b[1] {
			return nil, fmt.Errorf("invalid bounds for dimension %d: [%v, %v]", i, b[0], b[1])
		}
	}
	return &Problem{
		name:      name,
		objective: objective,
		bounds:    append([][2]float64(nil), bounds...),
	}, nil
}

// Name returns the problem name.
func (p *Problem) Name() string {
	return p.name
}

// Dimensions returns the dimensionality of the box.
func (p *Problem) Dimensions() int {
	return len(p.bounds)
}

// Bounds returns a copy of the box.
func (p *Problem) Bounds() [][2]float64 {
	return append([][2]float64(nil), p.bounds...)
}

// Fitness evaluates the objective.
func (p *Problem) Fitness(representation []float64) float64 {
	return p.objective(representation)
}

// RandomInitialRepresentation draws uniformly inside the box.
func (p *Problem) RandomInitialRepresentation(rng candidate.Rand) []float64 {
	x := make([]float64, len(p.bounds))
	for i, b := range p.bounds {
		x[i] = b[0] + rng.Float64()*(b[1]-b[0])
	}
	return x
}

// Validate checks the length of the representation and that every
// coordinate is finite and inside the box.
func (p *Problem) Validate(representation []float64) error {
	if len(representation) != len(p.bounds) {
		return fmt.Errorf("expected %d values, got %d", len(p.bounds), len(representation))
	}
	for i, v := range representation {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value %d is not finite: %v", i, v)
		}
		if v < p.bounds[i][0] || v > p.bounds[i][1] {
			return fmt.Errorf("value %d = %v outside [%v, %v]", i, v, p.bounds[i][0], p.bounds[i][1])
		}
	}
	return nil
}

// Sphere is sum(x_i^2). Minimum 0 at the origin.
func Sphere(x []float64) float64 {
	return floats.Dot(x, x)
}

// Rastrigin is 10n + sum(x_i^2 - 10 cos(2 pi x_i)). Minimum 0 at the origin.
func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Rosenbrock is sum(100 (x_{i+1} - x_i^2)^2 + (1 - x_i)^2). Minimum 0 at (1, ..., 1).
func Rosenbrock(x []float64) float64 {
	sum := 0.0
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

// Ackley has its global minimum 0 at the origin.
func Ackley(x []float64) float64 {
	n := float64(len(x))
	sumSq, sumCos := 0.0, 0.0
	for _, v := range x {
		sumSq += v * v
		sumCos += math.Cos(2 * math.Pi * v)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E
}

type definition struct {
	objective ObjectiveFunction
	bound     float64
}

var registry = map[string]definition{
	"sphere":     {Sphere, 5.12},
	"rastrigin":  {Rastrigin, 5.12},
	"rosenbrock": {Rosenbrock, 2.048},
	"ackley":     {Ackley, 32.768},
}

// Names lists the registered benchmark functions in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the named benchmark over dims dimensions using its
// customary symmetric search box.
func Lookup(name string, dims int) (*Problem, error) {
	def, ok := registry[name]
	if !ok {
		return nil, optimization.NewErrorf("unknown benchmark function %q (available: %v)", name, Names()).
			WithComponent("benchmark").WithOperation("Lookup")
	}
	if dims <= 0 {
		return nil, optimization.PreconditionErrorf("dimensions must be positive, got %d", dims).
			WithComponent("benchmark").WithOperation("Lookup")
	}

	bounds := make([][2]float64, dims)
	for i := range bounds {
		bounds[i] = [2]float64{-def.bound, def.bound}
	}
	return NewProblem(name, def.objective, bounds)
}
