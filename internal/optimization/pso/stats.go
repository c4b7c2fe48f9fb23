package pso

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
)

// Stats summarizes the fitness values of a population at one point in time.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// PopulationStats computes fitness statistics over population. An empty
// population yields the zero Stats.
func PopulationStats(population []*candidate.Particle) Stats {
	if len(population) == 0 {
		return Stats{}
	}

	fitness := make([]float64, len(population))
	for i, p := range population {
		fitness[i] = p.Fitness()
	}

	mean, std := stat.MeanStdDev(fitness, nil)
	if len(fitness) == 1 {
		std = 0
	}
	return Stats{
		Min:    floats.Min(fitness),
		Max:    floats.Max(fitness),
		Mean:   mean,
		StdDev: std,
	}
}
