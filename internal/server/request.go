package server

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
	"github.com/copyleftdev/swarmopt/internal/problems/benchmark"
	"github.com/copyleftdev/swarmopt/internal/problems/warehouse"
)

const warehouseProblem = "warehouse"

// StartRequest describes an optimization job. Unset hyperparameters fall
// back to the server's PSO_* configuration.
//
// Example:
//
//	{"problem": "sphere", "dimensions": 2, "max_iterations": 200}
//	{"problem": "warehouse", "customers": [{"location": [38.72, -9.14], "delivery_cost": 3}]}
type StartRequest struct {
	Problem    string               `json:"problem"`
	Dimensions int                  `json:"dimensions,omitempty"`
	Customers  []warehouse.Customer `json:"customers,omitempty"`

	// InitialPopulation supplies explicit starting representations; the
	// remaining particles up to PopulationSize are drawn at random.
	InitialPopulation [][]float64 `json:"initial_population,omitempty"`

	PopulationSize       *int     `json:"population_size,omitempty"`
	MaxIterations        *int     `json:"max_iterations,omitempty"`
	InertiaWeight        *float64 `json:"inertia_weight,omitempty"`
	CognitiveCoefficient *float64 `json:"cognitive_coefficient,omitempty"`
	SocialCoefficient    *float64 `json:"social_coefficient,omitempty"`
	Maximize             *bool    `json:"maximize,omitempty"`
	Seed                 *int64   `json:"seed,omitempty"`
	PersonalBestRule     string   `json:"personal_best_rule,omitempty"`
	Verbose              *bool    `json:"verbose,omitempty"`
}

// jobPlan is a validated, ready-to-run job.
type jobPlan struct {
	problemName string
	population  []*candidate.Particle
	psoConfig   pso.Config
	rng         *rand.Rand
}

func availableProblems() []string {
	return append(benchmark.Names(), warehouseProblem)
}

// buildRun resolves the problem, merges hyperparameters over the server
// defaults and constructs the population.
func (s *Server) buildRun(req StartRequest) (*jobPlan, error) {
	limits := s.cfg.Optimization
	if req.Problem != warehouseProblem && req.Dimensions > limits.MaxDimensions {
		return nil, fmt.Errorf("dimensions %d exceeds the limit of %d", req.Dimensions, limits.MaxDimensions)
	}

	problem, err := resolveProblem(req)
	if err != nil {
		return nil, err
	}

	cfg := s.cfg.PSOConfig()
	size := s.cfg.PSO.PopulationSize
	if req.PopulationSize != nil {
		size = *req.PopulationSize
	}
	if req.MaxIterations != nil {
		cfg.MaxIterations = *req.MaxIterations
	}
	if req.InertiaWeight != nil {
		cfg.InertiaWeight = *req.InertiaWeight
	}
	if req.CognitiveCoefficient != nil {
		cfg.CognitiveCoefficient = *req.CognitiveCoefficient
	}
	if req.SocialCoefficient != nil {
		cfg.SocialCoefficient = *req.SocialCoefficient
	}
	if req.Maximize != nil {
		cfg.Maximize = *req.Maximize
	}
	if req.Verbose != nil {
		cfg.Verbose = *req.Verbose
	}
	if req.Seed != nil {
		cfg.RandomSeed = *req.Seed
	}
	if req.PersonalBestRule != "" {
		rule, err := pso.ParsePersonalBestRule(req.PersonalBestRule)
		if err != nil {
			return nil, err
		}
		cfg.PersonalBestRule = rule
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxIterations > limits.MaxIterations {
		return nil, fmt.Errorf("max_iterations %d exceeds the limit of %d", cfg.MaxIterations, limits.MaxIterations)
	}

	if size < len(req.InitialPopulation) {
		size = len(req.InitialPopulation)
	}
	if size < 1 {
		return nil, fmt.Errorf("population_size must be positive, got %d", size)
	}
	if size > limits.MaxPopulationSize {
		return nil, fmt.Errorf("population_size %d exceeds the limit of %d", size, limits.MaxPopulationSize)
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	population := make([]*candidate.Particle, 0, size)
	for i, representation := range req.InitialPopulation {
		p, err := candidate.NewParticle(problem, representation, nil)
		if err != nil {
			return nil, fmt.Errorf("initial_population[%d]: %w", i, err)
		}
		population = append(population, p)
	}
	for len(population) < size {
		p, err := candidate.NewParticle(problem, nil, rng)
		if err != nil {
			return nil, err
		}
		population = append(population, p)
	}

	return &jobPlan{
		problemName: req.Problem,
		population:  population,
		psoConfig:   cfg,
		rng:         rng,
	}, nil
}

func resolveProblem(req StartRequest) (candidate.Problem, error) {
	switch req.Problem {
	case "":
		return nil, fmt.Errorf("problem is required (available: %v)", availableProblems())
	case warehouseProblem:
		return warehouse.New(req.Customers)
	default:
		return benchmark.Lookup(req.Problem, req.Dimensions)
	}
}
