// Package pso implements canonical Particle Swarm Optimization over a
// caller-supplied population of particles.
package pso

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
)

const component = "pso"

// IterationObserver is called after every completed iteration with the
// 1-based iteration number, the global best snapshot appended to the
// history and statistics over the current population. Observers must not
// retain or modify best.
type IterationObserver func(iteration int, best *candidate.Particle, stats Stats)

// Result is the outcome of a run.
type Result struct {
	// GlobalBest is an independent copy of the best particle found.
	GlobalBest *candidate.Particle
	// History holds one global best snapshot per completed iteration.
	History []*candidate.Particle
	// Iterations is the number of iterations that ran.
	Iterations int
}

// Engine runs the PSO update loop. An Engine holds no per-run state besides
// its random source, so sequential runs are independent; it is not safe for
// concurrent use.
type Engine struct {
	cfg      Config
	rng      candidate.Rand
	logger   *zap.Logger
	observer IterationObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand injects the source used for the r1 and r2 draws.
func WithRand(rng candidate.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a callback invoked after every iteration.
func WithObserver(observer IterationObserver) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// New creates an engine for cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, optimization.WrapError(err, "invalid configuration").
			WithComponent(component).WithOperation("New")
	}
	if cfg.PersonalBestRule == "" {
		cfg.PersonalBestRule = PersonalBestStrictLess
	}

	e := &Engine{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.rng == nil {
		seed := cfg.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		e.rng = rand.New(rand.NewSource(seed))
	}

	return e, nil
}

// historyPrealloc caps the up-front history allocation for long runs.
const historyPrealloc = 1024

// Config returns the configuration the engine runs with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run evolves population for cfg.MaxIterations iterations and returns the
// best particle found with the history of global bests. The particles are
// mutated in place. ctx is checked between iterations only.
func (e *Engine) Run(ctx context.Context, population []*candidate.Particle) (*Result, error) {
	dims, err := checkPopulation(population)
	if err != nil {
		return nil, err
	}

	fitness := make([]float64, len(population))
	for i, p := range population {
		fitness[i] = p.Fitness()
	}

	bestIdx := e.bestIndex(fitness)
	globalBest := population[bestIdx].Clone()
	globalBestFitness := fitness[bestIdx]

	iterations := e.cfg.MaxIterations
	if iterations < 0 {
		iterations = 0
	}
	history := make([]*candidate.Particle, 0, min(iterations, historyPrealloc))

	e.logger.Debug("Starting particle swarm run",
		zap.Int("particles", len(population)),
		zap.Int("dimensions", dims),
		zap.Int("max_iterations", iterations),
		zap.Bool("maximize", e.cfg.Maximize),
		zap.Float64("initial_best_fitness", globalBestFitness),
	)

	r1 := make([]float64, dims)
	r2 := make([]float64, dims)
	cognitive := make([]float64, dims)
	social := make([]float64, dims)
	diff := make([]float64, dims)

	for iter := 0; iter < iterations; iter++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if e.cfg.Verbose {
			e.logger.Info("Iteration", zap.Int("iteration", iter+1))
		}

		for i, p := range population {
			if e.cfg.Verbose {
				e.logger.Debug("Initial particle location",
					zap.Int("particle", i),
					zap.Float64s("position", p.Representation),
				)
			}

			// The position moves by the velocity held before this update.
			newPosition := floats.AddTo(make([]float64, dims), p.Representation, p.Velocity)

			e.draw(r1)
			e.draw(r2)

			floats.ScaleTo(cognitive, e.cfg.CognitiveCoefficient, r1)
			floats.SubTo(diff, p.BestRepresentation, p.Representation)
			floats.Mul(cognitive, diff)

			floats.ScaleTo(social, e.cfg.SocialCoefficient, r2)
			floats.SubTo(diff, globalBest.Representation, p.Representation)
			floats.Mul(social, diff)

			floats.Scale(e.cfg.InertiaWeight, p.Velocity)
			floats.Add(p.Velocity, cognitive)
			floats.Add(p.Velocity, social)

			p.Representation = newPosition

			fitness[i] = p.Fitness()
			if e.cfg.improvesPersonalBest(fitness[i], p.BestFitness) {
				p.BestRepresentation = append(p.BestRepresentation[:0], p.Representation...)
				p.BestFitness = fitness[i]
			}

			if e.cfg.Verbose {
				e.logger.Debug("New particle location",
					zap.Int("particle", i),
					zap.Float64s("position", p.Representation),
					zap.Float64s("velocity", p.Velocity),
				)
			}
		}

		bestIdx = e.bestIndex(fitness)
		if optimization.Better(fitness[bestIdx], globalBestFitness, e.cfg.Maximize) {
			globalBest = population[bestIdx].Clone()
			globalBestFitness = fitness[bestIdx]
		}

		snapshot := globalBest.Clone()
		history = append(history, snapshot)

		if e.cfg.Verbose || e.observer != nil {
			stats := PopulationStats(population)
			if e.cfg.Verbose {
				e.logger.Info("Best fitness",
					zap.Int("iteration", iter+1),
					zap.Float64("best_fitness", globalBestFitness),
					zap.Float64("population_mean", stats.Mean),
					zap.Float64("population_stddev", stats.StdDev),
				)
			}
			if e.observer != nil {
				e.observer(iter+1, snapshot, stats)
			}
		}
	}

	e.logger.Debug("Particle swarm run completed",
		zap.Int("iterations", iterations),
		zap.Float64("best_fitness", globalBestFitness),
	)

	return &Result{
		GlobalBest: globalBest,
		History:    history,
		Iterations: iterations,
	}, nil
}

// draw fills dst with independent uniform [0,1) samples.
func (e *Engine) draw(dst []float64) {
	for i := range dst {
		dst[i] = e.rng.Float64()
	}
}

// bestIndex returns the first index holding the best fitness in the run's
// direction.
func (e *Engine) bestIndex(fitness []float64) int {
	best := 0
	for i := 1; i < len(fitness); i++ {
		if optimization.Better(fitness[i], fitness[best], e.cfg.Maximize) {
			best = i
		}
	}
	return best
}

// checkPopulation verifies the population is non-empty and every particle
// carries state of one common dimensionality, which it returns.
func checkPopulation(population []*candidate.Particle) (int, error) {
	if len(population) == 0 {
		return 0, optimization.PreconditionErrorf("population must not be empty").
			WithComponent(component).WithOperation("Run")
	}

	var dims int
	for i, p := range population {
		if p == nil || p.Problem == nil {
			return 0, optimization.PreconditionErrorf("particle %d is not initialized", i).
				WithComponent(component).WithOperation("Run")
		}
		if i == 0 {
			dims = len(p.Representation)
			if dims == 0 {
				return 0, optimization.PreconditionErrorf("particle 0 has an empty representation").
					WithComponent(component).WithOperation("Run")
			}
		}
		if len(p.Representation) != dims || len(p.Velocity) != dims || len(p.BestRepresentation) != dims {
			return 0, optimization.PreconditionErrorf(
				"particle %d has representation/velocity/best lengths %d/%d/%d, want %d",
				i, len(p.Representation), len(p.Velocity), len(p.BestRepresentation), dims,
			).WithComponent(component).WithOperation("Run")
		}
	}
	return dims, nil
}
