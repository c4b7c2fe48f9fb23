package pso

import (
	"context"
	"sync"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
)

// Optimizer binds an Engine to a population so a run can be driven through
// the optimization.Optimizer interface. Progress is readable while Optimize
// is running.
type Optimizer struct {
	engine     *Engine
	population []*candidate.Particle

	mu      sync.RWMutex
	best    *optimization.Solution
	history []optimization.Evaluation
	cancel  context.CancelFunc
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// NewOptimizer creates an Optimizer running cfg over population. The
// population is mutated by Optimize.
func NewOptimizer(cfg Config, population []*candidate.Particle, opts ...Option) (*Optimizer, error) {
	o := &Optimizer{population: population}

	// Record progress before any caller-supplied observer runs.
	opts = append(opts[:len(opts):len(opts)], WithObserver(chainObservers(o.record, observerFrom(opts))))

	engine, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	o.engine = engine

	capacity := min(cfg.MaxIterations, historyPrealloc)
	if capacity < 0 {
		capacity = 0
	}
	o.history = make([]optimization.Evaluation, 0, capacity)
	return o, nil
}

// Optimize runs the engine to completion or until ctx is done or Stop is called.
func (o *Optimizer) Optimize(ctx context.Context) (*optimization.OptimizationResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.history = o.history[:0]
	o.best = nil
	o.mu.Unlock()
	defer cancel()

	result, err := o.engine.Run(ctx, o.population)
	if err != nil {
		return nil, err
	}

	best := result.GlobalBest.Solution()
	o.mu.Lock()
	o.best = best
	history := append([]optimization.Evaluation(nil), o.history...)
	o.mu.Unlock()

	return &optimization.OptimizationResult{
		BestSolution: best.Clone(),
		History:      history,
		Iterations:   result.Iterations,
	}, nil
}

// GetBestSolution returns the best solution found so far, or nil before the
// first iteration completes.
func (o *Optimizer) GetBestSolution() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.best.Clone()
}

// GetHistory returns the global best recorded after each completed iteration.
func (o *Optimizer) GetHistory() []optimization.Evaluation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]optimization.Evaluation(nil), o.history...)
}

// Stop cancels a running Optimize call.
func (o *Optimizer) Stop() {
	o.mu.RLock()
	cancel := o.cancel
	o.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Optimizer) record(iteration int, best *candidate.Particle, _ Stats) {
	s := best.Solution()
	o.mu.Lock()
	o.best = s
	o.history = append(o.history, optimization.Evaluation{Iteration: iteration, Solution: s.Clone()})
	o.mu.Unlock()
}

// observerFrom extracts the observer set by opts, if any.
func observerFrom(opts []Option) IterationObserver {
	var probe Engine
	for _, opt := range opts {
		opt(&probe)
	}
	return probe.observer
}

func chainObservers(observers ...IterationObserver) IterationObserver {
	return func(iteration int, best *candidate.Particle, stats Stats) {
		for _, obs := range observers {
			if obs != nil {
				obs(iteration, best, stats)
			}
		}
	}
}
