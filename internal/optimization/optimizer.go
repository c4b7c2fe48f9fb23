package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process
	Optimize(ctx context.Context) (*OptimizationResult, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns the per-iteration history of best solutions
	GetHistory() []Evaluation

	// Stop gracefully stops the optimization process
	Stop()
}

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64
	Value      float64
}

// Clone returns a copy of s that shares no memory with it.
func (s *Solution) Clone() *Solution {
	if s == nil {
		return nil
	}
	return &Solution{
		Parameters: append([]float64(nil), s.Parameters...),
		Value:      s.Value,
	}
}

// Evaluation is the best solution known at the end of an iteration.
type Evaluation struct {
	Iteration int
	Solution  *Solution
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	History      []Evaluation
	Iterations   int
}

// Better reports whether fitness a strictly improves on b in the given
// direction.
func Better(a, b float64, maximize bool) bool {
	if maximize {
		return a > b
	}
	return a < b
}
