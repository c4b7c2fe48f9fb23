package pso

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
)

// sphere is f(x) = sum(x_i^2) over dims dimensions
type sphere struct{ dims int }

func (s sphere) Fitness(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func (s sphere) RandomInitialRepresentation(rng candidate.Rand) []float64 {
	x := make([]float64, s.dims)
	for i := range x {
		x[i] = rng.Float64()*10 - 5
	}
	return x
}

func (s sphere) Validate(x []float64) error {
	if len(x) != s.dims {
		return fmt.Errorf("expected %d values, got %d", s.dims, len(x))
	}
	return nil
}

// linear is f(x) = x[0], used to drive particles in a known direction
type linear struct{}

func (linear) Fitness(x []float64) float64                           { return x[0] }
func (linear) RandomInitialRepresentation(candidate.Rand) []float64 { return []float64{0} }
func (linear) Validate([]float64) error                              { return nil }

// constRand returns the same value on every draw
type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

func newParticle(t *testing.T, p candidate.Problem, x ...float64) *candidate.Particle {
	t.Helper()
	particle, err := candidate.NewParticle(p, x, nil)
	require.NoError(t, err)
	return particle
}

func randomPopulation(t *testing.T, size, dims int, seed int64) []*candidate.Particle {
	t.Helper()
	pop, err := candidate.NewPopulation(sphere{dims: dims}, size, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return pop
}

func configWithIterations(n int) Config {
	cfg := DefaultConfig()
	cfg.MaxIterations = n
	cfg.RandomSeed = 1
	return cfg
}

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	require.Len(t, got, len(want))
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

func TestNewEngine(t *testing.T) {
	e, err := New(Config{InertiaWeight: 0.5})
	require.NoError(t, err)
	assert.Equal(t, PersonalBestStrictLess, e.Config().PersonalBestRule)
	assert.NotNil(t, e.rng)
	assert.NotNil(t, e.logger)

	_, err = New(Config{InertiaWeight: math.NaN()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inertia weight must be finite")
}

func TestRunZeroIterations(t *testing.T) {
	for _, iterations := range []int{0, -3} {
		t.Run(fmt.Sprint(iterations), func(t *testing.T) {
			pop := []*candidate.Particle{
				newParticle(t, sphere{dims: 2}, 1.0, 0.0),
				newParticle(t, sphere{dims: 2}, 0.0, 0.0),
				newParticle(t, sphere{dims: 2}, 2.0, 2.0),
			}

			e, err := New(configWithIterations(iterations))
			require.NoError(t, err)

			result, err := e.Run(context.Background(), pop)
			require.NoError(t, err)
			assert.Empty(t, result.History)
			assert.Equal(t, 0, result.Iterations)
			assert.Equal(t, []float64{0.0, 0.0}, result.GlobalBest.Representation)
			assert.Equal(t, 0.0, result.GlobalBest.Fitness())

			// Population untouched without iterations.
			assert.Equal(t, []float64{1.0, 0.0}, pop[0].Representation)
		})
	}
}

func TestInitialGlobalBestFollowsDirection(t *testing.T) {
	tests := []struct {
		name     string
		maximize bool
		want     []float64
	}{
		{name: "minimize", maximize: false, want: []float64{0.0, 0.0}},
		{name: "maximize", maximize: true, want: []float64{1.0, 0.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pop := []*candidate.Particle{
				newParticle(t, sphere{dims: 2}, 1.0, 0.0),
				newParticle(t, sphere{dims: 2}, 0.0, 0.0),
			}
			cfg := configWithIterations(0)
			cfg.Maximize = tt.maximize

			e, err := New(cfg)
			require.NoError(t, err)
			result, err := e.Run(context.Background(), pop)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.GlobalBest.Representation)

			// The global best is a copy, not the particle itself.
			result.GlobalBest.Representation[0] = 42
			assert.NotEqual(t, 42.0, pop[0].Representation[0])
			assert.NotEqual(t, 42.0, pop[1].Representation[0])
		})
	}
}

func TestSingleParticleAtOptimum(t *testing.T) {
	p := newParticle(t, sphere{dims: 2}, 0.0, 0.0)

	e, err := New(configWithIterations(1), WithRand(constRand(0)))
	require.NoError(t, err)

	result, err := e.Run(context.Background(), []*candidate.Particle{p})
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0}, p.Velocity)
	assert.Equal(t, []float64{0, 0}, p.Representation)
	require.Len(t, result.History, 1)
	assert.Equal(t, 0.0, result.History[0].Fitness())
	assert.Equal(t, []float64{0, 0}, result.History[0].Representation)
}

func TestVelocityUpdate(t *testing.T) {
	a := newParticle(t, sphere{dims: 1}, 1.0)
	b := newParticle(t, sphere{dims: 1}, 3.0)
	b.Velocity[0] = 2.0

	e, err := New(configWithIterations(1), WithRand(constRand(0.5)))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), []*candidate.Particle{a, b})
	require.NoError(t, err)

	assert.Equal(t, []float64{1.0}, a.Representation)
	assert.Equal(t, []float64{0.0}, a.Velocity)

	// x' = 3 + 2; v' = 0.5*2 + 0.75*(3-3) + 0.75*(1-3)
	assert.Equal(t, []float64{5.0}, b.Representation)
	assert.Equal(t, []float64{-0.5}, b.Velocity)
	assert.Equal(t, []float64{3.0}, b.BestRepresentation)
	assert.Equal(t, 9.0, b.BestFitness)
}

func TestZeroDrawsKeepOnlyInertia(t *testing.T) {
	p := newParticle(t, sphere{dims: 2}, 1.0, -1.0)
	p.Velocity = []float64{4.0, -2.0}

	e, err := New(configWithIterations(1), WithRand(constRand(0)))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), []*candidate.Particle{p})
	require.NoError(t, err)

	assert.Equal(t, []float64{5.0, -3.0}, p.Representation)
	assert.Equal(t, []float64{2.0, -1.0}, p.Velocity)
}

func TestPositionUsesPreviousVelocity(t *testing.T) {
	pop := randomPopulation(t, 8, 3, 11)
	for _, p := range pop {
		for d := range p.Velocity {
			p.Velocity[d] = float64(d+1) * 0.25
		}
	}

	e, err := New(configWithIterations(1), WithRand(rand.New(rand.NewSource(5))))
	require.NoError(t, err)

	for step := 0; step < 25; step++ {
		oldPositions := make([][]float64, len(pop))
		oldVelocities := make([][]float64, len(pop))
		for i, p := range pop {
			oldPositions[i] = append([]float64(nil), p.Representation...)
			oldVelocities[i] = append([]float64(nil), p.Velocity...)
		}

		_, err := e.Run(context.Background(), pop)
		require.NoError(t, err)

		for i, p := range pop {
			want := make([]float64, len(oldPositions[i]))
			for d := range want {
				want[d] = oldPositions[i][d] + oldVelocities[i][d]
			}
			assertFloat64SlicesEqual(t, p.Representation, want, 0)
		}
	}
}

func TestHistoryLengthMatchesBudget(t *testing.T) {
	for _, iterations := range []int{1, 2, 10, 57} {
		t.Run(fmt.Sprint(iterations), func(t *testing.T) {
			e, err := New(configWithIterations(iterations))
			require.NoError(t, err)

			result, err := e.Run(context.Background(), randomPopulation(t, 10, 2, 3))
			require.NoError(t, err)
			assert.Len(t, result.History, iterations)
			assert.Equal(t, iterations, result.Iterations)
		})
	}
}

func TestGlobalBestIsMonotone(t *testing.T) {
	for _, maximize := range []bool{false, true} {
		t.Run(fmt.Sprintf("maximize=%v", maximize), func(t *testing.T) {
			cfg := configWithIterations(40)
			cfg.Maximize = maximize

			e, err := New(cfg)
			require.NoError(t, err)

			result, err := e.Run(context.Background(), randomPopulation(t, 15, 3, 9))
			require.NoError(t, err)
			require.Len(t, result.History, 40)

			for i := 1; i < len(result.History); i++ {
				prev, cur := result.History[i-1].Fitness(), result.History[i].Fitness()
				assert.False(t, optimization.Better(prev, cur, maximize),
					"iteration %d worsened from %v to %v", i+1, prev, cur)
			}
			last := result.History[len(result.History)-1]
			assert.Equal(t, last.Representation, result.GlobalBest.Representation)
		})
	}
}

func TestMinimizationConverges(t *testing.T) {
	cfg := configWithIterations(200)
	e, err := New(cfg)
	require.NoError(t, err)

	pop := randomPopulation(t, 30, 2, 21)
	initial := PopulationStats(pop).Min

	result, err := e.Run(context.Background(), pop)
	require.NoError(t, err)
	assert.LessOrEqual(t, result.GlobalBest.Fitness(), initial)
	assert.Less(t, result.GlobalBest.Fitness(), 1e-2)
}

func TestHistoryEntriesAreIndependent(t *testing.T) {
	e, err := New(configWithIterations(5))
	require.NoError(t, err)

	result, err := e.Run(context.Background(), randomPopulation(t, 5, 2, 4))
	require.NoError(t, err)

	before := append([]float64(nil), result.History[0].Representation...)
	result.GlobalBest.Representation[0] += 1000
	result.History[4].Representation[0] += 1000
	assert.Equal(t, before, result.History[0].Representation)
}

func TestPersonalBestRule(t *testing.T) {
	tests := []struct {
		name     string
		rule     PersonalBestRule
		maximize bool
		wantBest float64
	}{
		{name: "strict-less while maximizing keeps old best", rule: PersonalBestStrictLess, maximize: true, wantBest: 0},
		{name: "direction while maximizing follows improvement", rule: PersonalBestDirection, maximize: true, wantBest: 1},
		{name: "strict-less while minimizing", rule: PersonalBestStrictLess, maximize: false, wantBest: 0},
		{name: "direction while minimizing", rule: PersonalBestDirection, maximize: false, wantBest: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParticle(t, linear{}, 0)
			p.Velocity[0] = 1

			cfg := configWithIterations(1)
			cfg.Maximize = tt.maximize
			cfg.PersonalBestRule = tt.rule

			e, err := New(cfg, WithRand(constRand(0)))
			require.NoError(t, err)

			_, err = e.Run(context.Background(), []*candidate.Particle{p})
			require.NoError(t, err)

			assert.Equal(t, []float64{1}, p.Representation)
			assert.Equal(t, tt.wantBest, p.BestFitness)
			assert.Equal(t, []float64{tt.wantBest}, p.BestRepresentation)
		})
	}
}

func TestPersonalBestOnlyDecreasesUnderStrictLess(t *testing.T) {
	cfg := configWithIterations(1)
	cfg.Maximize = true

	e, err := New(cfg)
	require.NoError(t, err)

	pop := randomPopulation(t, 10, 2, 8)
	for step := 0; step < 20; step++ {
		before := make([]float64, len(pop))
		for i, p := range pop {
			before[i] = p.BestFitness
		}
		_, err := e.Run(context.Background(), pop)
		require.NoError(t, err)
		for i, p := range pop {
			assert.LessOrEqual(t, p.BestFitness, before[i])
			assert.Equal(t, p.BestFitness, p.Problem.Fitness(p.BestRepresentation))
		}
	}
}

func TestRunPreconditions(t *testing.T) {
	mismatched := []*candidate.Particle{
		newParticle(t, sphere{dims: 2}, 1, 1),
		newParticle(t, sphere{dims: 3}, 1, 1, 1),
	}
	badVelocity := []*candidate.Particle{newParticle(t, sphere{dims: 2}, 1, 1)}
	badVelocity[0].Velocity = []float64{0}

	tests := []struct {
		name       string
		population []*candidate.Particle
	}{
		{name: "nil population", population: nil},
		{name: "empty population", population: []*candidate.Particle{}},
		{name: "nil particle", population: []*candidate.Particle{nil}},
		{name: "mismatched lengths", population: mismatched},
		{name: "velocity length", population: badVelocity},
	}

	e, err := New(configWithIterations(3))
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Run(context.Background(), tt.population)
			assert.ErrorIs(t, err, optimization.ErrPrecondition)
			assert.Nil(t, result)
		})
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(configWithIterations(10))
	require.NoError(t, err)

	_, err = e.Run(ctx, randomPopulation(t, 3, 2, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunIsReproducible(t *testing.T) {
	run := func() *Result {
		e, err := New(configWithIterations(30))
		require.NoError(t, err)
		result, err := e.Run(context.Background(), randomPopulation(t, 10, 3, 99))
		require.NoError(t, err)
		return result
	}

	a, b := run(), run()
	assert.Equal(t, a.GlobalBest.Representation, b.GlobalBest.Representation)
	for i := range a.History {
		assert.Equal(t, a.History[i].Representation, b.History[i].Representation)
	}
}

func TestObserverAndVerboseLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	cfg := configWithIterations(4)
	cfg.Verbose = true

	var iterations []int
	e, err := New(cfg,
		WithLogger(zap.New(core)),
		WithObserver(func(iteration int, best *candidate.Particle, stats Stats) {
			iterations = append(iterations, iteration)
			assert.LessOrEqual(t, stats.Min, stats.Max)
			assert.NotNil(t, best)
		}),
	)
	require.NoError(t, err)

	_, err = e.Run(context.Background(), randomPopulation(t, 3, 2, 2))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, iterations)
	assert.Equal(t, 4, logs.FilterMessage("Iteration").Len())
	assert.Equal(t, 12, logs.FilterMessage("Initial particle location").Len())
	assert.Equal(t, 12, logs.FilterMessage("New particle location").Len())
	assert.Equal(t, 4, logs.FilterMessage("Best fitness").Len())

	for _, entry := range logs.All() {
		switch entry.Message {
		case "Initial particle location", "New particle location":
			assert.Equal(t, zapcore.DebugLevel, entry.Level, entry.Message)
		case "Iteration", "Best fitness":
			assert.Equal(t, zapcore.InfoLevel, entry.Level, entry.Message)
		}
	}
}

func TestVerboseRunAtInfoOmitsParticleMoves(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	cfg := configWithIterations(2)
	cfg.Verbose = true

	e, err := New(cfg, WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), randomPopulation(t, 3, 2, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, logs.FilterMessage("Iteration").Len())
	assert.Zero(t, logs.FilterMessage("Initial particle location").Len())
	assert.Zero(t, logs.FilterMessage("New particle location").Len())
}

func TestQuietRunLogsNothingAtInfo(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	e, err := New(configWithIterations(3), WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), randomPopulation(t, 3, 2, 2))
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}
