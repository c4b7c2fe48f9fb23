package main

import (
	"fmt"
	"io"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/swarmopt/internal/config"
	"github.com/copyleftdev/swarmopt/internal/logging"
	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
	"github.com/copyleftdev/swarmopt/internal/problems/benchmark"
	"github.com/copyleftdev/swarmopt/internal/problems/warehouse"
)

func runWarehouse(cmd *cobra.Command, cfg *config.Config) error {
	path, _ := cmd.Flags().GetString("file")

	problem, err := warehouse.LoadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d customers from %s\n", problem.Customers(), path)

	return optimize(cmd, cfg, "warehouse", problem)
}

func runBench(cmd *cobra.Command, cfg *config.Config) error {
	name, _ := cmd.Flags().GetString("function")
	dims, _ := cmd.Flags().GetInt("dimensions")

	problem, err := benchmark.Lookup(name, dims)
	if err != nil {
		return err
	}
	return optimize(cmd, cfg, name, problem)
}

// psoConfigFromFlags overlays the command's PSO flags on the env config.
func psoConfigFromFlags(cmd *cobra.Command, cfg *config.Config) (pso.Config, int, error) {
	c := cfg.PSOConfig()
	flags := cmd.Flags()

	particles, _ := flags.GetInt("particles")
	c.MaxIterations, _ = flags.GetInt("iterations")
	c.InertiaWeight, _ = flags.GetFloat64("inertia")
	c.CognitiveCoefficient, _ = flags.GetFloat64("cognitive")
	c.SocialCoefficient, _ = flags.GetFloat64("social")
	c.Maximize, _ = flags.GetBool("maximize")
	c.RandomSeed, _ = flags.GetInt64("seed")
	c.Verbose, _ = flags.GetBool("verbose")

	ruleName, _ := flags.GetString("personal-best-rule")
	rule, err := pso.ParsePersonalBestRule(ruleName)
	if err != nil {
		return c, 0, err
	}
	c.PersonalBestRule = rule

	if particles < 1 {
		return c, 0, fmt.Errorf("--particles must be positive, got %d", particles)
	}
	return c, particles, c.Validate()
}

func optimize(cmd *cobra.Command, cfg *config.Config, name string, problem candidate.Problem) error {
	psoCfg, particles, err := psoConfigFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if psoCfg.Verbose {
		var closeLogger func()
		logger, closeLogger, err = logging.NewLogger(cfg.LoggingConfig())
		if err != nil {
			return err
		}
		defer closeLogger()
	}
	logger = logger.With(zap.String("problem", name))

	seed := psoCfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	population, err := candidate.NewPopulation(problem, particles, rng)
	if err != nil {
		return err
	}

	engine, err := pso.New(psoCfg, pso.WithRand(rng), pso.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := engine.Run(ctx, population)
	if err != nil {
		return err
	}

	showHistory, _ := cmd.Flags().GetBool("history")
	printResult(cmd.OutOrStdout(), name, result, time.Since(start), showHistory)
	return nil
}

func printResult(w io.Writer, name string, result *pso.Result, elapsed time.Duration, showHistory bool) {
	fmt.Fprintf(w, "Problem:      %s\n", name)
	fmt.Fprintf(w, "Iterations:   %d (%s)\n", result.Iterations, elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Best:         %v\n", result.GlobalBest.Representation)
	fmt.Fprintf(w, "Best fitness: %.6f\n", result.GlobalBest.Fitness())

	if len(result.History) == 0 {
		return
	}
	first := result.History[0].Fitness()
	last := result.History[len(result.History)-1].Fitness()
	fmt.Fprintf(w, "History:      %.6f -> %.6f over %d iterations\n", first, last, len(result.History))

	if showHistory {
		for i, best := range result.History {
			fmt.Fprintf(w, "%6d  %.6f  %v\n", i+1, best.Fitness(), best.Representation)
		}
	}
}
