// Package main provides the swarmopt CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/swarmopt/internal/config"
	"github.com/copyleftdev/swarmopt/internal/problems/benchmark"
)

var (
	version = "dev"
	commit  = "none" // Set via ldflags: -X main.commit=$(git rev-parse --short HEAD)
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "swarmopt",
		Short: "swarmopt - Particle Swarm Optimization",
		Long: `swarmopt evolves a swarm of candidate solutions toward the best
value of an objective function.

Problems:
  • warehouse: place a warehouse minimizing cost-weighted customer distance
  • bench: classic benchmark functions (sphere, rastrigin, rosenbrock, ackley)

PSO flags default to the PSO_* environment variables.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "swarmopt %s (%s)\n", version, commit)
		},
	})

	warehouseCmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Find the best warehouse location for a set of customers",
		Long: `Reads customers from a YAML file:

  customers:
    - location: [38.7223, -9.1393]
      delivery_cost: 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWarehouse(cmd, cfg)
		},
	}
	warehouseCmd.Flags().String("file", "", "YAML file listing the customers")
	warehouseCmd.MarkFlagRequired("file")
	addPSOFlags(warehouseCmd, cfg)
	rootCmd.AddCommand(warehouseCmd)

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Minimize a benchmark function",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, cfg)
		},
	}
	benchCmd.Flags().String("function", "sphere", fmt.Sprintf("Benchmark function: %v", benchmark.Names()))
	benchCmd.Flags().Int("dimensions", 2, "Number of dimensions")
	addPSOFlags(benchCmd, cfg)
	rootCmd.AddCommand(benchCmd)

	return rootCmd
}

func addPSOFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().Int("particles", cfg.PSO.PopulationSize, "Number of particles")
	cmd.Flags().Int("iterations", cfg.PSO.MaxIterations, "Number of iterations")
	cmd.Flags().Float64("inertia", cfg.PSO.InertiaWeight, "Inertia weight (w)")
	cmd.Flags().Float64("cognitive", cfg.PSO.CognitiveCoefficient, "Cognitive coefficient (c1)")
	cmd.Flags().Float64("social", cfg.PSO.SocialCoefficient, "Social coefficient (c2)")
	cmd.Flags().Bool("maximize", cfg.PSO.Maximize, "Maximize fitness instead of minimizing it")
	cmd.Flags().Int64("seed", cfg.PSO.Seed, "Random seed (0 = time based)")
	cmd.Flags().Bool("verbose", cfg.PSO.Verbose, "Log every particle move")
	cmd.Flags().String("personal-best-rule", cfg.PSO.PersonalBestRule, "Personal best rule: strict-less or direction")
	cmd.Flags().Bool("history", false, "Print the global best of every iteration")
}
