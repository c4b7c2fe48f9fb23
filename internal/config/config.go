package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/swarmopt/internal/logging"
	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		// WorkerCount bounds the number of runs the server executes at once.
		WorkerCount int `env:"OPT_WORKER_COUNT" envDefault:"10"`
		// Upper bounds on what a single job request may ask for.
		MaxPopulationSize int `env:"OPT_MAX_POPULATION_SIZE" envDefault:"10000"`
		MaxDimensions     int `env:"OPT_MAX_DIMENSIONS" envDefault:"1000"`
		MaxIterations     int `env:"OPT_MAX_ITERATIONS" envDefault:"1000000"`
	}
	PSO struct {
		PopulationSize       int     `env:"PSO_POPULATION_SIZE" envDefault:"30"`
		MaxIterations        int     `env:"PSO_MAX_ITERATIONS" envDefault:"100"`
		InertiaWeight        float64 `env:"PSO_INERTIA_WEIGHT" envDefault:"0.5"`
		CognitiveCoefficient float64 `env:"PSO_COGNITIVE_COEFFICIENT" envDefault:"1.5"`
		SocialCoefficient    float64 `env:"PSO_SOCIAL_COEFFICIENT" envDefault:"1.5"`
		Maximize             bool    `env:"PSO_MAXIMIZE" envDefault:"false"`
		Seed                 int64   `env:"PSO_SEED" envDefault:"0"`
		PersonalBestRule     string  `env:"PSO_PERSONAL_BEST_RULE" envDefault:"strict-less"`
		Verbose              bool    `env:"PSO_VERBOSE" envDefault:"false"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	if cfg.Optimization.WorkerCount < 1 {
		return nil, fmt.Errorf("OPT_WORKER_COUNT must be positive, got %d", cfg.Optimization.WorkerCount)
	}
	limits := []struct {
		name  string
		value int
	}{
		{"OPT_MAX_POPULATION_SIZE", cfg.Optimization.MaxPopulationSize},
		{"OPT_MAX_DIMENSIONS", cfg.Optimization.MaxDimensions},
		{"OPT_MAX_ITERATIONS", cfg.Optimization.MaxIterations},
	}
	for _, l := range limits {
		if l.value < 1 {
			return nil, fmt.Errorf("%s must be positive, got %d", l.name, l.value)
		}
	}
	if cfg.PSO.PopulationSize < 1 {
		return nil, fmt.Errorf("PSO_POPULATION_SIZE must be positive, got %d", cfg.PSO.PopulationSize)
	}
	if _, err := pso.ParsePersonalBestRule(cfg.PSO.PersonalBestRule); err != nil {
		return nil, fmt.Errorf("PSO_PERSONAL_BEST_RULE: %w", err)
	}

	return cfg, nil
}

// PSOConfig returns the engine configuration described by the PSO_* variables.
func (c *Config) PSOConfig() pso.Config {
	return pso.Config{
		InertiaWeight:        c.PSO.InertiaWeight,
		CognitiveCoefficient: c.PSO.CognitiveCoefficient,
		SocialCoefficient:    c.PSO.SocialCoefficient,
		Maximize:             c.PSO.Maximize,
		MaxIterations:        c.PSO.MaxIterations,
		Verbose:              c.PSO.Verbose,
		RandomSeed:           c.PSO.Seed,
		PersonalBestRule:     pso.PersonalBestRule(c.PSO.PersonalBestRule),
	}
}

// LoggingConfig returns the logger configuration described by the LOG_* variables.
func (c *Config) LoggingConfig() *logging.Config {
	return &logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: c.Logging.Output,
	}
}
