package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10, cfg.Optimization.WorkerCount)
	assert.Equal(t, 30, cfg.PSO.PopulationSize)
	assert.Equal(t, 10000, cfg.Optimization.MaxPopulationSize)
	assert.Equal(t, 1000, cfg.Optimization.MaxDimensions)
	assert.Equal(t, 1000000, cfg.Optimization.MaxIterations)

	// The PSO defaults match the engine defaults.
	want := pso.DefaultConfig()
	assert.Equal(t, want, cfg.PSOConfig())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PSO_INERTIA_WEIGHT", "0.729")
	t.Setenv("PSO_COGNITIVE_COEFFICIENT", "1.49445")
	t.Setenv("PSO_SOCIAL_COEFFICIENT", "1.49445")
	t.Setenv("PSO_MAXIMIZE", "true")
	t.Setenv("PSO_MAX_ITERATIONS", "250")
	t.Setenv("PSO_SEED", "7")
	t.Setenv("PSO_PERSONAL_BEST_RULE", "direction")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Logging.Level)

	psoCfg := cfg.PSOConfig()
	assert.Equal(t, 0.729, psoCfg.InertiaWeight)
	assert.Equal(t, 1.49445, psoCfg.CognitiveCoefficient)
	assert.True(t, psoCfg.Maximize)
	assert.Equal(t, 250, psoCfg.MaxIterations)
	assert.Equal(t, int64(7), psoCfg.RandomSeed)
	assert.Equal(t, pso.PersonalBestDirection, psoCfg.PersonalBestRule)

	logCfg := cfg.LoggingConfig()
	assert.Equal(t, "info", logCfg.Level)
	assert.Equal(t, "stderr", logCfg.Output)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparsable port", "HTTP_PORT", "eighty"},
		{"zero workers", "OPT_WORKER_COUNT", "0"},
		{"zero population", "PSO_POPULATION_SIZE", "0"},
		{"zero population limit", "OPT_MAX_POPULATION_SIZE", "0"},
		{"negative dimensions limit", "OPT_MAX_DIMENSIONS", "-1"},
		{"zero iterations limit", "OPT_MAX_ITERATIONS", "0"},
		{"unknown rule", "PSO_PERSONAL_BEST_RULE", "greater"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
