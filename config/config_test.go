package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeStranger-Fred/mdplearn/gridworld"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, gridworld.Classic(), cfg.Grid.World())
	assert.Equal(t, 10000, cfg.Trials)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	path := writeFile(t, "mdp.yaml", `
algorithm: q-learning
seed: 42
trials: 500
grid:
  side_probability: 0.2
q_learning:
  epsilon_greedy: 0.05
  exploration: none
  optimistic: 3
  learn_transitions: true
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, QLearning, cfg.Algorithm)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 500, cfg.Trials)
	assert.Equal(t, 0.2, cfg.Grid.SideProbability)
	assert.Equal(t, 4, cfg.Grid.Cols)
	assert.Equal(t, 0.05, cfg.QLearning.EpsilonGreedy)
	assert.Equal(t, ExplorationNone, cfg.QLearning.Exploration)
	require.NotNil(t, cfg.QLearning.Optimistic)
	assert.Equal(t, 3.0, *cfg.QLearning.Optimistic)
	assert.True(t, cfg.QLearning.LearnTransitions)
	assert.Equal(t, 0.99, cfg.QLearning.LearningRate)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "trials: [1, 2\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "mdp.yaml", "algorithm: value-iteration\ntrials: 10\n")
	t.Setenv("MDP_ALGORITHM", "policy-iteration")
	t.Setenv("MDP_TRIALS", "77")
	t.Setenv("MDP_DISCOUNT", "0.9")
	t.Setenv("MDP_SEED", "not-a-number")
	t.Setenv("MDP_METRICS_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyIteration, cfg.Algorithm)
	assert.Equal(t, 77, cfg.Trials)
	assert.Equal(t, 0.9, cfg.ValueIteration.Discount)
	assert.Equal(t, 0.9, cfg.QLearning.Discount)
	assert.Equal(t, uint64(0), cfg.Seed)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "MDP_PLOT_FILE=curves.html\n")
	t.Setenv("MDP_PLOT_FILE", "")
	require.NoError(t, os.Unsetenv("MDP_PLOT_FILE"))

	require.NoError(t, LoadDotEnv(path))
	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "curves.html", cfg.Plot.File)

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"algorithm", func(c *Config) { c.Algorithm = "sarsa" }},
		{"trials", func(c *Config) { c.Trials = 0 }},
		{"max steps", func(c *Config) { c.MaxSteps = 0 }},
		{"grid", func(c *Config) { c.Grid.Goal = c.Grid.Pit }},
		{"discount", func(c *Config) { c.PolicyIteration.Discount = 1.5 }},
		{"max error", func(c *Config) { c.ValueIteration.MaxError = 0 }},
		{"sweeps", func(c *Config) { c.PolicyIteration.EvaluationSweeps = 0 }},
		{"epsilon", func(c *Config) { c.QLearning.EpsilonGreedy = -0.1 }},
		{"learning rate", func(c *Config) { c.QLearning.LearningRate = 0 }},
		{"decay", func(c *Config) { c.QLearning.Decay = -1 }},
		{"exploration", func(c *Config) { c.QLearning.Exploration = "boltzmann" }},
		{"window", func(c *Config) { c.QLearning.AverageWindow = -1 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"plot window", func(c *Config) { c.Plot.Window = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}
