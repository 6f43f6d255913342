// Package config loads experiment settings from YAML, an optional .env file
// and MDP_* environment variables, in that order of precedence.
package config

import (
	"io/fs"
	"os"
	"strconv"

	"github.com/CodeStranger-Fred/mdplearn/gridworld"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Algorithms accepted by Config.Algorithm.
const (
	ValueIteration  = "value-iteration"
	PolicyIteration = "policy-iteration"
	QLearning       = "q-learning"
)

// Exploration strategies accepted by QLearningConfig.Exploration.
const (
	ExplorationSimple = "simple"
	ExplorationNone   = "none"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Algorithm string `yaml:"algorithm"`
	// Seed feeds the process wide random source. Zero picks a random seed.
	Seed uint64 `yaml:"seed"`
	// Trials is the number of episodes simulated.
	Trials int `yaml:"trials"`
	// MaxSteps caps the length of one episode.
	MaxSteps int `yaml:"max_steps"`

	Grid            GridConfig            `yaml:"grid"`
	ValueIteration  ValueIterationConfig  `yaml:"value_iteration"`
	PolicyIteration PolicyIterationConfig `yaml:"policy_iteration"`
	QLearning       QLearningConfig       `yaml:"q_learning"`
	Logging         LoggingConfig         `yaml:"logging"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	Plot            PlotConfig            `yaml:"plot"`
}

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type GridConfig struct {
	Cols            int     `yaml:"cols"`
	Rows            int     `yaml:"rows"`
	Goal            Point   `yaml:"goal"`
	Pit             Point   `yaml:"pit"`
	Block           Point   `yaml:"block"`
	SideProbability float64 `yaml:"side_probability"`
	DefaultReward   float64 `yaml:"default_reward"`
	GoalReward      float64 `yaml:"goal_reward"`
	PitReward       float64 `yaml:"pit_reward"`
}

type ValueIterationConfig struct {
	Discount     float64 `yaml:"discount"`
	MaxError     float64 `yaml:"max_error"`
	MaxSweeps    int     `yaml:"max_sweeps"`
	DefaultValue float64 `yaml:"default_utility"`
}

type PolicyIterationConfig struct {
	Discount         float64 `yaml:"discount"`
	EvaluationSweeps int     `yaml:"evaluation_sweeps"`
	MaxIterations    int     `yaml:"max_iterations"`
	DefaultValue     float64 `yaml:"default_utility"`
}

type QLearningConfig struct {
	Discount      float64 `yaml:"discount"`
	DefaultQ      float64 `yaml:"default_q"`
	EpsilonGreedy float64 `yaml:"epsilon_greedy"`
	// LearningRate is the initial rate. With Decay zero it stays constant.
	LearningRate float64 `yaml:"learning_rate"`
	Decay        float64 `yaml:"decay"`
	Exploration  string  `yaml:"exploration"`
	// FrequencyThreshold is how often a pair is tried before its Q value
	// replaces the optimistic estimate.
	FrequencyThreshold int `yaml:"frequency_threshold"`
	// Optimistic overrides the estimate used for rarely tried pairs. Unset
	// means the reward model's optimistic reward.
	Optimistic        *float64 `yaml:"optimistic,omitempty"`
	LearnTransitions  bool     `yaml:"learn_transitions"`
	UsePreviousReward bool     `yaml:"use_previous_reward"`
	AverageWindow     int      `yaml:"average_window"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives log output instead of stderr when set.
	File string `yaml:"file"`
}

type MetricsConfig struct {
	// Addr serves Prometheus metrics when set, e.g. ":9090".
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

type PlotConfig struct {
	// File receives the learning curve chart when set.
	File  string `yaml:"file"`
	Title string `yaml:"title"`
	// Window smooths the plotted curves with a moving average.
	Window int `yaml:"window"`
}

func Default() Config {
	return Config{
		Algorithm: ValueIteration,
		Trials:    10000,
		MaxSteps:  1000,
		Grid: GridConfig{
			Cols:            4,
			Rows:            3,
			Goal:            Point{3, 2},
			Pit:             Point{3, 1},
			Block:           Point{1, 1},
			SideProbability: 0.1,
			DefaultReward:   -0.04,
			GoalReward:      1,
			PitReward:       -1,
		},
		ValueIteration: ValueIterationConfig{
			Discount: 1,
			MaxError: 0.01,
		},
		PolicyIteration: PolicyIterationConfig{
			Discount:         1,
			EvaluationSweeps: 5,
		},
		QLearning: QLearningConfig{
			Discount:           1,
			EpsilonGreedy:      0.1,
			LearningRate:       0.99,
			Decay:              0.1,
			Exploration:        ExplorationSimple,
			FrequencyThreshold: 20,
			AverageWindow:      10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Plot: PlotConfig{
			Title:  "learning curves",
			Window: 100,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, errors.Wrap(err, "load config file")
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

// LoadDotEnv exports the variables of a .env file that are not already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// ApplyEnv overrides settings from MDP_* variables. Unparsable values are
// ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MDP_ALGORITHM"); v != "" {
		c.Algorithm = v
	}
	if v := os.Getenv("MDP_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Seed = n
		}
	}
	if v := os.Getenv("MDP_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Trials = n
		}
	}
	if v := os.Getenv("MDP_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxSteps = n
		}
	}
	if v := os.Getenv("MDP_DISCOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ValueIteration.Discount = f
			c.PolicyIteration.Discount = f
			c.QLearning.Discount = f
		}
	}
	if v := os.Getenv("MDP_EPSILON_GREEDY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.QLearning.EpsilonGreedy = f
		}
	}
	if v := os.Getenv("MDP_LEARN_TRANSITIONS"); v != "" {
		c.QLearning.LearnTransitions = v == "true" || v == "1"
	}
	if v := os.Getenv("MDP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MDP_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("MDP_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("MDP_PLOT_FILE"); v != "" {
		c.Plot.File = v
	}
}

func (c Config) Validate() error {
	switch c.Algorithm {
	case ValueIteration, PolicyIteration, QLearning:
	default:
		return errors.Wrapf(ErrInvalid, "unknown algorithm %q", c.Algorithm)
	}
	if c.Trials < 1 {
		return errors.Wrap(ErrInvalid, "trials must be >= 1")
	}
	if c.MaxSteps < 1 {
		return errors.Wrap(ErrInvalid, "max_steps must be >= 1")
	}
	if err := c.Grid.World().Check(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	for name, d := range map[string]float64{
		"value_iteration.discount":  c.ValueIteration.Discount,
		"policy_iteration.discount": c.PolicyIteration.Discount,
		"q_learning.discount":       c.QLearning.Discount,
	} {
		if d < 0 || d > 1 {
			return errors.Wrapf(ErrInvalid, "%s must be between 0 and 1", name)
		}
	}
	if c.ValueIteration.MaxError <= 0 {
		return errors.Wrap(ErrInvalid, "value_iteration.max_error must be > 0")
	}
	if c.PolicyIteration.EvaluationSweeps < 1 {
		return errors.Wrap(ErrInvalid, "policy_iteration.evaluation_sweeps must be >= 1")
	}
	q := c.QLearning
	if q.EpsilonGreedy < 0 || q.EpsilonGreedy > 1 {
		return errors.Wrap(ErrInvalid, "q_learning.epsilon_greedy must be between 0 and 1")
	}
	if q.LearningRate <= 0 || q.LearningRate > 1 {
		return errors.Wrap(ErrInvalid, "q_learning.learning_rate must be in (0, 1]")
	}
	if q.Decay < 0 {
		return errors.Wrap(ErrInvalid, "q_learning.decay must be >= 0")
	}
	if q.Exploration != ExplorationSimple && q.Exploration != ExplorationNone {
		return errors.Wrapf(ErrInvalid, "unknown exploration %q", q.Exploration)
	}
	if q.AverageWindow < 0 {
		return errors.Wrap(ErrInvalid, "q_learning.average_window must be >= 0")
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrapf(ErrInvalid, "logging.level: %v", err)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return errors.Wrapf(ErrInvalid, "unknown logging.format %q", c.Logging.Format)
	}
	if c.Plot.Window < 1 {
		return errors.Wrap(ErrInvalid, "plot.window must be >= 1")
	}
	return nil
}

// World converts the grid settings.
func (g GridConfig) World() gridworld.World {
	return gridworld.World{
		Cols:            g.Cols,
		Rows:            g.Rows,
		Goal:            gridworld.Cell{X: g.Goal.X, Y: g.Goal.Y},
		Pit:             gridworld.Cell{X: g.Pit.X, Y: g.Pit.Y},
		Block:           gridworld.Cell{X: g.Block.X, Y: g.Block.Y},
		SideProbability: g.SideProbability,
		DefaultReward:   g.DefaultReward,
		GoalReward:      g.GoalReward,
		PitReward:       g.PitReward,
	}
}
