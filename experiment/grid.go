package experiment

import (
	"context"
	"math/rand/v2"

	"github.com/CodeStranger-Fred/mdplearn/config"
	"github.com/CodeStranger-Fred/mdplearn/gridworld"
	"github.com/CodeStranger-Fred/mdplearn/mdp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// GridController is a controller for the grid world.
type GridController = mdp.Controller[gridworld.Cell, gridworld.Move]

// NewController builds the controller named by cfg.Algorithm for d.
func NewController(cfg config.Config, d *gridworld.Domain, rng *rand.Rand, log logrus.FieldLogger, rec mdp.Recorder) (GridController, error) {
	switch cfg.Algorithm {
	case config.ValueIteration:
		vi := cfg.ValueIteration
		return mdp.NewValueIterationController[gridworld.Cell, gridworld.Move](d, mdp.NewMappedUtility[gridworld.Cell](vi.DefaultValue), mdp.ValueIterationOptions{
			Discount:  vi.Discount,
			MaxError:  vi.MaxError,
			MaxSweeps: vi.MaxSweeps,
			Logger:    log,
			Recorder:  rec,
		}), nil
	case config.PolicyIteration:
		pi := cfg.PolicyIteration
		return mdp.NewPolicyIterationController[gridworld.Cell, gridworld.Move](d, mdp.NewMappedUtility[gridworld.Cell](pi.DefaultValue), mdp.PolicyIterationOptions{
			Discount:         pi.Discount,
			EvaluationSweeps: pi.EvaluationSweeps,
			MaxIterations:    pi.MaxIterations,
			Rand:             rng,
			Logger:           log,
			Recorder:         rec,
		}), nil
	case config.QLearning:
		q := cfg.QLearning
		return mdp.NewQLearningController[gridworld.Cell, gridworld.Move](d, mdp.QLearningOptions{
			Discount:          q.Discount,
			DefaultQ:          q.DefaultQ,
			EpsilonGreedy:     q.EpsilonGreedy,
			Exploration:       exploration(q, d.Reward()),
			LearningRate:      learningRate(q),
			LearnTransitions:  q.LearnTransitions,
			UsePreviousReward: q.UsePreviousReward,
			AverageWindow:     q.AverageWindow,
			Rand:              rng,
			Logger:            log,
			Recorder:          rec,
		}), nil
	}
	return nil, errors.Wrapf(config.ErrInvalid, "unknown algorithm %q", cfg.Algorithm)
}

func exploration(q config.QLearningConfig, reward mdp.RewardModel[gridworld.Cell]) mdp.Exploration {
	if q.Exploration == config.ExplorationNone {
		return mdp.NoExploration{}
	}
	optimistic := reward.OptimisticReward()
	if q.Optimistic != nil {
		optimistic = *q.Optimistic
	}
	return mdp.SimpleExploration{Threshold: q.FrequencyThreshold, Optimistic: optimistic}
}

func learningRate(q config.QLearningConfig) mdp.LearningRate {
	if q.Decay == 0 {
		return mdp.ConstantLearningRate(q.LearningRate)
	}
	return mdp.DecayingLearningRate{Initial: q.LearningRate, Decay: q.Decay}
}

// GridRun is a finished grid world run together with its controller.
type GridRun struct {
	Result
	Domain     *gridworld.Domain
	Controller GridController
}

// RunGrid builds the configured world and controller and simulates it. All
// randomness derives from rng.
func RunGrid(ctx context.Context, cfg config.Config, rng *rand.Rand, log logrus.FieldLogger, rec Recorder) (GridRun, error) {
	var run GridRun
	d, err := gridworld.NewDomain(cfg.Grid.World(), rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())))
	if err != nil {
		return run, err
	}
	c, err := NewController(cfg, d, rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())), log, rec)
	if err != nil {
		return run, err
	}
	res, err := Run[gridworld.Cell, gridworld.Move](ctx, d, c, Options{
		Algorithm: cfg.Algorithm,
		Trials:    cfg.Trials,
		MaxSteps:  cfg.MaxSteps,
		Rand:      rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())),
		Logger:    log,
		Recorder:  rec,
	})
	return GridRun{Result: res, Domain: d, Controller: c}, err
}

// Compare runs every algorithm on the configured world concurrently. Run i
// is seeded with (seed, i), so results do not depend on scheduling. The
// returned runs follow the order of algorithms.
func Compare(ctx context.Context, cfg config.Config, seed uint64, log logrus.FieldLogger, rec Recorder, algorithms ...string) ([]GridRun, error) {
	if len(algorithms) == 0 {
		algorithms = []string{config.ValueIteration, config.PolicyIteration, config.QLearning}
	}
	cfgs := make([]config.Config, len(algorithms))
	for i, alg := range algorithms {
		cfgs[i] = cfg
		cfgs[i].Algorithm = alg
		if err := cfgs[i].Validate(); err != nil {
			return nil, err
		}
	}

	runs := make([]GridRun, len(algorithms))
	g, ctx := errgroup.WithContext(ctx)
	for i, runCfg := range cfgs {
		alg := runCfg.Algorithm
		g.Go(func() error {
			run, err := RunGrid(ctx, runCfg, rand.New(rand.NewPCG(seed, uint64(i))), log, rec)
			if err != nil {
				return errors.Wrap(err, alg)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return runs, nil
}
