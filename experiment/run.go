// Package experiment drives controllers through simulated episodes and
// collects per-episode statistics.
package experiment

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/CodeStranger-Fred/mdplearn/mdp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// Recorder receives solver progress and finished episodes.
type Recorder interface {
	mdp.Recorder
	Episode(algorithm string, steps int, ret float64)
}

type Options struct {
	// Algorithm labels logs, metrics and the result.
	Algorithm string
	Trials    int
	// MaxSteps ends an episode that has not reached a terminal state.
	MaxSteps int
	// Rand picks restart states. Nil means a randomly seeded source.
	Rand     *rand.Rand
	Logger   logrus.FieldLogger
	Recorder Recorder
}

type Result struct {
	RunID     string
	Algorithm string
	// Returns and Steps hold one entry per episode.
	Returns []float64
	Steps   []int
	// Reached counts episodes that ended in a terminal state.
	Reached  int
	Status   mdp.LearningStatus
	Duration time.Duration
	Stats    string
}

type Summary struct {
	Episodes   int
	Reached    int
	MeanReturn float64
	StdReturn  float64
	MeanSteps  float64
}

func (r Result) Summary() Summary {
	s := Summary{Episodes: len(r.Returns), Reached: r.Reached}
	if len(r.Returns) == 0 {
		return s
	}
	s.MeanReturn, s.StdReturn = stat.MeanStdDev(r.Returns, nil)
	if len(r.Returns) < 2 {
		s.StdReturn = 0
	}
	steps := make([]float64, len(r.Steps))
	for i, n := range r.Steps {
		steps[i] = float64(n)
	}
	s.MeanSteps = stat.Mean(steps, nil)
	return s
}

// Run initializes c at the domain's start state and simulates opts.Trials
// episodes. Each step asks c for an action in the current state and samples
// the next state from the domain. An episode ends in a terminal state or
// after MaxSteps; the next one starts from a random non-terminal state
// after c.ResetStartState.
func Run[S mdp.Ordered[S], A mdp.Ordered[A]](ctx context.Context, d mdp.Domain[S, A], c mdp.Controller[S, A], opts Options) (Result, error) {
	res := Result{RunID: uuid.NewString(), Algorithm: opts.Algorithm}
	if opts.Trials < 1 {
		return res, errors.Errorf("trials must be positive, got %d", opts.Trials)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"run": res.RunID, "algorithm": opts.Algorithm})
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	maxSteps := opts.MaxSteps
	if maxSteps < 1 {
		maxSteps = math.MaxInt
	}

	began := time.Now()
	state := d.StartState()
	if err := c.Initialize(state); err != nil {
		return res, errors.Wrap(err, "initialize controller")
	}
	log.WithField("status", c.FinishedLearning().String()).Info("controller initialized")

	res.Returns = make([]float64, 0, opts.Trials)
	res.Steps = make([]int, 0, opts.Trials)
	for len(res.Returns) < opts.Trials {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		ret, steps, terminal, err := episode(d, c, state, maxSteps)
		if err != nil {
			return res, errors.Wrapf(err, "episode %d", len(res.Returns)+1)
		}
		res.Returns = append(res.Returns, ret)
		res.Steps = append(res.Steps, steps)
		if terminal {
			res.Reached++
		}
		if opts.Recorder != nil {
			opts.Recorder.Episode(opts.Algorithm, steps, ret)
		}
		log.WithFields(logrus.Fields{
			"episode":  len(res.Returns),
			"steps":    steps,
			"return":   ret,
			"terminal": terminal,
		}).Debug("episode finished")

		if state, err = restart(d, rng); err != nil {
			return res, err
		}
		c.ResetStartState(state)
	}

	res.Status = c.FinishedLearning()
	res.Duration = time.Since(began)
	res.Stats = c.Stats()
	sum := res.Summary()
	log.WithFields(logrus.Fields{
		"episodes":    sum.Episodes,
		"reached":     sum.Reached,
		"mean_return": sum.MeanReturn,
		"mean_steps":  sum.MeanSteps,
		"duration":    res.Duration,
	}).Info("run finished")
	return res, nil
}

// episode walks from start until a terminal state has been handed to the
// controller or maxSteps actions were taken. The return sums the rewards of
// every visited state.
func episode[S mdp.Ordered[S], A mdp.Ordered[A]](d mdp.Domain[S, A], c mdp.Controller[S, A], start S, maxSteps int) (float64, int, bool, error) {
	state := start
	ret := 0.0
	for steps := 0; ; steps++ {
		ret += d.Reward().Reward(state)
		a, err := c.UpdateAndGetAction(state)
		if err != nil {
			return ret, steps, false, err
		}
		if d.IsTerminal(state) {
			return ret, steps, true, nil
		}
		if steps == maxSteps {
			return ret, steps, false, nil
		}
		state = d.TransferState(state, a)
	}
}

// restartAttempts bounds the random draws before restart scans the state
// space for a non-terminal state.
const restartAttempts = 1000

var ErrNoStartState = errors.New("every state is terminal")

func restart[S mdp.Ordered[S], A mdp.Ordered[A]](d mdp.Domain[S, A], rng *rand.Rand) (S, error) {
	gen := d.StateGenerator()
	for range restartAttempts {
		if s := gen.RandomState(rng); !d.IsTerminal(s) {
			return s, nil
		}
	}
	for s := range gen.States() {
		if !d.IsTerminal(s) {
			return s, nil
		}
	}
	var none S
	return none, ErrNoStartState
}
