package mdp

// Exploration turns a utility estimate and the number of times it was tried
// into the value used for action selection. Implementations must be
// non-decreasing in utility and non-increasing in frequency.
type Exploration interface {
	EstimatedReward(utility float64, frequency int) float64
}

// SimpleExploration answers Optimistic until a pair has been tried Threshold
// times and the raw utility afterwards. Optimistic should be at least the best
// reachable utility.
type SimpleExploration struct {
	Threshold  int
	Optimistic float64
}

func (e SimpleExploration) EstimatedReward(utility float64, frequency int) float64 {
	if frequency < e.Threshold {
		return e.Optimistic
	}
	return utility
}

// NoExploration always answers the raw utility.
type NoExploration struct{}

func (NoExploration) EstimatedReward(utility float64, _ int) float64 { return utility }

// LearningRate maps the number of earlier updates of a pair to the step size
// of the next one.
type LearningRate interface {
	Rate(frequency int) float64
}

// ConstantLearningRate never decays. Values are clamped into [0, 1].
type ConstantLearningRate float64

func (r ConstantLearningRate) Rate(int) float64 { return clampUnit(float64(r)) }

// DecayingLearningRate computes Initial / (1 + Initial·Decay·n), clamped into
// [0, 1].
type DecayingLearningRate struct {
	Initial float64
	Decay   float64
}

// DefaultInitialLearningRate is the starting rate of NewDecayingLearningRate.
const DefaultInitialLearningRate = 0.99

func NewDecayingLearningRate(decay float64) DecayingLearningRate {
	return DecayingLearningRate{Initial: DefaultInitialLearningRate, Decay: decay}
}

func (r DecayingLearningRate) Rate(frequency int) float64 {
	return clampUnit(r.Initial / (1 + r.Initial*r.Decay*float64(frequency)))
}
