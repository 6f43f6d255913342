package mdp

import "github.com/sirupsen/logrus"

// Recorder receives solver progress. telemetry.Metrics implements it on top of
// Prometheus collectors.
type Recorder interface {
	Sweep(algorithm string, delta float64)
	PolicyChanges(algorithm string, changed int)
	QUpdate(change float64)
}

type nopRecorder struct{}

func (nopRecorder) Sweep(string, float64)    {}
func (nopRecorder) PolicyChanges(string, int) {}
func (nopRecorder) QUpdate(float64)           {}

// Algorithm names used in logs and metric labels.
const (
	AlgorithmValueIteration  = "value-iteration"
	AlgorithmPolicyIteration = "policy-iteration"
	AlgorithmQLearning       = "q-learning"
)

func loggerOr(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.StandardLogger()
	}
	return l
}

func recorderOr(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
