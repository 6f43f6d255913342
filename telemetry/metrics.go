// Package telemetry exposes solver and simulation progress as Prometheus
// metrics.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics owns its registry so several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	sweeps        *prometheus.CounterVec
	sweepDelta    *prometheus.GaugeVec
	policyChanges *prometheus.CounterVec
	qUpdates      prometheus.Counter
	qChange       prometheus.Histogram
	episodes      *prometheus.CounterVec
	episodeReturn *prometheus.HistogramVec
	episodeSteps  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdp_sweeps_total",
			Help: "Utility sweeps over the state space",
		}, []string{"algorithm"}),
		sweepDelta: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mdp_sweep_delta",
			Help: "Largest utility change of the latest sweep",
		}, []string{"algorithm"}),
		policyChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdp_policy_changes_total",
			Help: "Actions replaced during policy improvement",
		}, []string{"algorithm"}),
		qUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "mdp_q_updates_total",
			Help: "Q table updates",
		}),
		qChange: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mdp_q_change",
			Help:    "Absolute change of a Q value per update",
			Buckets: []float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 0.1, 1},
		}),
		episodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mdp_episodes_total",
			Help: "Simulated episodes",
		}, []string{"algorithm"}),
		episodeReturn: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdp_episode_return",
			Help:    "Undiscounted return of an episode",
			Buckets: prometheus.LinearBuckets(-2, 0.25, 17),
		}, []string{"algorithm"}),
		episodeSteps: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdp_episode_steps",
			Help:    "Steps taken in an episode",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"algorithm"}),
	}
}

func (m *Metrics) Sweep(algorithm string, delta float64) {
	m.sweeps.WithLabelValues(algorithm).Inc()
	m.sweepDelta.WithLabelValues(algorithm).Set(delta)
}

func (m *Metrics) PolicyChanges(algorithm string, changed int) {
	m.policyChanges.WithLabelValues(algorithm).Add(float64(changed))
}

func (m *Metrics) QUpdate(change float64) {
	m.qUpdates.Inc()
	m.qChange.Observe(change)
}

func (m *Metrics) Episode(algorithm string, steps int, ret float64) {
	m.episodes.WithLabelValues(algorithm).Inc()
	m.episodeReturn.WithLabelValues(algorithm).Observe(ret)
	m.episodeSteps.WithLabelValues(algorithm).Observe(float64(steps))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr, path string, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown metrics server")
		}
		return nil
	}
}
