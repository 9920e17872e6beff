// Package metrics holds the Prometheus collectors for the scoring service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission sources
const (
	SourceManual = "manual"
	SourcePaste  = "paste"
	SourceKafka  = "kafka"
)

// Submission outcomes
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeNoMatch   = "no_match"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics groups the collectors registered by the service.
type Metrics struct {
	submissions  *prometheus.CounterVec
	extractions  *prometheus.CounterVec
	rankDuration prometheus.Histogram
	standings    *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil registerer
// leaves them unregistered, which tests rely on.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "puzzle_leaderboard",
			Name:      "submissions_total",
			Help:      "Score submissions by source and outcome.",
		}, []string{"source", "outcome"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "puzzle_leaderboard",
			Name:      "extractions_total",
			Help:      "Share text extraction attempts by matched game.",
		}, []string{"game"}),
		rankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "puzzle_leaderboard",
			Name:      "ranking_duration_seconds",
			Help:      "Time spent computing standings from stored records.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		standings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "puzzle_leaderboard",
			Name:      "ranked_players",
			Help:      "Players present in the last computed standings.",
		}, []string{"period"}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.extractions, m.rankDuration, m.standings)
	}
	return m
}

// Submission counts one submission attempt.
func (m *Metrics) Submission(source, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(source, outcome).Inc()
}

// Extraction counts one extraction; an empty game means no match.
func (m *Metrics) Extraction(game string) {
	if m == nil {
		return
	}
	if game == "" {
		game = "none"
	}
	m.extractions.WithLabelValues(game).Inc()
}

// ObserveRanking records how long a standings computation took.
func (m *Metrics) ObserveRanking(period string, players int, took time.Duration) {
	if m == nil {
		return
	}
	m.rankDuration.Observe(took.Seconds())
	m.standings.WithLabelValues(period).Set(float64(players))
}
