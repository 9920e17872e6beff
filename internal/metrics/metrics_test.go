package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Submission(SourcePaste, OutcomeAccepted)
	m.Submission(SourcePaste, OutcomeAccepted)
	m.Submission(SourceManual, OutcomeDuplicate)
	m.Extraction("")
	m.ObserveRanking("all", 4, 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues(SourcePaste, OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(SourceManual, OutcomeDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues("none")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.standings.WithLabelValues("all")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Submission(SourceKafka, OutcomeError)
	m.Extraction("Zip")
	m.ObserveRanking("month", 1, time.Second)
}
