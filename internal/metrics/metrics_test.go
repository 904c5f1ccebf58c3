package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.BatchItem("auto_matched")
	m.BatchItem("auto_matched")
	m.BatchItem("failed")
	m.Confirmation("manual")
	m.Undo()
	m.Rejection()
	m.LedgerEntry("draft")
	m.LedgerFailure("duplicate")
	m.ReferenceCheck(true)
	m.ReferenceCheck(false)
	m.ScheduledRun(true)
	m.ObserveBatch(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchItems.WithLabelValues("auto_matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchItems.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Confirmations.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Undos))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerPosted.WithLabelValues("draft")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerFailures.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReferenceChecks.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScheduledRuns.WithLabelValues("ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.BatchItem("failed")
		m.ObserveBatch(time.Second)
		m.Confirmation("auto")
		m.Undo()
		m.Rejection()
		m.LedgerEntry("posted")
		m.LedgerFailure("validation")
		m.ReferenceCheck(true)
		m.ScheduledRun(false)
	})
	assert.NotNil(t, m.Handler())
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.Undo()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "recon_reconcile_undo_total 1")
}
