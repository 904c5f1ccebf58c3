package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/metrics"
	"fjacquet/recon-ledger/internal/reconciliation"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeReconciler) ReconcileBatch(_ context.Context, company string, opts reconciliation.BatchOptions) (reconciliation.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, company)
	if err := f.fail[company]; err != nil {
		return reconciliation.Summary{CompanyID: company}, err
	}
	return reconciliation.Summary{CompanyID: company, DryRun: opts.DryRun, Processed: 2, AutoMatched: 1}, nil
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		r    Reconciler
		cfg  Config
		want string
	}{
		{"nil reconciler", nil, Config{Schedule: "*/15 * * * *", Companies: []string{"acme"}}, "reconciler"},
		{"no companies", &fakeReconciler{}, Config{Schedule: "*/15 * * * *", Companies: []string{" "}}, "no companies"},
		{"bad schedule", &fakeReconciler{}, Config{Schedule: "every now and then", Companies: []string{"acme"}}, "unable to schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.r, tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunOnce_AllCompanies(t *testing.T) {
	r := &fakeReconciler{}
	m := metrics.New(nil)
	logger := logging.NewMockLogger()
	s, err := New(r, Config{Schedule: "*/15 * * * *", Companies: []string{"acme", " globex "}},
		WithMetrics(m), WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"acme", "globex"}, r.calls)
	assert.True(t, logger.HasEntry("INFO", "Scheduled reconciliation completed"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScheduledRuns.WithLabelValues("ok")))
}

func TestRunOnce_FailureDoesNotStopOthers(t *testing.T) {
	boom := errors.New("store down")
	r := &fakeReconciler{fail: map[string]error{"acme": boom}}
	m := metrics.New(nil)
	logger := logging.NewMockLogger()
	s, err := New(r, Config{Schedule: "@hourly", Companies: []string{"acme", "globex"}},
		WithMetrics(m), WithLogger(logger))
	require.NoError(t, err)

	err = s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"acme", "globex"}, r.calls)
	assert.True(t, logger.HasEntry("ERROR", "Scheduled reconciliation failed"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScheduledRuns.WithLabelValues("error")))
}

func TestRunOnce_Cancelled(t *testing.T) {
	r := &fakeReconciler{}
	s, err := New(r, Config{Schedule: "@hourly", Companies: []string{"acme"}}, WithLogger(logging.NewMockLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.RunOnce(ctx), context.Canceled)
	assert.Empty(t, r.calls)
}

func TestStart_NextRunInLocation(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	s, err := New(&fakeReconciler{}, Config{Schedule: "0 6 * * *", Location: zurich, Companies: []string{"acme"}},
		WithLogger(logging.NewMockLogger()))
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero(), "not scheduled before Start")

	s.Start()
	defer s.Stop()

	next := s.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, 6, next.In(zurich).Hour())
	assert.Equal(t, 0, next.In(zurich).Minute())
}
