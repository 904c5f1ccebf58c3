package schedule

import (
	"context"
	"testing"

	"fjacquet/recon-ledger/internal/config"
	"fjacquet/recon-ledger/internal/container"
	"fjacquet/recon-ledger/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContainer(t *testing.T, companies ...string) *container.Container {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Reconciliation.Companies = companies

	c, err := container.NewContainer(cfg,
		container.WithLogger(logging.NewMockLogger()),
		container.WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		configured []string
		override   []string
		spec       string
		wantErr    bool
	}{
		{name: "configured companies", configured: []string{"acme"}},
		{name: "flag overrides configuration", override: []string{"globex"}},
		{name: "no companies", wantErr: true},
		{name: "bad expression", configured: []string{"acme"}, spec: "not a cron", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newContainer(t, tt.configured...)
			s, err := New(c, tt.override, tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestNew_RunOnce(t *testing.T) {
	c := newContainer(t, "acme", "globex")
	s, err := New(c, nil, "")
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
}
