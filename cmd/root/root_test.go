package root

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/recon-ledger/internal/config"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "recon-ledger", Cmd.Use)
	assert.Contains(t, Cmd.Short, "Reconcile bank transactions")
	assert.NotNil(t, Cmd.PersistentPreRunE)
	assert.NotNil(t, Cmd.PersistentPostRunE)
}

func TestInit_Flags(t *testing.T) {
	Init()
	for _, name := range []string{"config", "log-level", "log-format", "storage-driver", "dsn", "output", "format"} {
		assert.NotNil(t, Cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "o", Cmd.PersistentFlags().Lookup("output").Shorthand)
}

func TestApplyFlags(t *testing.T) {
	t.Cleanup(func() { SharedFlags = CommonFlags{} })
	SharedFlags = CommonFlags{LogLevel: "debug", Driver: config.DriverSQLite, DSN: ":memory:"}

	cfg := &config.Config{}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	applyFlags(cfg)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "unset flags keep the configured value")
	assert.Equal(t, config.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
}

func TestSetupAndTeardown(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Cleanup(func() { SharedFlags = CommonFlags{} })

	_, err := GetContainer()
	require.Error(t, err)

	require.NoError(t, setup(&cobra.Command{}, nil))
	c, err := GetContainer()
	require.NoError(t, err)
	assert.NotNil(t, c.GetOrchestrator())

	require.NoError(t, Teardown())
	assert.Nil(t, AppContainer)
	require.NoError(t, Teardown(), "second teardown is a no-op")
}

func TestSetup_MissingConfigFile(t *testing.T) {
	t.Cleanup(func() { SharedFlags = CommonFlags{} })
	SharedFlags.ConfigFile = filepath.Join(t.TempDir(), "absent.yaml")
	assert.Error(t, setup(&cobra.Command{}, nil))
}

func TestOpenOutput(t *testing.T) {
	t.Cleanup(func() { SharedFlags = CommonFlags{} })
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	SharedFlags.Output = "-"
	w, closeFn, err := OpenOutput(cmd)
	require.NoError(t, err)
	require.NoError(t, WriteJSON(w, map[string]int{"a": 1}))
	require.NoError(t, closeFn())
	assert.JSONEq(t, `{"a":1}`, buf.String())

	SharedFlags.Output = filepath.Join(t.TempDir(), "nested", "out.json")
	w, closeFn, err = OpenOutput(cmd)
	require.NoError(t, err)
	require.NoError(t, WriteJSON(w, []string{"x"}))
	require.NoError(t, closeFn())
	data, err := os.ReadFile(SharedFlags.Output)
	require.NoError(t, err)
	assert.JSONEq(t, `["x"]`, string(data))
}
