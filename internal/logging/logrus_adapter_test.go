package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogrusAdapter(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		format      string
		expectLevel logrus.Level
		expectJSON  bool
	}{
		{name: "debug level with text format", level: "debug", format: "text", expectLevel: logrus.DebugLevel},
		{name: "info level with json format", level: "info", format: "json", expectLevel: logrus.InfoLevel, expectJSON: true},
		{name: "upper-case warn", level: "WARN", format: "JSON", expectLevel: logrus.WarnLevel, expectJSON: true},
		{name: "invalid level defaults to info", level: "loud", format: "text", expectLevel: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogrusAdapter(tt.level, tt.format)
			require.NotNil(t, logger)

			adapter, ok := logger.(*LogrusAdapter)
			require.True(t, ok, "logger should be a LogrusAdapter")
			assert.Equal(t, tt.expectLevel, adapter.logger.Level)

			_, isJSON := adapter.logger.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.expectJSON, isJSON)
		})
	}
}

func TestNewLogrusAdapterFromLogger(t *testing.T) {
	t.Run("with existing logger", func(t *testing.T) {
		existing := logrus.New()
		logger := NewLogrusAdapterFromLogger(existing)

		adapter, ok := logger.(*LogrusAdapter)
		require.True(t, ok)
		assert.Equal(t, existing, adapter.logger)
	})

	t.Run("with nil logger creates new one", func(t *testing.T) {
		adapter, ok := NewLogrusAdapterFromLogger(nil).(*LogrusAdapter)
		require.True(t, ok)
		assert.NotNil(t, adapter.logger)
	})
}

func newBufferedLogger(level logrus.Level) (Logger, *bytes.Buffer) {
	l := logrus.New()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return NewLogrusAdapterFromLogger(l), &buf
}

func TestLogrusAdapter_LoggingMethods(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(Logger, string, ...Field)
		message string
	}{
		{name: "Debug", logFunc: func(l Logger, msg string, f ...Field) { l.Debug(msg, f...) }, message: "debug message"},
		{name: "Info", logFunc: func(l Logger, msg string, f ...Field) { l.Info(msg, f...) }, message: "info message"},
		{name: "Warn", logFunc: func(l Logger, msg string, f ...Field) { l.Warn(msg, f...) }, message: "warn message"},
		{name: "Error", logFunc: func(l Logger, msg string, f ...Field) { l.Error(msg, f...) }, message: "error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferedLogger(logrus.DebugLevel)
			tt.logFunc(logger, tt.message, F(FieldTransactionID, "tx-42"))

			assert.Contains(t, buf.String(), tt.message)
			assert.Contains(t, buf.String(), "transaction_id=tx-42")
		})
	}
}

func TestLogrusAdapter_DerivedLoggers(t *testing.T) {
	logger, buf := newBufferedLogger(logrus.InfoLevel)

	logger.WithError(errors.New("db down")).
		WithField(FieldCompany, "acme").
		WithFields(F(FieldScore, 0.55)).
		Error("batch item failed")

	out := buf.String()
	assert.Contains(t, out, "batch item failed")
	assert.Contains(t, out, "db down")
	assert.Contains(t, out, "company=acme")
	assert.Contains(t, out, "score=0.55")
}

func TestLogrusAdapter_LevelFilters(t *testing.T) {
	logger, buf := newBufferedLogger(logrus.WarnLevel)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogrusAdapter_SetOutput(t *testing.T) {
	adapter := NewLogrusAdapter("info", "json").(*LogrusAdapter)
	var buf bytes.Buffer
	adapter.SetOutput(&buf)
	adapter.Info("redirected")
	assert.Contains(t, buf.String(), `"msg":"redirected"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel(" Debug "))
	assert.Equal(t, logrus.InfoLevel, ParseLevel(""))
}

func TestOrDefault(t *testing.T) {
	mock := NewMockLogger()
	assert.Same(t, mock, OrDefault(mock))
	assert.NotNil(t, OrDefault(nil))
}

func TestLogrusAdapter_ImplementsInterface(t *testing.T) {
	var _ Logger = (*LogrusAdapter)(nil)
	var _ Logger = (*MockLogger)(nil)
}
