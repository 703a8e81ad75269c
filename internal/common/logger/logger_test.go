package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapAdapter(zap.New(core)), logs
}

func TestLogger_MasksIdentifiers(t *testing.T) {
	log, logs := newObserved()

	log.Info("application received", map[string]interface{}{
		"applicationId": "app-001",
		"PAN":           "ABCDE1234F",
		"aadhaar":       "123456789012",
		"mobile":        "9876543210",
		"loanAmount":    500000,
	})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "app-001", fields["applicationId"])
	assert.Equal(t, "******234F", fields["PAN"])
	assert.Equal(t, "********9012", fields["aadhaar"])
	assert.Equal(t, "******3210", fields["mobile"])
	assert.EqualValues(t, 500000, fields["loanAmount"])
}

func TestLogger_WithFieldsAndError(t *testing.T) {
	log, logs := newObserved()

	log.WithFields(map[string]interface{}{"taskType": "evaluate-loan-application"}).
		WithError(errors.New("bureau timeout")).
		Warn("evaluator degraded", map[string]interface{}{"phone": "12"})

	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "evaluate-loan-application", fields["taskType"])
	assert.Equal(t, "bureau timeout", fields["error"])
	assert.Equal(t, "**", fields["phone"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.log")

	l := New("info", "json", path)
	l.Info("worker started", zap.String("taskType", "notify-loan-decision"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"taskType":"notify-loan-decision"`)
	assert.Contains(t, string(data), `"service":"loan-workers"`)
}
