package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithSyncers(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{name: "production", debug: false, wantDebug: false},
		{name: "debug", debug: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			l := NewWithSyncers(tt.debug, zapcore.AddSync(&stdout), zapcore.AddSync(&stderr))

			l.Debug("peaks found", zap.Int("peaks", 4))
			l.Info("decoder ready")
			l.Warn("shape mismatch")
			l.Error("session failed")
			_ = l.Sync()

			assert.Equal(t, tt.wantDebug, bytes.Contains(stdout.Bytes(), []byte("peaks found")))
			assert.Contains(t, stdout.String(), "decoder ready")
			assert.NotContains(t, stdout.String(), "shape mismatch")
			assert.Contains(t, stderr.String(), "shape mismatch")
			assert.Contains(t, stderr.String(), "session failed")
			assert.NotContains(t, stderr.String(), "decoder ready")
		})
	}
}

func TestNew(t *testing.T) {
	assert.NotNil(t, New(false))
}
