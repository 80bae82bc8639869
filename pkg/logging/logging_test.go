package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable zapcore.Level
		below  zapcore.Level
	}{
		{"debug level", "debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"warn level", "warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"default info", "", zapcore.InfoLevel, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			assert.True(t, logger.Core().Enabled(tt.enable))
			assert.False(t, logger.Core().Enabled(tt.below))
		})
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := New("info")
	assert.Same(t, l, OrNop(l))
}
