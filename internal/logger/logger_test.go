package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		level  string
		format string
		lowest zapcore.Level
	}{
		{level: "debug", format: "console", lowest: zapcore.DebugLevel},
		{level: "warn", format: "json", lowest: zapcore.WarnLevel},
		{level: "bogus", format: "json", lowest: zapcore.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.level+"/"+tc.format, func(t *testing.T) {
			log, err := NewLogger(tc.level, tc.format, "attendance-monitor")
			require.NoError(t, err)

			assert.True(t, log.Core().Enabled(tc.lowest))
			assert.False(t, log.Core().Enabled(tc.lowest-1))
		})
	}
}
