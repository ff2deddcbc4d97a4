package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{
			name:   "default config",
			config: nil,
		},
		{
			name: "custom json config",
			config: &Config{
				Level:  "debug",
				Format: "json",
			},
		},
		{
			name: "console config",
			config: &Config{
				Level:  "info",
				Format: "console",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.config)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{
		Level:  "info",
		Format: "json",
		Output: buf,
	})

	logger.Info("test message")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "test message", logEntry["message"])
	assert.NotEmpty(t, logEntry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{
		Level:  "info",
		Format: "json",
		Output: buf,
	})

	childLogger := logger.With().
		Model("User").
		Str("attribute", "name").
		Int("fields", 3).
		Bool("sti", true).
		Logger()

	childLogger.Info("model registered")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "User", logEntry["model"])
	assert.Equal(t, "name", logEntry["attribute"])
	assert.Equal(t, float64(3), logEntry["fields"])
	assert.Equal(t, true, logEntry["sti"])
	assert.Equal(t, "model registered", logEntry["message"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{
		Level:  "error",
		Format: "json",
		Output: buf,
	})

	testErr := errors.New("cannot cast null to string")
	logger.ErrorWith("row materialization failed", testErr, map[string]interface{}{
		"model":     "User",
		"attribute": "name",
	})

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "row materialization failed", logEntry["message"])
	assert.Equal(t, "cannot cast null to string", logEntry["error"])
	assert.Equal(t, "User", logEntry["model"])
	assert.Equal(t, "name", logEntry["attribute"])
}

func TestLogger_DebugWithFields(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  bool
	}{
		{"debug level writes", "debug", true},
		{"info level drops", "info", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(&Config{Level: tt.level, Format: "json", Output: buf})

			logger.DebugWith("record deleted", map[string]interface{}{
				"model": "User",
				"key":   7,
			})

			if !tt.want {
				assert.Empty(t, buf.String())
				return
			}
			var logEntry map[string]interface{}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
			assert.Equal(t, "debug", logEntry["level"])
			assert.Equal(t, "record deleted", logEntry["message"])
			assert.Equal(t, "User", logEntry["model"])
			assert.Equal(t, float64(7), logEntry["key"])
		})
	}
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{
		Level:  "info",
		Format: "json",
		Output: buf,
	})

	ctx := logger.WithContext(context.Background())
	retrievedLogger := FromContext(ctx)

	retrievedLogger.Info("from context")

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "from context", logEntry["message"])
}

func TestLogger_ContextFallsBackToGlobal(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := Global()
	SetGlobal(New(&Config{Level: "info", Format: "json", Output: buf}))
	defer SetGlobal(prev)

	FromContext(context.Background()).Info("global")

	assert.Contains(t, buf.String(), `"message":"global"`)
}

type pair struct{ k, v string }

func (p pair) MarshalZerologObject(e *zerolog.Event) {
	e.Str(p.k, p.v)
}

func TestLogger_Object(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "debug", Format: "json", Output: buf})

	logger.With().Object("record", pair{"name", "Deepthi"}).Logger().Debug("loaded")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, map[string]interface{}{"name": "Deepthi"}, logEntry["record"])
}

func TestLogger_LevelIsPerLogger(t *testing.T) {
	debugBuf := &bytes.Buffer{}
	debug := New(&Config{Level: "debug", Format: "json", Output: debugBuf})
	_ = New(&Config{Level: "error", Format: "json", Output: io.Discard})

	debug.Debug("still visible")

	assert.NotEmpty(t, debugBuf.String())
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().With().Model("User").Logger().Info("ignored")
	})
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool // should log or not
	}{
		{
			name:  "debug level logs debug",
			level: "debug",
			logFunc: func(l *Logger) {
				l.Debug("debug message")
			},
			expected: true,
		},
		{
			name:  "info level skips debug",
			level: "info",
			logFunc: func(l *Logger) {
				l.Debug("debug message")
			},
			expected: false,
		},
		{
			name:  "error level logs error",
			level: "error",
			logFunc: func(l *Logger) {
				l.Error("error message")
			},
			expected: true,
		},
		{
			name:  "error level skips info",
			level: "error",
			logFunc: func(l *Logger) {
				l.Info("info message")
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(&Config{
				Level:  tt.level,
				Format: "json",
				Output: buf,
			})

			tt.logFunc(logger)

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func BenchmarkLogger_Info(b *testing.B) {
	logger := New(&Config{
		Level:  "info",
		Format: "json",
		Output: io.Discard,
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message")
	}
}

func BenchmarkLogger_WithFields(b *testing.B) {
	logger := New(&Config{
		Level:  "info",
		Format: "json",
		Output: io.Discard,
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.With().
			Model("User").
			Int("row", i).
			Logger().
			Info("benchmark message")
	}
}
