package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return NewLoggerFromCore(core), buf
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelInfo, Format: FormatJSON, OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: LevelDebug, Format: FormatConsole})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_EmptyOutputPaths(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	l.Fatal("msg")
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("child"))
}

func TestZapLogger_LevelsWrite(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		assert.Contains(t, out, `"level":"`+lvl+`"`)
		assert.Contains(t, out, lvl+" msg")
	}
}

func TestZapLogger_FieldTypes(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Info("fields",
		String("uid", "10.1/abc"),
		Strings("dirs", []string{"a", "b"}),
		Int("tuples", 3),
		Int64("sentences", 12),
		Float64("f1", 0.5),
		Bool("cached", true),
		Duration("elapsed", time.Second),
		Err(errors.New("boom")),
		Any("labels", map[string]int{"xanes_Fe_k": 1}),
	)

	out := buf.String()
	assert.Contains(t, out, `"uid":"10.1/abc"`)
	assert.Contains(t, out, `"dirs":["a","b"]`)
	assert.Contains(t, out, `"tuples":3`)
	assert.Contains(t, out, `"sentences":12`)
	assert.Contains(t, out, `"f1":0.5`)
	assert.Contains(t, out, `"cached":true`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"xanes_Fe_k":1`)
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Named("miner").With(String("run_id", "r1")).Info("msg")
	out := buf.String()
	assert.Contains(t, out, `"run_id":"r1"`)
	assert.Contains(t, out, `"logger":"miner"`)
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default(), "nil must be ignored")
}

func TestLogOperationDuration(t *testing.T) {
	l, buf := newTestLogger(t)
	LogOperationDuration(l, "build_tree", time.Now(), Int("leaves", 2))
	out := buf.String()
	assert.Contains(t, out, "operation completed")
	assert.Contains(t, out, `"operation":"build_tree"`)
	assert.Contains(t, out, "duration_ms")
	assert.Contains(t, out, `"leaves":2`)
}

func TestLogOperationDuration_Slow(t *testing.T) {
	l, buf := newTestLogger(t)
	LogOperationDuration(l, "corpus_pass", time.Now().Add(-2*SlowOperationThreshold))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
