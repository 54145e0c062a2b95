package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), buf, zapcore.DebugLevel)
	return NewLoggerFromCore(core), buf
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: "debug", Format: format, OutputPaths: []string{"stdout"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_BadOutputPath(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{"/nonexistent-dir/traxx/app.log"}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestZapLogger_TypedFields(t *testing.T) {
	l, buf := newTestLogger(t)

	l.Info("cluster recompute",
		String("kind", "tracker"),
		Int("nodes", 12),
		Int64("version", 7),
		Uint64("seq", 9),
		Float64("zoom", 11.5),
		Bool("memo_hit", false),
		Duration("took", 3*time.Millisecond),
		Strings("ids", []string{"TRK-1", "TRK-2"}),
		Any("bounds", map[string]float64{"north": 1}),
	)

	out := buf.String()
	assert.Contains(t, out, `"msg":"cluster recompute"`)
	assert.Contains(t, out, `"kind":"tracker"`)
	assert.Contains(t, out, `"nodes":12`)
	assert.Contains(t, out, `"zoom":11.5`)
	assert.Contains(t, out, `"memo_hit":false`)
	assert.Contains(t, out, `"ids":["TRK-1","TRK-2"]`)
}

func TestZapLogger_ErrorFields(t *testing.T) {
	l, buf := newTestLogger(t)

	l.Warn("context fetch failed", Err(errors.New("connection refused")))
	assert.Contains(t, buf.String(), `"error":"connection refused"`)

	buf.Reset()
	l.Warn("remote failed", Err(apperrors.New(apperrors.ErrCodeQueryRemoteFailed, "POST /query failed")))
	assert.Contains(t, buf.String(), `"error_code":"QRY_002"`)

	buf.Reset()
	l.Info("nil error", Err(nil))
	assert.Contains(t, buf.String(), `"error":"<nil>"`)
}

func TestZapLogger_WithAndNamed(t *testing.T) {
	l, buf := newTestLogger(t)

	child := l.Named("query").With(String("session", "s-1"))
	child.Debug("answer ready")

	out := buf.String()
	assert.Contains(t, out, `"logger":"query"`)
	assert.Contains(t, out, `"session":"s-1"`)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
		l.With(String("a", "b")).Named("n").Info("x")
	})
}

func TestContextLogger(t *testing.T) {
	l, buf := newTestLogger(t)
	ctx := WithContext(context.Background(), l.With(String("request_id", "r-1")))

	FromContext(ctx).Info("handled")
	assert.Contains(t, buf.String(), `"request_id":"r-1"`)

	assert.NotNil(t, FromContext(context.Background()))
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Same(t, l, Default())

	SetDefault(nil)
	assert.Same(t, l, Default())
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	SetLevel("error")
	assert.Equal(t, zapcore.ErrorLevel, level.Level())
	SetLevel("bogus")
	assert.Equal(t, zapcore.InfoLevel, level.Level())
}

func TestPrintf(t *testing.T) {
	l, buf := newTestLogger(t)
	p := NewPrintf(l)
	p.Infof("retrying %s (attempt %d)", "GET /stats", 2)
	p.Errorf("gave up")
	assert.Contains(t, buf.String(), "retrying GET /stats (attempt 2)")
	assert.Contains(t, buf.String(), "gave up")

	NewPrintf(nil).Debugf("discarded %d", 1)
}

//Personal.AI order the ending
