package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/testutil"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/api/v1/trackers/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	r.GET("/missing", func(c *gin.Context) { c.String(http.StatusNotFound, "nope") })
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "alive") })
	r.GET("/request-id", func(c *gin.Context) {
		ctxID, _ := c.Request.Context().Value(common.ContextKeyRequestID).(string)
		c.String(http.StatusOK, GetRequestID(c)+"|"+ctxID)
	})
	return r
}

func serve(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

// ----------------------------------------------------------------------------
// RequestID
// ----------------------------------------------------------------------------

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	w := serve(newEngine(RequestID()), http.MethodGet, "/request-id", nil)

	id := w.Header().Get(HeaderRequestID)
	require.Len(t, id, 36)
	assert.Equal(t, id+"|"+id, w.Body.String())
}

func TestRequestID_KeepsCallerValue(t *testing.T) {
	w := serve(newEngine(RequestID()), http.MethodGet, "/request-id", map[string]string{HeaderRequestID: "req-42"})

	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-42|req-42", w.Body.String())
}

func TestRequestID_ReplacesOversizedValue(t *testing.T) {
	long := make([]byte, maxRequestIDLen+1)
	for i := range long {
		long[i] = 'x'
	}
	w := serve(newEngine(RequestID()), http.MethodGet, "/request-id", map[string]string{HeaderRequestID: string(long)})

	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

// ----------------------------------------------------------------------------
// Logging, recovery, metrics
// ----------------------------------------------------------------------------

func TestRequestLogging_Levels(t *testing.T) {
	logger := testutil.NewMockLogger()
	r := newEngine(RequestID(), RequestLogging(logger, DefaultLoggingConfig()))

	serve(r, http.MethodGet, "/api/v1/trackers/T1", nil)
	serve(r, http.MethodGet, "/missing", nil)

	assert.True(t, logger.HasMessage("info", "http request completed"))
	assert.True(t, logger.HasMessage("warn", "http request completed with client error"))
}

func TestRequestLogging_SkipsProbes(t *testing.T) {
	logger := testutil.NewMockLogger()
	r := newEngine(RequestLogging(logger, DefaultLoggingConfig()))

	serve(r, http.MethodGet, "/healthz", nil)

	assert.Empty(t, logger.GetMessages())
}

func TestRequestLogging_SlowRequestWarns(t *testing.T) {
	logger := testutil.NewMockLogger()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogging(logger, LoggingConfig{SlowThreshold: time.Millisecond}))
	r.GET("/slow", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/slow", nil)

	assert.True(t, logger.HasMessage("warn", "slow http request"))
}

func TestRecovery_WritesEnvelope(t *testing.T) {
	logger := testutil.NewMockLogger()
	r := newEngine(RequestID(), Recovery(logger))

	w := serve(r, http.MethodGet, "/boom", map[string]string{HeaderRequestID: "req-panic"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body common.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "COMMON_001", body.Error.Code)
	assert.Equal(t, "req-panic", body.RequestID)
	assert.True(t, logger.HasMessage("error", "panic recovered"))
}

type httpCall struct {
	method, path string
	status       int
}

type recordingHTTP struct {
	mu     sync.Mutex
	calls  []httpCall
	active int
	peak   int
}

func (r *recordingHTTP) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, httpCall{method, path, status})
}

func (r *recordingHTTP) RecordActiveRequest(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active += delta
	if r.active > r.peak {
		r.peak = r.active
	}
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	rec := &recordingHTTP{}
	r := newEngine(Metrics(rec))

	serve(r, http.MethodGet, "/api/v1/trackers/T1", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, httpCall{"GET", "/api/v1/trackers/:id", 200}, rec.calls[0])
	assert.Equal(t, httpCall{"GET", "unmatched", 404}, rec.calls[1])
	assert.Equal(t, 0, rec.active)
	assert.Equal(t, 1, rec.peak)
}

// ----------------------------------------------------------------------------
// CORS
// ----------------------------------------------------------------------------

func TestCORS_Preflight(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig([]string{"https://map.traxx.ai"})))

	w := serve(r, http.MethodOptions, "/api/v1/trackers/T1", map[string]string{
		"Origin":                        "https://map.traxx.ai",
		"Access-Control-Request-Method": "POST",
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://map.traxx.ai", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderRequestID)
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig([]string{"https://map.traxx.ai"})))

	w := serve(r, http.MethodGet, "/api/v1/trackers/T1", map[string]string{"Origin": "https://evil.example"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_SubdomainPattern(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig([]string{"*.traxx.ai"})))

	w := serve(r, http.MethodGet, "/api/v1/trackers/T1", map[string]string{"Origin": "https://Ops.TRAXX.ai"})

	assert.Equal(t, "https://Ops.TRAXX.ai", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), HeaderRequestID)
}

func TestCORS_WildcardWithCredentialsEchoesOrigin(t *testing.T) {
	cfg := DefaultCORSConfig([]string{"*"})
	r := newEngine(CORS(cfg))
	w := serve(r, http.MethodGet, "/api/v1/trackers/T1", map[string]string{"Origin": "https://a.example"})
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	cfg.AllowCredentials = true
	r = newEngine(CORS(cfg))
	w = serve(r, http.MethodGet, "/api/v1/trackers/T1", map[string]string{"Origin": "https://a.example"})
	assert.Equal(t, "https://a.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_NoOriginPassesThrough(t *testing.T) {
	r := newEngine(CORS(DefaultCORSConfig([]string{"*"})))

	w := serve(r, http.MethodGet, "/api/v1/trackers/T1", nil)

	assert.Equal(t, "ok", w.Body.String())
	assert.Empty(t, w.Header().Values("Vary"))
}

// ----------------------------------------------------------------------------
// Rate limiting
// ----------------------------------------------------------------------------

func TestTokenBucketLimiter_BurstThenRefill(t *testing.T) {
	clk := testutil.NewFakeClock(testutil.Epoch)
	l := newTokenBucketLimiter(1, 2, 0, clk.Now)

	ok, info := l.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, info.Remaining)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, info = l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 0, info.Remaining)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "buckets are per key")

	clk.Advance(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestTokenBucketLimiter_CleanupDropsIdle(t *testing.T) {
	clk := testutil.NewFakeClock(testutil.Epoch)
	l := newTokenBucketLimiter(1, 2, 0, clk.Now)
	l.cleanupInterval = time.Minute

	l.Allow("a")
	clk.Advance(30 * time.Second)
	l.Allow("b")
	clk.Advance(45 * time.Second)
	l.cleanup()

	assert.Equal(t, 1, l.BucketCount())
	l.Stop()
	l.Stop()
}

func TestRateLimit_RejectsWithEnvelope(t *testing.T) {
	clk := testutil.NewFakeClock(testutil.Epoch)
	l := newTokenBucketLimiter(0.5, 1, 0, clk.Now)
	r := newEngine(RequestID(), RateLimit(l, DefaultRateLimitConfig()))

	w := serve(r, http.MethodGet, "/api/v1/trackers/T1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = serve(r, http.MethodGet, "/api/v1/trackers/T1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body common.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "COMMON_007", body.Error.Code)
}

//Personal.AI order the ending
