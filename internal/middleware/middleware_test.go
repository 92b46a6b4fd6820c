package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	awspkg "github.com/Harrison-Muraya/L-SalesPro/pkg/aws"
	"github.com/Harrison-Muraya/L-SalesPro/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		core, logs := observer.New(zap.InfoLevel)
		logger.For(c.Request.Context(), zap.New(core)).Info("inside")
		seen, _ = logs.All()[0].ContextMap()["request_id"].(string)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-7", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-7", seen)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/conflict", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/conflict", "/boom"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.Use(RateLimit(NewRateLimiter(ctx, 0.001, 2, time.Minute)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 1, 1, time.Minute)

	first := rl.GetLimiter("10.0.0.1")
	assert.Same(t, first, rl.GetLimiter("10.0.0.1"))

	rl.evict(time.Now().Add(2 * time.Minute))
	assert.NotSame(t, first, rl.GetLimiter("10.0.0.1"))
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(), CORS([]string{"https://backoffice.example.com/"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://backoffice.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "https://backoffice.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://backoffice.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
	done   chan struct{}
}

func (m *recordingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	if name == awspkg.MetricHTTP5xx {
		close(m.done)
	}
	return nil
}

func (m *recordingMetrics) RecordValue(context.Context, string, float64, map[string]string) error {
	return nil
}

func (m *recordingMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

func (m *recordingMetrics) IsEnabled() bool { return true }

func TestMetricsRecordsServerErrors(t *testing.T) {
	m := &recordingMetrics{counts: map[string]int{}, done: make(chan struct{})}
	r := gin.New()
	r.Use(Metrics(m, "backoffice"))
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/123", nil))

	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("metrics were not recorded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.counts[awspkg.MetricHTTPRequests])
	assert.Equal(t, 1, m.counts[awspkg.MetricHTTPErrors])
	assert.Equal(t, 1, m.counts[awspkg.MetricHTTP5xx])
	assert.Equal(t, "5xx", statusCodeToRange(503))
}
