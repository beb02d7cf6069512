package mw

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(NewIPRateLimiter(rate.Limit(1), 2, time.Minute)))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	assert.Equal(t, http.StatusOK, get(r, "/ping").Code)
	assert.Equal(t, http.StatusOK, get(r, "/ping").Code)

	w := get(r, "/ping")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "burst of two is exhausted")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests"}`, w.Body.String())
}

func TestRateLimiter_RejectionLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(AccessLog(zap.New(core), nil), RateLimiter(NewIPRateLimiter(rate.Limit(1), 1, time.Minute)))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	get(r, "/ping")
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/ping").Code)

	require.Equal(t, 2, logs.Len(), "one access line per request, nothing extra for the 429")
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
	assert.EqualValues(t, http.StatusTooManyRequests, logs.All()[1].ContextMap()["status"])
}

func TestIPRateLimiter_EvictsIdleVisitors(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 1, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.GetLimiter("10.0.0.1")
	limiter.GetLimiter("10.0.0.2")
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(2 * time.Minute)
	limiter.GetLimiter("10.0.0.3")
	assert.Equal(t, 1, limiter.Len())
}

func TestIPRateLimiter_SameLimiterPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 1, time.Minute)

	var wg sync.WaitGroup
	results := make([]*rate.Limiter, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = limiter.GetLimiter("192.168.1.1")
		}(i)
	}
	wg.Wait()

	for _, l := range results {
		assert.Same(t, results[0], l)
	}
}

func TestCache(t *testing.T) {
	var calls int
	r := gin.New()
	store := cache.New(time.Minute, time.Minute)
	r.GET("/data", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "down"})
	})

	first := get(r, "/data?limit=5")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get(r, "/data?limit=5")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	get(r, "/data?limit=6")
	assert.Equal(t, 2, calls, "different query is a different key")

	get(r, "/broken")
	get(r, "/broken")
	assert.Equal(t, 4, calls, "non-200 responses are not cached")
}

func TestRequestIDAndAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs := &countingObserver{}

	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core), obs))
	r.GET("/api/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := get(r, "/api/status")
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)

	req, _ := http.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
	assert.Equal(t, "abc-123", logs.All()[1].ContextMap()["request_id"])
	assert.Equal(t, []string{"/api/status:200", ":404"}, obs.seen)
}

type countingObserver struct {
	seen []string
}

func (o *countingObserver) ObserveRequest(route string, code int) {
	o.seen = append(o.seen, route+":"+strconv.Itoa(code))
}
