package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(cfg)
	t.Cleanup(l.Stop)
	clock := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestAllowWindow(t *testing.T) {
	l, clock := newTestLimiter(t, Config{RequestsPerMinute: 2})

	for i := 0; i < 2; i++ {
		ok, _ := l.Allow("1.1.1.1")
		require.True(t, ok, "request %d", i+1)
	}

	*clock = clock.Add(20 * time.Second)
	ok, retry := l.Allow("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, retry)

	ok, _ = l.Allow("2.2.2.2")
	assert.True(t, ok, "other clients have their own budget")

	*clock = clock.Add(40 * time.Second)
	ok, _ = l.Allow("1.1.1.1")
	assert.True(t, ok, "a new window resets the budget")

	assert.Equal(t, Metrics{TotalHits: 1, ClientCount: 2}, l.GetMetrics())
}

func TestSweepForgetsIdleClients(t *testing.T) {
	l, clock := newTestLimiter(t, Config{RequestsPerMinute: 5})
	l.Allow("1.1.1.1")
	*clock = clock.Add(11 * time.Minute)
	l.Allow("2.2.2.2")

	l.sweep()
	assert.Equal(t, 1, l.ActiveClients())
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewLimiter(Config{})
	l.Stop()
	l.Stop()
}

func TestMiddlewareLimitsConfiguredMethodsOnly(t *testing.T) {
	l, _ := newTestLimiter(t, Config{RequestsPerMinute: 1, Methods: []string{http.MethodPost}})
	h := l.Middleware(func(*http.Request) string { return "1.1.1.1" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	do := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/entries", nil))
		return rr
	}

	require.Equal(t, http.StatusOK, do(http.MethodPost).Code)
	rr := do(http.MethodPost)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(http.MethodGet).Code, "GET is not limited")
	}
}

func TestMiddlewareCustomRejection(t *testing.T) {
	l, _ := newTestLimiter(t, Config{RequestsPerMinute: 1})
	h := l.Middleware(
		func(*http.Request) string { return "1.1.1.1" },
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, want := range []int{http.StatusOK, http.StatusServiceUnavailable} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, want, rr.Code)
	}
}
