package engine

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bradcypert/popshop/pkg/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareChain_RequestTooLarge(t *testing.T) {
	mc := NewMiddlewareChain(WithLimits(Limits{MaxRequestSize: 10, MaxHeaderSize: 8 << 10}))
	h := mc.sizeGuard(okHandler())

	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("more than ten bytes"))
	r.ContentLength = 20
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMiddlewareChain_HeadersTooLarge(t *testing.T) {
	mc := NewMiddlewareChain(WithLimits(Limits{MaxRequestSize: 1 << 20, MaxHeaderSize: 10}))
	h := mc.sizeGuard(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Huge-Header", strings.Repeat("a", 100))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusRequestHeaderFieldsTooLarge, w.Code)
}

func TestMiddlewareChain_RateLimitOverflow(t *testing.T) {
	mc := NewMiddlewareChain(WithRateLimit(ratelimit.New(1, time.Minute)))
	h := mc.rateLimit(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.RemoteAddr = "1.2.3.4:5555"

	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.NotEmpty(t, w2.Header().Get("Retry-After"))
}

func TestMiddlewareChain_HostAllowList(t *testing.T) {
	mc := NewMiddlewareChain(WithAllowedHosts([]string{"api.example.com"}))
	h := mc.hostAllowList(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Host = "evil.example.com"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r2 := httptest.NewRequest(http.MethodGet, "/x", nil)
	r2.Host = "api.example.com"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestMiddlewareChain_HostAllowList_DisabledWhenEmpty(t *testing.T) {
	mc := NewMiddlewareChain()
	h := mc.hostAllowList(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Host = "anything.example.com"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareChain_TimeoutExpires(t *testing.T) {
	mc := NewMiddlewareChain()
	mc.requestTimeout = 20 * time.Millisecond

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	})
	h := mc.timeout(slow)

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
}

func TestMiddlewareChain_TimeoutCompletesNormally(t *testing.T) {
	mc := NewMiddlewareChain()
	mc.requestTimeout = 200 * time.Millisecond

	fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})
	h := mc.timeout(fast)

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMiddlewareChain_RecoversPanic(t *testing.T) {
	mc := NewMiddlewareChain()
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := mc.recoverPanic(panicking)

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", w.Body.String())
}

func TestMiddlewareChain_WrapRecoversPanicUnderCORS(t *testing.T) {
	mc := NewMiddlewareChain()
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := mc.Wrap(panicking)

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddlewareChain_TimeoutRecoversPanicInHandlerGoroutine(t *testing.T) {
	mc := NewMiddlewareChain()
	mc.requestTimeout = time.Second

	panicking := mc.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	h := mc.timeout(panicking)

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMiddlewareChain_Close(t *testing.T) {
	mc := NewMiddlewareChain()
	assert.NotPanics(t, func() { mc.Close() })
}

func TestMiddlewareChain_WrapOrdersCORSOutermost(t *testing.T) {
	mc := NewMiddlewareChain()
	h := mc.Wrap(okHandler())

	r := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
