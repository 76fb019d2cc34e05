// Package engine binds the request pipeline: ingress middleware,
// matcher, mock responder, and proxy client.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bradcypert/popshop/pkg/httputil"
	"github.com/bradcypert/popshop/pkg/logging"
	"github.com/bradcypert/popshop/pkg/ratelimit"
)

// Limits configures the request-size guard (spec.md §4.7.1).
type Limits struct {
	MaxRequestSize int64
	MaxHeaderSize  int64
}

// DefaultLimits returns the spec-mandated defaults: 1 MiB bodies, 8 KiB
// of header lines.
func DefaultLimits() Limits {
	return Limits{MaxRequestSize: 1 << 20, MaxHeaderSize: 8 << 10}
}

// MiddlewareChain composes the ingress middleware stack in the order
// spec.md §4.7 mandates, outermost first: CORS, size/header guard,
// rate limiter, host allow-list, per-request timeout, panic recovery.
// CORS wraps everything else so it decorates even error responses the
// inner stages produce; timeout wraps only the handler (via the
// innermost recovery layer), not the cheaper guards ahead of it, so a
// slow handler can't tie up rate-limit/size-guard work in its goroutine.
type MiddlewareChain struct {
	limits         Limits
	limiter        *ratelimit.Limiter
	allowedHosts   map[string]bool
	requestTimeout time.Duration
	cors           *corsConfig
	log            *slog.Logger
}

// MiddlewareChainOption configures a MiddlewareChain.
type MiddlewareChainOption func(*MiddlewareChain)

// WithLimits overrides the request-size guard defaults.
func WithLimits(l Limits) MiddlewareChainOption {
	return func(mc *MiddlewareChain) { mc.limits = l }
}

// WithRateLimit sets the fixed-window rate limiter's budget.
func WithRateLimit(limiter *ratelimit.Limiter) MiddlewareChainOption {
	return func(mc *MiddlewareChain) { mc.limiter = limiter }
}

// WithAllowedHosts sets the Host allow-list. An empty list disables
// the check.
func WithAllowedHosts(hosts []string) MiddlewareChainOption {
	return func(mc *MiddlewareChain) {
		if len(hosts) == 0 {
			return
		}
		mc.allowedHosts = make(map[string]bool, len(hosts))
		for _, h := range hosts {
			mc.allowedHosts[h] = true
		}
	}
}

// WithRequestTimeout sets the per-request deadline, in seconds.
func WithRequestTimeout(seconds int) MiddlewareChainOption {
	return func(mc *MiddlewareChain) { mc.requestTimeout = time.Duration(seconds) * time.Second }
}

// WithCORS sets the allowed CORS origins. Empty means "*".
func WithCORS(origins []string) MiddlewareChainOption {
	return func(mc *MiddlewareChain) { mc.cors = newCORSConfig(origins) }
}

// WithChainLogger sets the logger the recovery middleware logs panics to.
func WithChainLogger(log *slog.Logger) MiddlewareChainOption {
	return func(mc *MiddlewareChain) {
		if log != nil {
			mc.log = log
		}
	}
}

// NewMiddlewareChain builds a MiddlewareChain with spec-mandated
// defaults, overridden by opts.
func NewMiddlewareChain(opts ...MiddlewareChainOption) *MiddlewareChain {
	mc := &MiddlewareChain{
		limits:         DefaultLimits(),
		requestTimeout: 30 * time.Second,
		cors:           newCORSConfig(nil),
		log:            logging.Nop(),
	}
	for _, opt := range opts {
		opt(mc)
	}
	if mc.limiter == nil {
		mc.limiter = ratelimit.New(100, ratelimit.DefaultWindow())
	}
	return mc
}

// Close releases resources owned by the chain, namely the rate
// limiter's background cleanup goroutine.
func (mc *MiddlewareChain) Close() {
	mc.limiter.Close()
}

// Wrap applies the full middleware stack around handler, outermost
// first: CORS, size/header guard, rate limiter, host allow-list,
// timeout, and finally panic recovery closest to the handler itself.
// timeout wraps only the handler (through recoverPanic), not the
// guards ahead of it, so an oversized or rate-limited request is
// rejected before it ever starts a timeout-bounded goroutine.
func (mc *MiddlewareChain) Wrap(handler http.Handler) http.Handler {
	h := handler
	h = mc.recoverPanic(h)
	h = mc.timeout(h)
	h = mc.hostAllowList(h)
	h = mc.rateLimit(h)
	h = mc.sizeGuard(h)
	h = mc.cors.wrap(h)
	return h
}

// recoverPanic is the pipeline-boundary error handler spec.md §7
// mandates: "no exception escapes" the request pipeline. It sits
// innermost, inside the timeout middleware's goroutine, so a
// recovered panic is reported through that goroutine's buffered
// ResponseWriter rather than racing the timeout path; CORS headers are
// already set by the time this runs, so they decorate the 500 too.
func (mc *MiddlewareChain) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				mc.log.Error("panic recovered", "error", fmt.Sprint(rec), "stack", string(debug.Stack()))
				httputil.WriteText(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (mc *MiddlewareChain) sizeGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 && r.ContentLength > mc.limits.MaxRequestSize {
			httputil.WriteText(w, http.StatusRequestEntityTooLarge, "Request entity too large")
			return
		}
		if headerSize(r.Header) > mc.limits.MaxHeaderSize {
			httputil.WriteText(w, http.StatusRequestHeaderFieldsTooLarge, "Request headers too large")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func headerSize(h http.Header) int64 {
	var total int64
	for name, values := range h {
		for _, v := range values {
			total += int64(len(name) + len(v) + 4) // "name: value\r\n"
		}
	}
	return total
}

func (mc *MiddlewareChain) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ratelimit.ClientIdentity(r)
		if !mc.limiter.Allow(id) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", mc.limiter.WindowSeconds()))
			httputil.WriteText(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (mc *MiddlewareChain) hostAllowList(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(mc.allowedHosts) > 0 && !mc.allowedHosts[r.Host] {
			httputil.WriteText(w, http.StatusBadRequest, "Host not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// timeout bounds request handling to mc.requestTimeout (spec.md
// §4.7.4). next runs in its own goroutine against a buffering
// timeoutWriter rather than the real http.ResponseWriter directly:
// http.ResponseWriter is not safe for concurrent use, and writing the
// 408 from this goroutine while a slow handler goroutine is still
// calling w.Write/w.WriteHeader would race the two. Whichever side
// wins — normal completion or the deadline — is the only one that
// ever touches the real ResponseWriter.
func (mc *MiddlewareChain) timeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timeout := mc.requestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		tw := newTimeoutWriter()
		done := make(chan struct{})
		go func() {
			next.ServeHTTP(tw, r.WithContext(ctx))
			close(done)
		}()

		select {
		case <-done:
			tw.flushTo(w)
		case <-ctx.Done():
			tw.abandon()
			httputil.WriteText(w, http.StatusRequestTimeout, "Request timed out")
		}
	})
}

// timeoutWriter buffers a response in memory so the timeout
// middleware's goroutine never touches the real http.ResponseWriter
// directly. Once the request either finishes or is abandoned to the
// timeout path, exactly one of flushTo/abandon is called.
type timeoutWriter struct {
	mu          sync.Mutex
	header      http.Header
	wroteHeader bool
	code        int
	buf         bytes.Buffer
	abandoned   bool
}

func newTimeoutWriter() *timeoutWriter {
	return &timeoutWriter{header: make(http.Header)}
}

func (tw *timeoutWriter) Header() http.Header { return tw.header }

func (tw *timeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.abandoned {
		return len(p), nil
	}
	if !tw.wroteHeader {
		tw.code = http.StatusOK
		tw.wroteHeader = true
	}
	return tw.buf.Write(p)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.abandoned || tw.wroteHeader {
		return
	}
	tw.code = code
	tw.wroteHeader = true
}

// flushTo copies the buffered response onto the real ResponseWriter.
// Called only from the goroutine that owns w once next has returned.
func (tw *timeoutWriter) flushTo(w http.ResponseWriter) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	for k, v := range tw.header {
		w.Header()[k] = v
	}
	code := tw.code
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	_, _ = w.Write(tw.buf.Bytes())
}

// abandon marks the writer so any late Write/WriteHeader calls from a
// handler goroutine that outlives the deadline become no-ops instead
// of racing the timeout response already sent on the real writer.
func (tw *timeoutWriter) abandon() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.abandoned = true
}
