package engine

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bradcypert/popshop/internal/id"
	"github.com/bradcypert/popshop/internal/matching"
	"github.com/bradcypert/popshop/internal/store"
	"github.com/bradcypert/popshop/pkg/httputil"
	"github.com/bradcypert/popshop/pkg/logging"
	"github.com/bradcypert/popshop/pkg/proxy"
	"github.com/bradcypert/popshop/pkg/util"
)

// Handler is the Request Pipeline (spec.md §2): it matches an
// incoming request against the current rule snapshot and dispatches
// to the mock responder or the proxy client.
type Handler struct {
	store       *store.RuleStore
	proxyClient *proxy.Client
	log         *slog.Logger
}

// NewHandler creates a Handler over the given RuleStore. A nil logger
// defaults to a no-op logger.
func NewHandler(s *store.RuleStore, log *slog.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{
		store:       s,
		proxyClient: proxy.NewClient(log),
		log:         log,
	}
}

var _ http.Handler = (*Handler)(nil)

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := id.Short()
	status := h.serve(reqID, w, r)
	h.log.Info("request", "request_id", reqID, "method", r.Method, "path", r.URL.Path,
		"status", status, "latency", time.Since(start))
}

func (h *Handler) serve(reqID string, w http.ResponseWriter, r *http.Request) int {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteText(w, http.StatusInternalServerError, "Internal server error")
		return http.StatusInternalServerError
	}
	h.log.Debug("request body", "request_id", reqID, "body", util.TruncateBody(string(body), 0))

	rules := h.store.Snapshot()
	matched, ok := matching.Match(rules, matching.Request{
		Method:  r.Method,
		Path:    r.URL.Path,
		Headers: r.Header,
		Body:    body,
	})
	if !ok {
		httputil.WriteText(w, http.StatusNotFound, "No matching rule found")
		return http.StatusNotFound
	}

	if matched.IsMock() {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		respondMock(sw, matched.Response)
		h.log.Debug("response body", "request_id", reqID, "body", util.TruncateBody(string(matched.Response.Body), 0))
		return sw.status
	}

	result := h.proxyClient.Forward(r.Context(), r, body, matched.Proxy)
	for name, values := range result.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
	h.log.Debug("response body", "request_id", reqID, "body", util.TruncateBody(string(result.Body), 0))
	return result.Status
}

// statusWriter captures the status code written by respondMock so
// ServeHTTP can log it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
