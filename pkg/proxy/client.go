package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradcypert/popshop/pkg/logging"
	"github.com/bradcypert/popshop/pkg/rule"
)

// requestStripList is the set of hop-by-hop and identity headers
// removed from the incoming request before forwarding (spec.md §4.5).
var requestStripList = map[string]bool{
	"host": true, "connection": true, "upgrade": true,
	"proxy-connection": true, "proxy-authenticate": true,
	"proxy-authorization": true, "te": true, "trailers": true,
	"transfer-encoding": true,
}

// responseStripList is the set of headers removed from the upstream
// response before relaying it downstream (spec.md §4.5).
var responseStripList = map[string]bool{
	"content-encoding": true, "content-length": true,
	"transfer-encoding": true, "connection": true, "upgrade": true,
	"proxy-authenticate": true, "proxy-authorization": true,
}

// Result is the outcome of a Forward call: either a relayed upstream
// response or a pipeline-boundary error response to send instead.
type Result struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Client forwards matched requests to proxy targets, applying the
// SSRF Validator and header hygiene rules before ever dialing out.
type Client struct {
	log *slog.Logger
}

// NewClient creates a Client. A nil logger defaults to a no-op logger.
func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{log: log}
}

// Forward implements the Proxy Client algorithm (spec.md §4.5): SSRF
// check, outbound method/header construction, the upstream round
// trip bounded by target.TimeoutMs, and response relay.
func (c *Client) Forward(ctx context.Context, incoming *http.Request, body []byte, target *rule.ProxyTarget) Result {
	if !IsValidProxyURL(target.URL) {
		return Result{Status: http.StatusBadRequest, Body: []byte("Invalid proxy URL")}
	}
	return c.forwardValidated(ctx, incoming, body, target)
}

// forwardValidated performs steps 2-8 of the Proxy Client algorithm,
// assuming target.URL has already cleared the SSRF Validator.
func (c *Client) forwardValidated(ctx context.Context, incoming *http.Request, body []byte, target *rule.ProxyTarget) Result {
	parsed, err := url.Parse(target.URL)
	if err != nil {
		return Result{Status: http.StatusBadRequest, Body: []byte("Invalid proxy URL")}
	}

	method := target.MethodOverride
	if method == "" {
		method = incoming.Method
	}
	method = strings.ToUpper(method)

	timeout := time.Duration(target.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	outbound, err := http.NewRequestWithContext(reqCtx, method, parsed.String(), bodyReader)
	if err != nil {
		return Result{Status: http.StatusBadGateway, Body: []byte("Proxy request construction failed")}
	}
	outbound.Header = buildOutboundHeaders(incoming.Header, target.Headers, clientAddr(incoming))

	httpClient := &http.Client{Timeout: timeout}
	resp, err := httpClient.Do(outbound)
	if err != nil {
		c.log.Error("proxy transport failure", "url", target.URL, "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Status: http.StatusBadGateway, Body: []byte("Upstream request timed out")}
		}
		return Result{Status: http.StatusBadGateway, Body: []byte("Upstream request failed")}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Status: http.StatusBadGateway, Body: []byte("Failed to read upstream response")}
	}

	return Result{
		Status:  resp.StatusCode,
		Headers: stripResponseHeaders(resp.Header),
		Body:    respBody,
	}
}

// buildOutboundHeaders starts from the incoming headers, strips the
// request-side hop-by-hop set, overlays the target's injected headers
// (which win on collision), and appends X-Forwarded-For.
func buildOutboundHeaders(incoming http.Header, inject map[string]string, remote string) http.Header {
	out := http.Header{}
	for name, values := range incoming {
		if requestStripList[strings.ToLower(name)] {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	for name, value := range inject {
		out.Set(name, value)
	}
	if remote != "" {
		if existing := out.Get("X-Forwarded-For"); existing != "" {
			out.Set("X-Forwarded-For", existing+", "+remote)
		} else {
			out.Set("X-Forwarded-For", remote)
		}
	}
	return out
}

func stripResponseHeaders(in http.Header) http.Header {
	out := http.Header{}
	for name, values := range in {
		if responseStripList[strings.ToLower(name)] {
			continue
		}
		out[name] = values
	}
	return out
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
