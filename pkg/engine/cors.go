package engine

import (
	"net/http"
	"strings"
)

// corsConfig decorates every response, including error responses
// produced by inner middleware, with the CORS headers spec.md §4.7.5
// mandates, and short-circuits preflight OPTIONS requests.
type corsConfig struct {
	origins []string
}

func newCORSConfig(origins []string) *corsConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &corsConfig{origins: origins}
}

// allowOriginValue returns the Access-Control-Allow-Origin value for
// the given request Origin. A configured "*" always wins; otherwise
// the request's origin is echoed back only if it is in the list.
func (c *corsConfig) allowOriginValue(origin string) string {
	for _, o := range c.origins {
		if o == "*" {
			return "*"
		}
	}
	for _, o := range c.origins {
		if o == origin {
			return origin
		}
	}
	if len(c.origins) == 0 {
		return "*"
	}
	return ""
}

func (c *corsConfig) setHeaders(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", c.allowOriginValue(r.Header.Get("Origin")))
	header.Set("Access-Control-Allow-Methods", strings.Join([]string{
		"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS",
	}, ", "))
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// wrap applies CORS as the outermost middleware: OPTIONS requests
// short-circuit with 200 and the CORS headers; everything else flows
// through next, with headers set before next runs so they land on
// whatever status the inner chain ultimately writes.
func (c *corsConfig) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.setHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
