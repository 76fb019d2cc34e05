// Package matching implements the PopShop rule Matcher (spec.md §4.3):
// a pure function from an incoming request and a rule.List to the
// first rule that matches, or no match at all.
package matching

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/bradcypert/popshop/pkg/rule"
)

// Request is the subset of an inbound HTTP request the Matcher
// inspects. Callers build it once per request from *http.Request.
type Request struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// Match returns the first rule in rules whose pattern matches req, and
// true. If no rule matches, it returns nil, false. Evaluation is
// first-match-wins over rules in list order; there is no scoring.
func Match(rules rule.List, req Request) (*rule.Rule, bool) {
	for _, r := range rules {
		if matches(r, req) {
			return r, true
		}
	}
	return nil, false
}

func matches(r *rule.Rule, req Request) bool {
	p := r.Pattern

	method := strings.ToUpper(p.Method)
	if !rule.RecognizedMethods[method] {
		return false
	}
	if !strings.EqualFold(method, req.Method) {
		return false
	}

	if p.Path != req.Path {
		return false
	}

	for name, want := range p.Headers {
		if _, ok := req.Headers[http.CanonicalHeaderKey(name)]; !ok {
			return false
		}
		if req.Headers.Get(name) != want {
			return false
		}
	}

	if p.HasBody && !bytes.Equal(p.Body, req.Body) {
		return false
	}

	return true
}
