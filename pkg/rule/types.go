// Package rule holds the in-memory representation of a PopShop rule: a
// request pattern bound to exactly one of a mock response or a proxy
// target.
package rule

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrMissingDisposition is returned when a rule has neither a response
// nor a proxy target.
var ErrMissingDisposition = errors.New("rule must have exactly one of response or proxy")

// ErrAmbiguousDisposition is returned when a rule has both a response
// and a proxy target.
var ErrAmbiguousDisposition = errors.New("rule must have exactly one of response or proxy, not both")

// RecognizedMethods is the set of HTTP verbs the matcher will ever
// consider for dispatch. Anything else parses but never matches.
var RecognizedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// RequestPattern describes the shape of an incoming request a Rule
// binds to.
type RequestPattern struct {
	Path    string
	Method  string
	Headers map[string]string
	Body    []byte
	HasBody bool
}

// MockResponse is the canned payload returned when a Rule with a mock
// response matches.
type MockResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// ProxyTarget describes an upstream to forward a matched request to.
type ProxyTarget struct {
	URL            string
	MethodOverride string
	Headers        map[string]string
	TimeoutMs      int
}

// Rule is an ordered binding from a request pattern to either a mock
// response or a proxy target.
type Rule struct {
	ID       string
	Pattern  RequestPattern
	Response *MockResponse
	Proxy    *ProxyTarget
}

// New constructs a Rule, validating the exactly-one-of invariant. The ID
// is auto-assigned from a fresh UUID when the caller supplies none; IDs
// play no role in matching, only diagnostics and logs.
func New(id string, pattern RequestPattern, resp *MockResponse, proxy *ProxyTarget) (*Rule, error) {
	if resp == nil && proxy == nil {
		return nil, ErrMissingDisposition
	}
	if resp != nil && proxy != nil {
		return nil, ErrAmbiguousDisposition
	}
	if id == "" {
		id = uuid.NewString()
	}
	pattern.Method = strings.ToUpper(pattern.Method)
	return &Rule{
		ID:       id,
		Pattern:  pattern,
		Response: resp,
		Proxy:    proxy,
	}, nil
}

// IsMock reports whether the rule dispatches to a mock response.
func (r *Rule) IsMock() bool { return r.Response != nil }

// IsProxy reports whether the rule dispatches to a proxy target.
func (r *Rule) IsProxy() bool { return r.Proxy != nil }

// List is an ordered, immutable-once-published sequence of Rules.
// Order is load order; the Config Loader sorts directory entries
// lexicographically by filename before appending their rules.
type List []*Rule

// Counts returns the total rule count and how many dispatch to a mock
// response vs. a proxy target, for the validate command's summary.
func (l List) Counts() (total, mocks, proxies int) {
	total = len(l)
	for _, r := range l {
		if r.IsMock() {
			mocks++
		} else if r.IsProxy() {
			proxies++
		}
	}
	return
}
