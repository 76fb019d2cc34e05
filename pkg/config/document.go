package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bradcypert/popshop/pkg/rule"
)

// rawRequest mirrors the request: block of the YAML rule schema
// (spec.md §6). Both method and its legacy alias verb are accepted.
type rawRequest struct {
	Path    string                 `yaml:"path"`
	Method  string                 `yaml:"method"`
	Verb    string                 `yaml:"verb"`
	Headers map[string]interface{} `yaml:"headers"`
	Body    *string                `yaml:"body"`
}

type rawResponse struct {
	Status  interface{}            `yaml:"status"`
	Headers map[string]interface{} `yaml:"headers"`
	Body    *string                `yaml:"body"`
}

type rawProxy struct {
	URL       string                 `yaml:"url"`
	Method    string                 `yaml:"method"`
	Verb      string                 `yaml:"verb"`
	Headers   map[string]interface{} `yaml:"headers"`
	TimeoutMs *int                   `yaml:"timeout_ms"`
}

type rawRule struct {
	Request  *rawRequest  `yaml:"request"`
	Response *rawResponse `yaml:"response"`
	Proxy    *rawProxy    `yaml:"proxy"`
}

// parseDocument parses one YAML document, which is either a single rule
// map or a sequence of rule maps (spec.md §4.1), into a rule.List.
func parseDocument(data []byte) (rule.List, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]

	var raws []rawRule
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&raws); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
	case yaml.MappingNode:
		var single rawRule
		if err := root.Decode(&single); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
		raws = []rawRule{single}
	default:
		return nil, fmt.Errorf("%w: document must be a rule map or a sequence of rule maps", ErrInvalidConfiguration)
	}

	list := make(rule.List, 0, len(raws))
	for _, raw := range raws {
		r, err := buildRule(raw)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, nil
}

func buildRule(raw rawRule) (*rule.Rule, error) {
	if raw.Request == nil {
		return nil, fmt.Errorf("%w: rule missing request", ErrInvalidConfiguration)
	}
	if raw.Request.Path == "" {
		return nil, fmt.Errorf("%w: request.path is required", ErrInvalidConfiguration)
	}

	method := raw.Request.Method
	if method == "" {
		method = raw.Request.Verb
	}
	if method == "" {
		return nil, fmt.Errorf("%w: request.method is required", ErrInvalidConfiguration)
	}

	pattern := rule.RequestPattern{
		Path:    raw.Request.Path,
		Method:  strings.ToUpper(method),
		Headers: sanitizeHeaders(raw.Request.Headers),
	}
	if raw.Request.Body != nil {
		pattern.Body = []byte(*raw.Request.Body)
		pattern.HasBody = true
	}

	hasResponse := raw.Response != nil
	hasProxy := raw.Proxy != nil
	if hasResponse == hasProxy {
		if hasResponse {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, rule.ErrAmbiguousDisposition)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, rule.ErrMissingDisposition)
	}

	var resp *rule.MockResponse
	var proxy *rule.ProxyTarget

	if hasResponse {
		if raw.Response.Body == nil {
			return nil, fmt.Errorf("%w: response.body is required", ErrInvalidConfiguration)
		}
		resp = &rule.MockResponse{
			Status:  parseStatus(raw.Response.Status),
			Headers: sanitizeHeaders(raw.Response.Headers),
			Body:    []byte(*raw.Response.Body),
		}
	} else {
		if raw.Proxy.URL == "" {
			return nil, fmt.Errorf("%w: proxy.url is required", ErrInvalidConfiguration)
		}
		override := raw.Proxy.Method
		if override == "" {
			override = raw.Proxy.Verb
		}
		timeout := 30000
		if raw.Proxy.TimeoutMs != nil {
			timeout = *raw.Proxy.TimeoutMs
		}
		proxy = &rule.ProxyTarget{
			URL:            raw.Proxy.URL,
			MethodOverride: strings.ToUpper(override),
			Headers:        sanitizeHeaders(raw.Proxy.Headers),
			TimeoutMs:      timeout,
		}
	}

	return rule.New("", pattern, resp, proxy)
}

// sanitizeHeaders keeps only string-valued entries, silently skipping
// the rest (spec.md §4.1: "non-string values are silently skipped").
func sanitizeHeaders(in map[string]interface{}) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// parseStatus accepts an integer or a decimal string; out-of-range or
// unparseable values fall back to 200 (spec.md §4.1).
func parseStatus(v interface{}) int {
	const def = 200
	switch val := v.(type) {
	case nil:
		return def
	case int:
		return validStatus(val, def)
	case int64:
		return validStatus(int(val), def)
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return def
		}
		return validStatus(n, def)
	default:
		return def
	}
}

func validStatus(n, def int) int {
	if n < 100 || n > 599 {
		return def
	}
	return n
}
