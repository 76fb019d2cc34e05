package engine

import (
	"net/http"

	"github.com/bradcypert/popshop/pkg/rule"
)

// respondMock writes a matched rule's mock response to w: headers,
// then status, then the body byte-for-byte, defaulting Content-Type to
// application/json when the rule did not set one (spec.md §4.4). The
// body is opaque, already-serialized bytes from the rule document —
// not necessarily JSON — so it is written directly rather than routed
// through a JSON marshaler, which would validate/compact it and reject
// any non-JSON mock body.
func respondMock(w http.ResponseWriter, resp *rule.MockResponse) {
	header := w.Header()
	for k, v := range resp.Headers {
		header.Set(k, v)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}
