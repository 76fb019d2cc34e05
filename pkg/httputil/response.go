// Package httputil provides small response-writing helpers shared
// across the PopShop request pipeline.
package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteText writes a plain-text response with the given status and
// body, used for the pipeline-boundary error bodies spec.md §7/§8
// specifies verbatim ("Invalid proxy URL", "No matching rule found",
// "Internal server error", ...).
func WriteText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// WriteJSON marshals v and writes it with the given status, defaulting
// Content-Type to application/json when not already set by the
// caller.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		WriteText(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
