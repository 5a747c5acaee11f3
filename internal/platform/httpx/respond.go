package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// ProblemDetail is an RFC7807 body. Errors carries per-field validation messages.
type ProblemDetail struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// JSON writes data as an uncached JSON document.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, "application/json", status, data)
}

// Problem writes an RFC7807 problem document.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	write(w, "application/problem+json", status, ProblemDetail{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// write encodes before sending headers so an unencodable value becomes a 500
// problem instead of a truncated success.
func write(w http.ResponseWriter, contentType string, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		contentType = "application/problem+json"
		_ = json.NewEncoder(&buf).Encode(ProblemDetail{
			Type:   "about:blank",
			Title:  http.StatusText(status),
			Status: status,
		})
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
