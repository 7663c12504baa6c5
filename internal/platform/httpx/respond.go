// Package httpx provides the uniform response envelope shared by every endpoint.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response body: {success, data, meta?}.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Meta    any        `json:"meta,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody carries a machine-readable failure code alongside the message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON sends a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// JSONMeta sends a success envelope including meta, typically pagination.
func JSONMeta(w http.ResponseWriter, status int, data, meta any) {
	write(w, status, Envelope{Success: true, Data: data, Meta: meta})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
