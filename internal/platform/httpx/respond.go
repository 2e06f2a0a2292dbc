// Package httpx provides the JSON response envelope shared by every API
// endpoint. Success and failure use the same shape so clients can decode
// responses uniformly.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the wire shape of every API response.
type Envelope struct {
	Success   bool   `json:"success"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	HTTPCode  int    `json:"http_code"`
	Data      any    `json:"data,omitempty"`
}

// JSON sends a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, Envelope{
		Success:   status < http.StatusBadRequest,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		HTTPCode:  status,
		Data:      data,
	})
}

// Fail sends a failure envelope with the given status code.
func Fail(w http.ResponseWriter, status int, message string) {
	write(w, Envelope{
		Success:   false,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		HTTPCode:  status,
	})
}

func write(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.HTTPCode)
	_ = json.NewEncoder(w).Encode(env)
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
