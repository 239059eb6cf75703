package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error payload every endpoint returns, wrapped under an
// "error" key so clients can branch on Code without sniffing the message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON encodes v to the response with the given status. Encoding failures
// after the header is written cannot be reported, so they are dropped.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError renders the canonical error envelope.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{"error": ErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}
