package handler

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON shape of every handler error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON encodes v as the JSON response body. Encoding failures are
// ignored; headers are already on the wire by then.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
