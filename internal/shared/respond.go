package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrorBody is the JSON envelope for failed requests: a stable machine
// code plus a human readable message. Extra holds endpoint specific
// metadata such as the grace period on subscription failures.
type ErrorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Extra   map[string]any `json:"-"`
}

// WriteJSON serializes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError writes the standard error envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{Error: code, Message: message})
}

// RespondErrorExtra writes the error envelope with additional fields
// merged into the body.
func RespondErrorExtra(w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	body := map[string]any{"error": code, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

const maxBodyBytes = 1 << 20

// DecodeJSON reads a JSON request body into dst, rejecting unknown
// fields and oversized payloads.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
