package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxBodyBytes caps request bodies; every payload this service accepts is a
// handful of short fields.
const maxBodyBytes = 64 << 10

// ErrBadRequest is returned by DecodeJSON for unreadable or malformed bodies.
var ErrBadRequest = errors.New("httpx: malformed request body")

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Every response carrying codes, grants or session tokens needs this.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// Message is the envelope shared by all JSON responses of the service.
type Message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteMessage writes a bare {success, message} envelope.
func WriteMessage(w http.ResponseWriter, code int, success bool, msg string) {
	WriteJSON(w, code, Message{Success: success, Message: msg})
}

// DecodeJSON decodes a size-limited JSON body into v and rejects unknown
// fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("%w: unsupported content type %q", ErrBadRequest, ct)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", ErrBadRequest)
	}
	return nil
}
