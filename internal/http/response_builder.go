// Package http provides the fintrack JSON API server and handlers.
//
// This file implements a small builder for JSON responses and the single
// place where service errors become HTTP responses.

package http

import (
	"encoding/json"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// messageBody is the envelope for responses that only report an outcome.
type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Message sets a {"message": ...} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	b.body = messageBody{Message: msg}
	return b
}

// Write encodes the body before touching the response so an encoding
// failure can still become a 500.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) error {
	var payload []byte
	if b.body != nil {
		var err error
		payload, err = json.Marshal(b.body)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"Internal server error"}`))
			return err
		}
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if payload != nil {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(b.statusCode)
	if payload != nil {
		_, err := w.Write(append(payload, '\n'))
		return err
	}
	return nil
}

// writeJSON sends v with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := NewJSONResponse().Status(status).Body(v).Write(w); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to write response", log.FieldError, err)
	}
}

// writeMessage sends {"message": msg} with status.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, messageBody{Message: msg})
}

// writeError maps err to its status once. Internal failures are logged with
// their cause and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	body := messageBody{Message: core.MessageOf(err)}
	if kind == core.KindInternal {
		log.LogError(r.Context(), log.FromContext(r.Context()), "Request failed", err, r.Method+" "+r.URL.Path,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
		body = messageBody{Message: "Internal server error", Error: core.MessageOf(err)}
	}
	writeJSON(w, r, kind.HTTPStatus(), body)
}
