// Package http provides the fintrack JSON API server and handlers.
//
// This file implements request body decoding shared by the handlers.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"fintrack/internal/core"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// decodeJSON reads a single JSON object from the body into v. An empty body
// is an error unless optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return core.Validationf("Content-Type must be application/json")
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			if optional {
				return nil
			}
			return core.Validationf("Request body is required")
		case errors.As(err, &maxErr):
			return core.Validationf("Request body is too large")
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return core.Validationf("Request body is not valid JSON")
		case errors.As(err, &typeErr):
			return core.Validationf("Field %s has the wrong type", typeErr.Field)
		default:
			return core.Validationf("Request body is not valid JSON")
		}
	}
	if dec.More() {
		return core.Validationf("Request body must contain a single JSON object")
	}
	return nil
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// formValue returns a pointer to a trimmed multipart field, nil when the
// field was not sent.
func formValue(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := sanitizeInput(values[0])
	return &v
}
