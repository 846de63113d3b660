// Package apierror turns unsuccessful API responses into errors carrying the
// message the backend meant for the user.
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/christlandtech/storefront-client/internal/errors"
)

// Error describes an API response with a status outside 2xx, or a successful
// status with a body that is not JSON.
type Error struct {
	StatusCode  int
	Message     string
	Field       string
	FieldErrors map[string]string
	Body        []byte

	kind error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the error category: ErrUnauthorized, ErrNotFound,
// ErrNonJSONResponse or ErrHTTPStatus.
func (e *Error) Unwrap() error {
	return e.kind
}

// errorBody is the error shape produced by the backend views.
type errorBody struct {
	Error       string         `json:"error"`
	Detail      string         `json:"detail"`
	Field       string         `json:"field"`
	FieldErrors map[string]any `json:"field_errors"`
}

// FromStatus builds the error for a non-2xx response. The message prefers the
// body's error or detail field, prefixed with field when present and followed
// by any field_errors. Without a usable body the message is fallback, or
// "HTTP <status>" when fallback is empty.
func FromStatus(status int, body []byte, fallback string) *Error {
	if fallback == "" {
		fallback = fmt.Sprintf("HTTP %d", status)
	}
	e := &Error{
		StatusCode: status,
		Message:    fallback,
		Body:       body,
		kind:       errors.ErrHTTPStatus,
	}
	switch status {
	case http.StatusUnauthorized:
		e.kind = errors.ErrUnauthorized
	case http.StatusNotFound:
		e.kind = errors.ErrNotFound
	}

	var parsed errorBody
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil {
		return e
	}

	reason := parsed.Error
	if reason == "" {
		reason = parsed.Detail
	}
	if reason != "" {
		e.Message = reason
	}
	if parsed.Field != "" {
		e.Field = parsed.Field
		if reason == "" {
			reason = "Erreur"
		}
		e.Message = parsed.Field + ": " + reason
	}
	if len(parsed.FieldErrors) > 0 {
		e.FieldErrors = make(map[string]string, len(parsed.FieldErrors))
		keys := make([]string, 0, len(parsed.FieldErrors))
		for k, v := range parsed.FieldErrors {
			e.FieldErrors[k] = fieldErrorText(v)
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.FieldErrors[k])
		}
		e.Message += " — " + strings.Join(parts, " | ")
	}
	return e
}

// NonJSON builds the error for a response whose content type is not JSON.
// message is the already localized text shown to the user.
func NonJSON(status int, body []byte, message string) *Error {
	return &Error{
		StatusCode: status,
		Message:    message,
		Body:       body,
		kind:       errors.ErrNonJSONResponse,
	}
}

// fieldErrorText flattens the list form used by validation errors.
func fieldErrorText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}
