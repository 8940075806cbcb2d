package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy shared by the store and the fog engine. Handlers map
// these onto HTTP status codes.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid request")
)

// ValidationError reports per-field validation failures so the caller
// can fix the request. It unwraps to ErrInvalid.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

func validationError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
