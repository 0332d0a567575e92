package common

import (
	"errors"
	"sort"
	"strings"
)

// ValidationError carries per-field messages keyed by the request field
// name. It matches ErrValidation, and also Cause when one is set.
type ValidationError struct {
	Fields map[string]string
	Cause  error
}

func NewFieldError(field, msg string, cause error) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}, Cause: cause}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// AsValidationError extracts a *ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
