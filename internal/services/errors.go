package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ridehub/apiserver/internal/store"
)

var (
	// ErrNotFound aliases the store sentinel so callers need only one check.
	ErrNotFound = store.ErrNotFound

	ErrAuth         = errors.New("invalid credentials")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidFile  = errors.New("invalid file")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError lists every rejected input field with a message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IntegrityError reports metadata and stored bytes that no longer agree.
// It is logged in full and never shown to clients.
type IntegrityError struct {
	Op      string
	PhotoID string
	Key     string
	Err     error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s photo %s (object %s): %v", e.Op, e.PhotoID, e.Key, e.Err)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}
