// Package validation carries field-keyed validation results.
package validation

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"
)

// FieldErrors maps a field name to its messages in the order they were added.
// An empty FieldErrors means the input is valid.
type FieldErrors map[string][]string

// Add appends a message for field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Has reports whether field has at least one message.
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

// Valid reports whether no messages were recorded.
func (fe FieldErrors) Valid() bool {
	return len(fe) == 0
}

// Fields returns the names of fields with messages, sorted.
func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for name := range fe {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns nil for a valid result, otherwise a *Error wrapping fe.
func (fe FieldErrors) Err() error {
	if fe.Valid() {
		return nil
	}
	return &Error{Fields: fe}
}

// Error is returned by services when user input fails validation.
type Error struct {
	Fields FieldErrors
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, name := range e.Fields.Fields() {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields extracts field errors from err, if it is (or wraps) a *Error.
func Fields(err error) (FieldErrors, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Fields, true
	}
	return nil, false
}

// Length returns the number of code points in s.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
