package models

import (
	"fmt"
	"strings"
)

// FieldError describes one violated field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every constraint a record violated.
type ValidationError struct {
	Record string       `json:"record"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Record, strings.Join(parts, "; "))
}

// HasField reports whether field is among the violations.
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

type validator struct {
	record string
	fields []FieldError
}

func newValidator(record string) *validator {
	return &validator{record: record}
}

func (v *validator) add(field, msg string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: msg})
}

func (v *validator) addf(field, format string, args ...any) {
	v.add(field, fmt.Sprintf(format, args...))
}

func (v *validator) notBlank(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "must not be blank")
	}
}

func (v *validator) nonEmptyList(field string, items []string) {
	if len(items) == 0 {
		v.add(field, "must contain at least one item")
	}
}

func (v *validator) noBlankItems(field string, items []string) {
	for i, item := range items {
		if strings.TrimSpace(item) == "" {
			v.addf(field, "item %d must not be blank", i)
		}
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Record: v.record, Fields: v.fields}
}
