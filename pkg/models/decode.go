package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

type normalizer interface {
	normalize()
}

// Decode parses raw into a T and validates it. It is the only way a
// backend response becomes a record: unknown fields, trailing data and any
// constraint violation are rejected. Lists outside the schema's Required set
// are optional: null or missing decodes to an empty slice. Required keys are
// enforced by Validate, so a missing one fails like an invalid value.
func Decode[T Record](raw []byte) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s: %w", out.SchemaName(), err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return out, fmt.Errorf("decode %s: unexpected trailing data", out.SchemaName())
	}
	if n, ok := any(&out).(normalizer); ok {
		n.normalize()
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// Slug converts a ticket summary into its storage key: lower-cased, spaces
// replaced by underscores, and anything other than letters, digits, '_' and
// '-' dropped so the key can never escape a directory.
func Slug(summary string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(summary)) {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
