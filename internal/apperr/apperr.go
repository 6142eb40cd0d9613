// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apperr defines the error taxonomy shared by the document layer.
// Validation errors are caused by caller input and carry the offending
// document id and field path. Structural errors mean the schema or the
// program is wrong and must not be retried. Callers match both with
// errors.Is against the exported sentinels.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrStructural matches every *StructuralError.
	ErrStructural = errors.New("structural error")
)

// ValidationError reports unusable caller input.
type ValidationError struct {
	Msg        string
	Path       []string
	DocumentID string
}

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// MissingDocument is the error raised when a relation references a
// document that has no row for the requested locale and status.
func MissingDocument(documentID string, path ...string) *ValidationError {
	return &ValidationError{
		Msg:        fmt.Sprintf("Document with id %q not found", documentID),
		Path:       path,
		DocumentID: documentID,
	}
}

func (e *ValidationError) Error() string {
	if len(e.Path) == 0 {
		return e.Msg
	}
	return strings.Join(e.Path, ".") + ": " + e.Msg
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// WithPath returns a copy of e with path prepended to its field path.
func (e *ValidationError) WithPath(path ...string) *ValidationError {
	out := *e
	out.Path = append(append([]string{}, path...), e.Path...)
	return &out
}

// NotFoundError reports a missing (document, locale, status) target.
type NotFoundError struct {
	UID        string
	DocumentID string
	Locale     string
}

func (e *NotFoundError) Error() string {
	if e.Locale == "" {
		return fmt.Sprintf("document %s/%s not found", e.UID, e.DocumentID)
	}
	return fmt.Sprintf("document %s/%s (locale %s) not found", e.UID, e.DocumentID, e.Locale)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StructuralError reports a schema or programming mistake.
type StructuralError struct {
	Msg string
}

// Structural builds a StructuralError from a format string.
func Structural(format string, args ...any) *StructuralError {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}

func (e *StructuralError) Error() string { return e.Msg }

// Is lets errors.Is(err, ErrStructural) match.
func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsStructural reports whether err is, or wraps, a StructuralError.
func IsStructural(err error) bool { return errors.Is(err, ErrStructural) }
