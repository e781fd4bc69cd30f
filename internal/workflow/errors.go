package workflow

import (
	"errors"
	"fmt"
)

// ErrTemplateSubstitution is matched by every fatal fill error.
var ErrTemplateSubstitution = errors.New("TEMPLATE_SUBSTITUTION_FAILED")

// ParseError means the substituted document is not valid JSON. Text holds the
// offending document.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: document is not valid JSON: %v", ErrTemplateSubstitution, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrTemplateSubstitution, e.Err} }

// MissingValueError is returned when a required field has no value and no default.
type MissingValueError struct {
	FieldID string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("%s: missing value for required field %q", ErrTemplateSubstitution, e.FieldID)
}

func (e *MissingValueError) Unwrap() error { return ErrTemplateSubstitution }

// MalformedValueError is returned when a numeric value cannot be coerced.
type MalformedValueError struct {
	FieldID string
	Value   interface{}
	Err     error
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("%s: field %q: cannot use %v as a number: %v", ErrTemplateSubstitution, e.FieldID, e.Value, e.Err)
}

func (e *MalformedValueError) Unwrap() []error { return []error{ErrTemplateSubstitution, e.Err} }

// PromptsDecodeError is recovered by substituting an empty object.
type PromptsDecodeError struct {
	FieldID string
	Value   string
	Err     error
}

func (e *PromptsDecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("prompts field %q has no value", e.FieldID)
	}
	return fmt.Sprintf("prompts field %q: %v", e.FieldID, e.Err)
}

func (e *PromptsDecodeError) Unwrap() error { return e.Err }

// IncompleteSubstitutionWarning means a configured placeholder is still in the output.
type IncompleteSubstitutionWarning struct {
	FieldID     string
	Placeholder string
}

func (e *IncompleteSubstitutionWarning) Error() string {
	return fmt.Sprintf("placeholder %s of field %q was not replaced", e.Placeholder, e.FieldID)
}
