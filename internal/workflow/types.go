package workflow

import (
	"encoding/json"
	"fmt"
)

// FieldType selects how a field's value is substituted into a template.
type FieldType string

const (
	FieldTypeString       FieldType = "string"
	FieldTypeInt          FieldType = "int"
	FieldTypeNumber       FieldType = "number"
	FieldTypeIntDropdown  FieldType = "int-dropdown"
	FieldTypeFormat       FieldType = "format"
	FieldTypeFormatSelect FieldType = "format-select"
	FieldTypePrompts      FieldType = "prompts"
	FieldTypeCamera       FieldType = "camera"
)

// IsNumeric reports whether values of this type are coerced to numbers.
func (t FieldType) IsNumeric() bool {
	return t == FieldTypeInt || t == FieldTypeNumber || t == FieldTypeIntDropdown
}

// IsDimension reports whether the field carries a "W, H" format string.
func (t FieldType) IsDimension() bool {
	return t == FieldTypeFormat || t == FieldTypeFormatSelect
}

// FieldConfig describes one user-adjustable parameter of a workflow.
type FieldConfig struct {
	ID          string      `json:"id"`
	Type        FieldType   `json:"type,omitempty"`
	Label       string      `json:"label,omitempty"`
	Placeholder string      `json:"placeholder"`
	Prefix      string      `json:"prefix,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Options     []string    `json:"options,omitempty"`
}

// Values maps field ids to user-entered values.
type Values map[string]interface{}

// FilledWorkflow is a template with every resolvable placeholder replaced.
type FilledWorkflow struct {
	// Document is the parsed result; numbers are json.Number.
	Document interface{}     `json:"document"`
	JSON     json.RawMessage `json:"-"`
	Warnings []Diagnostic    `json:"warnings,omitempty"`
}

// Object returns the document root as a JSON object.
func (w *FilledWorkflow) Object() (map[string]interface{}, error) {
	obj, ok := w.Document.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: document root is %T, not an object", ErrTemplateSubstitution, w.Document)
	}
	return obj, nil
}

// DiagnosticKind classifies a non-fatal substitution problem.
type DiagnosticKind string

const (
	DiagnosticPromptsDecode          DiagnosticKind = "prompts_decode"
	DiagnosticIncompleteSubstitution DiagnosticKind = "incomplete_substitution"
)

// Diagnostic records a field anomaly that was recovered in place.
type Diagnostic struct {
	Kind        DiagnosticKind `json:"kind"`
	FieldID     string         `json:"fieldId,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Message     string         `json:"message"`
	Err         error          `json:"-"`
}

// Camera is the eight-component camera motion of a Deforum workflow.
type Camera struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	CenterX   float64 `json:"center_x"`
	CenterY   float64 `json:"center_y"`
	RotationX float64 `json:"rotation_x"`
	RotationY float64 `json:"rotation_y"`
	RotationZ float64 `json:"rotation_z"`
}
