// pkg/registry/schema.go
package registry

import (
	"encoding/json"

	"limn-workers/internal/workflow"
)

// WorkflowRegistry is the on-disk catalogue of submittable workflows.
type WorkflowRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Workflows   []Workflow `json:"workflows"`
}

// Workflow pairs a backend template with the fields users may adjust.
type Workflow struct {
	ID          string                 `json:"id"`
	DisplayName string                 `json:"displayName"`
	Description string                 `json:"description"`
	Service     string                 `json:"service"`  // deforum, comfyui, a1111
	Endpoint    string                 `json:"endpoint"` // path below backend.base_url
	Template    json.RawMessage        `json:"template"`
	Fields      []workflow.FieldConfig `json:"fields"`
	Tags        []string               `json:"tags,omitempty"`
}

const registrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "workflows"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "lastUpdated": {"type": "string"},
    "workflows": {
      "type": "array",
      "items": {"$ref": "#/definitions/workflow"}
    }
  },
  "definitions": {
    "workflow": {
      "type": "object",
      "required": ["id", "service", "endpoint", "template", "fields"],
      "properties": {
        "id": {"type": "string", "pattern": "^[a-z0-9][a-z0-9_-]*$"},
        "displayName": {"type": "string"},
        "description": {"type": "string"},
        "service": {"type": "string", "minLength": 1},
        "endpoint": {"type": "string", "minLength": 1},
        "template": {"type": "object"},
        "fields": {"type": "array", "items": {"$ref": "#/definitions/field"}},
        "tags": {"type": "array", "items": {"type": "string"}}
      }
    },
    "field": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "type": {"type": "string"},
        "placeholder": {"type": "string"},
        "prefix": {"type": "string"},
        "required": {"type": "boolean"},
        "options": {"type": "array", "items": {"type": "string"}}
      },
      "if": {
        "not": {
          "properties": {"type": {"enum": ["format", "format-select", "camera"]}},
          "required": ["type"]
        }
      },
      "then": {
        "required": ["placeholder"],
        "properties": {"placeholder": {"minLength": 1}}
      }
    }
  }
}`
