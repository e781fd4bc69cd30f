// internal/workers/generation/prepare-workflow/models.go
package prepareworkflow

import (
	"encoding/json"

	"limn-workers/internal/workflow"
)

type Input struct {
	WorkflowID string                 `json:"workflowId"`
	RequestID  string                 `json:"requestId,omitempty"`
	Values     map[string]interface{} `json:"values"`
}

type Output struct {
	Workflow     json.RawMessage       `json:"workflow"`
	Endpoint     string                `json:"endpoint"`
	Service      string                `json:"service"`
	WorkflowName string                `json:"workflowName"`
	RequestID    string                `json:"requestId,omitempty"`
	Warnings     []workflow.Diagnostic `json:"warnings"`
}
