// internal/workers/generation/submit-generation/models.go
package submitgeneration

import "encoding/json"

type Input struct {
	Endpoint     string          `json:"endpoint"`
	Workflow     json.RawMessage `json:"workflow"`
	UserID       string          `json:"userId"`
	WorkflowName string          `json:"workflowName,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
}

type Output struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
}

// backendResponse is the job backend's answer to a submission.
type backendResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
