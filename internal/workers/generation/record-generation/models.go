// internal/workers/generation/record-generation/models.go
package recordgeneration

type Input struct {
	UserID       string                 `json:"userId"`
	WorkflowName string                 `json:"workflowName"`
	JobID        string                 `json:"jobId"`
	Status       string                 `json:"status,omitempty"`
	Settings     map[string]interface{} `json:"settings,omitempty"`
}

type Output struct {
	GenerationID string `json:"generationId,omitempty"`
	Recorded     bool   `json:"recorded"`
	CreatedAt    string `json:"createdAt,omitempty"`
}
