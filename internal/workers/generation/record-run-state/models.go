// internal/workers/generation/record-run-state/models.go
package recordrunstate

import "limn-workers/internal/runstate"

// Input carries a partial update. Nil collections and empty strings leave
// the stored value untouched.
type Input struct {
	WorkflowName     string                   `json:"workflowName"`
	Service          string                   `json:"service,omitempty"`
	Status           string                   `json:"status,omitempty"`
	StatusFields     []map[string]interface{} `json:"statusFields,omitempty"`
	Logs             []string                 `json:"logs,omitempty"`
	Images           []string                 `json:"images,omitempty"`
	RunpodStatus     map[string]interface{}   `json:"runpodStatus,omitempty"`
	Values           map[string]interface{}   `json:"values,omitempty"`
	ConnectedBatches []string                 `json:"connectedBatches,omitempty"`
	Reset            bool                     `json:"reset,omitempty"`
}

type Output struct {
	RunState *runstate.RunState `json:"runState"`
}
