package runstate

import "time"

const StatusIdle = "Idle"

// RunState is the last known progress of one workflow's generation run.
type RunState struct {
	Service          string                   `json:"service,omitempty"`
	WorkflowName     string                   `json:"workflow_name,omitempty"`
	StatusFields     []map[string]interface{} `json:"statusFields"`
	Logs             []string                 `json:"logs"`
	Status           string                   `json:"status"`
	RunpodStatus     map[string]interface{}   `json:"runpodStatus"`
	Images           []string                 `json:"images"`
	Values           map[string]interface{}   `json:"values"`
	ConnectedBatches []string                 `json:"connectedBatches"`
	UpdatedAt        time.Time                `json:"updatedAt,omitempty"`
}

// New returns the idle state for a workflow.
func New(workflowName string) *RunState {
	return &RunState{
		WorkflowName:     workflowName,
		StatusFields:     []map[string]interface{}{},
		Logs:             []string{},
		Status:           StatusIdle,
		Images:           []string{},
		Values:           map[string]interface{}{},
		ConnectedBatches: []string{},
	}
}

// normalize replaces nil collections so stored JSON always has arrays and
// objects, never null.
func (s *RunState) normalize() {
	if s.StatusFields == nil {
		s.StatusFields = []map[string]interface{}{}
	}
	if s.Logs == nil {
		s.Logs = []string{}
	}
	if s.Images == nil {
		s.Images = []string{}
	}
	if s.Values == nil {
		s.Values = map[string]interface{}{}
	}
	if s.ConnectedBatches == nil {
		s.ConnectedBatches = []string{}
	}
	if s.Status == "" {
		s.Status = StatusIdle
	}
}
