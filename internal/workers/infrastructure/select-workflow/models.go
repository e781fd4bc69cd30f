// internal/workers/infrastructure/select-workflow/models.go
package selectworkflow

type Input struct {
	Service      string `json:"service"`
	Mode         string `json:"mode,omitempty"`
	WorkflowName string `json:"workflowName,omitempty"`
}

type Output struct {
	WorkflowID  string `json:"workflowId"`
	MatchedRule string `json:"matchedRule"` // explicit, service:mode, service:default or fallback
}
