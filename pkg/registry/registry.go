// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"limn-workers/internal/common/validation"
	"limn-workers/internal/workflow"
)

var (
	ErrWorkflowNotFound = errors.New("WORKFLOW_NOT_FOUND")
	ErrInvalidRegistry  = errors.New("WORKFLOW_REGISTRY_INVALID")
)

var schema = validation.MustCompile(registrySchema)

// LoadRegistry reads and validates a registry file.
func LoadRegistry(path string) (*WorkflowRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse validates raw registry JSON against the registry schema and the
// cross-field rules in Validate.
func Parse(data []byte) (*WorkflowRegistry, error) {
	result, err := schema.ValidateJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRegistry, result.Error())
	}

	var reg WorkflowRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks the rules a schema cannot express.
func (r *WorkflowRegistry) Validate() error {
	var problems []string
	workflowIDs := make(map[string]bool, len(r.Workflows))

	for _, wf := range r.Workflows {
		if workflowIDs[wf.ID] {
			problems = append(problems, fmt.Sprintf("duplicate workflow id %q", wf.ID))
		}
		workflowIDs[wf.ID] = true

		fieldIDs := make(map[string]bool, len(wf.Fields))
		counts := make(map[workflow.FieldType]int)
		for _, field := range wf.Fields {
			if fieldIDs[field.ID] {
				problems = append(problems, fmt.Sprintf("%s: duplicate field id %q", wf.ID, field.ID))
			}
			fieldIDs[field.ID] = true
			counts[field.Type]++
		}
		for _, t := range []workflow.FieldType{workflow.FieldTypePrompts, workflow.FieldTypeCamera} {
			if counts[t] > 1 {
				problems = append(problems, fmt.Sprintf("%s: %d %s fields, at most one allowed", wf.ID, counts[t], t))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRegistry, strings.Join(problems, "; "))
	}
	return nil
}

// Find returns the workflow with the given id.
func (r *WorkflowRegistry) Find(id string) (*Workflow, error) {
	for i := range r.Workflows {
		if r.Workflows[i].ID == id {
			return &r.Workflows[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
}

// IDs lists workflow ids in file order.
func (r *WorkflowRegistry) IDs() []string {
	ids := make([]string, 0, len(r.Workflows))
	for _, wf := range r.Workflows {
		ids = append(ids, wf.ID)
	}
	return ids
}
