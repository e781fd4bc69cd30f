package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fieldSchema = `{
  "type": "object",
  "required": ["id", "placeholder"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "placeholder": {"type": "string", "minLength": 1},
    "type": {"enum": ["int", "number", "string"]}
  }
}`

func TestSchema_ValidateJSON(t *testing.T) {
	s := MustCompile(fieldSchema)

	tests := []struct {
		name          string
		doc           string
		valid         bool
		expectedField string
		expectedCode  string
	}{
		{name: "valid", doc: `{"id":"steps","placeholder":"${STEPS}","type":"int"}`, valid: true},
		{name: "missing placeholder", doc: `{"id":"steps"}`, expectedField: "(root)", expectedCode: "required"},
		{name: "empty id", doc: `{"id":"","placeholder":"x"}`, expectedField: "id", expectedCode: "string_gte"},
		{name: "bad type", doc: `{"id":"a","placeholder":"x","type":"float"}`, expectedField: "type", expectedCode: "enum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.ValidateJSON([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.expectedField, result.Errors[0].Field)
				assert.Equal(t, tt.expectedCode, result.Errors[0].Code)
				assert.NotEmpty(t, result.Error())
			}
		})
	}
}

func TestSchema_ValidateJSON_Malformed(t *testing.T) {
	_, err := MustCompile(fieldSchema).ValidateJSON([]byte(`{not json`))
	assert.Error(t, err)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`{"type": 12}`) })
}

func TestValidateInput(t *testing.T) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"workflowId"},
		"properties": map[string]interface{}{
			"workflowId": map[string]interface{}{"type": "string"},
		},
	}

	result, err := ValidateInput(map[string]interface{}{"workflowId": "deforum-limn"}, schema)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = ValidateInput(map[string]interface{}{}, schema)
	require.NoError(t, err)
	assert.False(t, result.Valid)

	result, err = ValidateInput(map[string]interface{}{"anything": 1}, nil)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
