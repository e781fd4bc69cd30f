package registry

import (
	"os"
	"path/filepath"
	"testing"

	"limn-workers/internal/workflow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRegistry = `{
  "version": "1.0.0",
  "lastUpdated": "2026-10-01",
  "workflows": [
    {
      "id": "comfyui-default",
      "service": "comfyui",
      "endpoint": "comfyui",
      "template": {"input": {"steps": "${STEPS}", "width": "${W}"}},
      "fields": [
        {"id": "steps", "type": "int", "placeholder": "${STEPS}", "default": 20},
        {"id": "format", "type": "format"},
        {"id": "camera", "type": "camera"}
      ]
    }
  ]
}`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow-registry.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRegistry(t *testing.T) {
	reg, err := LoadRegistry(writeRegistry(t, validRegistry))
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", reg.Version)
	assert.Equal(t, []string{"comfyui-default"}, reg.IDs())

	wf, err := reg.Find("comfyui-default")
	require.NoError(t, err)
	assert.Equal(t, "comfyui", wf.Endpoint)
	require.Len(t, wf.Fields, 3)
	assert.Equal(t, workflow.FieldTypeInt, wf.Fields[0].Type)
	assert.JSONEq(t, `{"input": {"steps": "${STEPS}", "width": "${W}"}}`, string(wf.Template))
}

func TestLoadRegistry_BundledFile(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "workflow-registry.json"))
	require.NoError(t, err)

	for _, id := range []string{"deforum-limn", "comfyui-default"} {
		_, err := reg.Find(id)
		assert.NoError(t, err, id)
	}
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read registry")
}

func TestRegistry_Find_NotFound(t *testing.T) {
	reg, err := Parse([]byte(validRegistry))
	require.NoError(t, err)

	_, err = reg.Find("a1111-upscale")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expectedErr string
	}{
		{
			name:        "malformed json",
			content:     `{"version": `,
			expectedErr: "WORKFLOW_REGISTRY_INVALID",
		},
		{
			name:        "missing endpoint",
			content:     `{"version": "1", "workflows": [{"id": "a", "service": "comfyui", "template": {}, "fields": []}]}`,
			expectedErr: "endpoint",
		},
		{
			name:        "template not an object",
			content:     `{"version": "1", "workflows": [{"id": "a", "service": "s", "endpoint": "e", "template": "{}", "fields": []}]}`,
			expectedErr: "template",
		},
		{
			name: "string field without placeholder",
			content: `{"version": "1", "workflows": [{"id": "a", "service": "s", "endpoint": "e", "template": {},
				"fields": [{"id": "prompt", "type": "string"}]}]}`,
			expectedErr: "placeholder",
		},
		{
			name: "duplicate field ids",
			content: `{"version": "1", "workflows": [{"id": "a", "service": "s", "endpoint": "e", "template": {},
				"fields": [{"id": "x", "placeholder": "${X}"}, {"id": "x", "placeholder": "${Y}"}]}]}`,
			expectedErr: `duplicate field id "x"`,
		},
		{
			name: "two prompts fields",
			content: `{"version": "1", "workflows": [{"id": "a", "service": "s", "endpoint": "e", "template": {},
				"fields": [{"id": "p1", "type": "prompts", "placeholder": "${P1}"}, {"id": "p2", "type": "prompts", "placeholder": "${P2}"}]}]}`,
			expectedErr: "at most one allowed",
		},
		{
			name: "duplicate workflow ids",
			content: `{"version": "1", "workflows": [
				{"id": "a", "service": "s", "endpoint": "e", "template": {}, "fields": []},
				{"id": "a", "service": "s", "endpoint": "e", "template": {}, "fields": []}]}`,
			expectedErr: `duplicate workflow id "a"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRegistry)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestRegistry_TemplatesFill(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "workflow-registry.json"))
	require.NoError(t, err)

	filler := workflow.NewFiller(nil, workflow.WithSeedSource(func() int64 { return 7 }))
	values := map[string]workflow.Values{
		"deforum-limn":    {"prompts": `{"0": "a lighthouse at dusk"}`},
		"comfyui-default": {"prompt": "a glass bottle landscape"},
	}

	for _, wf := range reg.Workflows {
		t.Run(wf.ID, func(t *testing.T) {
			out, err := filler.Fill(wf.Template, wf.Fields, values[wf.ID])
			require.NoError(t, err)
			assert.NotContains(t, string(out.JSON), "__SEED__")
			assert.Empty(t, out.Warnings)
		})
	}
}
