package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name            string
		err             *StandardError
		expectedCode    string
		expectedRetries int
	}{
		{
			name:            "retryable backend failure",
			err:             NewBackendSubmitFailedError("deforum", fmt.Errorf("connection refused")),
			expectedCode:    "BACKEND_SUBMIT_FAILED",
			expectedRetries: 3,
		},
		{
			name:            "timeout retries twice",
			err:             NewBackendTimeoutError("comfyui"),
			expectedCode:    "BACKEND_TIMEOUT",
			expectedRetries: 2,
		},
		{
			name:            "substitution failure is terminal",
			err:             NewTemplateSubstitutionError("deforum-limn", fmt.Errorf("bad json")),
			expectedCode:    "TEMPLATE_SUBSTITUTION_FAILED",
			expectedRetries: 0,
		},
		{
			name:            "rejected request is terminal",
			err:             NewBackendRejectedError("comfyui", 400, "bad input"),
			expectedCode:    "BACKEND_REJECTED",
			expectedRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.expectedCode, bpmnErr.Code)
			assert.Equal(t, tt.expectedRetries, bpmnErr.Retries)
			assert.Equal(t, string(tt.err.Code), bpmnErr.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestConvertToBPMNError_CarriesMetadata(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewTemplateSubstitutionError("deforum-limn", fmt.Errorf("boom")))

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "deforum-limn", vars["workflowId"])
	assert.Equal(t, "TEMPLATE_SUBSTITUTION_FAILED", vars["errorCode"])
	assert.Equal(t, false, vars["retryable"])
}

func TestNormalize(t *testing.T) {
	stdErr := NewWorkflowNotFoundError("missing")
	wrapped := fmt.Errorf("prepare: %w", stdErr)

	assert.Same(t, stdErr, Normalize(wrapped))

	plain := Normalize(fmt.Errorf("plain failure"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "plain failure", plain.Details)
	assert.False(t, plain.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeWorkflowNotFound))
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateSubstitutionFailed))
	assert.Equal(t, "BACKEND", GetErrorCategory(ErrCodeBackendTimeout))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeRunStateUnavailable))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeDatabaseInsertFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidWorkflowInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeBackendSubmitFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeWorkflowSelectionFailed))
}
