// internal/workers/generation/record-run-state/handler_test.go
package recordrunstate

import (
	"context"
	"testing"
	"time"

	"limn-workers/internal/common/errors"
	"limn-workers/internal/common/logger"
	"limn-workers/internal/runstate"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{MaxLogLines: 0, Timeout: 5 * time.Second}
}

func createTestHandler(t *testing.T, config *Config, store runstate.Store) (*Handler, *runstate.Manager) {
	if config == nil {
		config = createTestConfig()
	}
	if store == nil {
		store = runstate.NewMemoryStore()
	}
	log := logger.NewTestLogger(t)
	manager := runstate.NewManager(store, runstate.DefaultKeyPrefix, log)
	return NewHandler(config, manager, log), manager
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_FirstUpdate(t *testing.T) {
	handler, manager := createTestHandler(t, nil, nil)

	output, err := handler.Execute(context.Background(), &Input{
		WorkflowName: "deforum-limn",
		Service:      "deforum",
		Status:       "IN_QUEUE",
		Logs:         []string{"submitted job-1"},
		Values:       map[string]interface{}{"prompts": `{"0": "a cat"}`},
	})

	require.NoError(t, err)
	state := output.RunState
	assert.Equal(t, "deforum-limn", state.WorkflowName)
	assert.Equal(t, "deforum", state.Service)
	assert.Equal(t, "IN_QUEUE", state.Status)
	assert.Equal(t, []string{"submitted job-1"}, state.Logs)
	assert.Empty(t, state.Images)
	assert.False(t, state.UpdatedAt.IsZero())

	stored, err := manager.Load(context.Background(), "deforum-limn")
	require.NoError(t, err)
	assert.Equal(t, "IN_QUEUE", stored.Status)
}

func TestHandler_Execute_MergesUpdates(t *testing.T) {
	handler, _ := createTestHandler(t, nil, nil)
	ctx := context.Background()

	_, err := handler.Execute(ctx, &Input{
		WorkflowName: "comfyui-default",
		Service:      "comfyui",
		Status:       "IN_QUEUE",
		Logs:         []string{"queued"},
		Values:       map[string]interface{}{"prompt": "a fox", "steps": float64(20)},
		StatusFields: []map[string]interface{}{{"label": "Job", "value": "job-1"}},
	})
	require.NoError(t, err)

	output, err := handler.Execute(ctx, &Input{
		WorkflowName: "comfyui-default",
		Status:       "COMPLETED",
		Logs:         []string{"done"},
		Images:       []string{"https://cdn.example.com/1.png"},
		RunpodStatus: map[string]interface{}{"status": "COMPLETED", "executionTime": float64(1200)},
		Values:       map[string]interface{}{"steps": float64(30)},
	})
	require.NoError(t, err)

	state := output.RunState
	assert.Equal(t, "comfyui", state.Service, "service is kept when not provided")
	assert.Equal(t, "COMPLETED", state.Status)
	assert.Equal(t, []string{"queued", "done"}, state.Logs)
	assert.Equal(t, []string{"https://cdn.example.com/1.png"}, state.Images)
	assert.Equal(t, "a fox", state.Values["prompt"])
	assert.Equal(t, float64(30), state.Values["steps"])
	assert.Len(t, state.StatusFields, 1, "status fields are kept when not provided")
	assert.Equal(t, "COMPLETED", state.RunpodStatus["status"])
}

func TestHandler_Execute_TrimsLogs(t *testing.T) {
	handler, _ := createTestHandler(t, &Config{MaxLogLines: 2, Timeout: time.Second}, nil)

	output, err := handler.Execute(context.Background(), &Input{
		WorkflowName: "deforum-limn",
		Logs:         []string{"one", "two", "three"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, output.RunState.Logs)
}

func TestHandler_Execute_Reset(t *testing.T) {
	handler, manager := createTestHandler(t, nil, nil)
	ctx := context.Background()

	_, err := handler.Execute(ctx, &Input{WorkflowName: "deforum-limn", Status: "FAILED", Logs: []string{"boom"}})
	require.NoError(t, err)
	_, err = handler.Execute(ctx, &Input{WorkflowName: "comfyui-default", Status: "COMPLETED"})
	require.NoError(t, err)

	output, err := handler.Execute(ctx, &Input{WorkflowName: "deforum-limn", Service: "deforum", Reset: true})
	require.NoError(t, err)
	assert.Equal(t, runstate.StatusIdle, output.RunState.Status)
	assert.Empty(t, output.RunState.Logs)

	cleared, err := manager.Load(ctx, "deforum-limn")
	require.NoError(t, err)
	assert.Equal(t, runstate.StatusIdle, cleared.Status)

	other, err := manager.Load(ctx, "comfyui-default")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", other.Status, "other workflows are untouched")
}

func TestHandler_Execute_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler, _ := createTestHandler(t, nil, runstate.NewRedisStore(client, time.Hour))

	_, err := handler.Execute(context.Background(), &Input{
		WorkflowName: "deforum-limn",
		Status:       "IN_PROGRESS",
		Images:       []string{"frame-1.png"},
	})

	require.NoError(t, err)
	assert.True(t, mr.Exists("runpod_state_deforum-limn"))
	assert.Equal(t, time.Hour, mr.TTL("runpod_state_deforum-limn"))
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_MissingWorkflowName(t *testing.T) {
	handler, _ := createTestHandler(t, nil, nil)

	_, err := handler.Execute(context.Background(), &Input{Status: "IN_QUEUE"})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidWorkflowInput, errors.Normalize(err).Code)
}

func TestHandler_Execute_StoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	handler, _ := createTestHandler(t, nil, runstate.NewRedisStore(client, 0))

	for _, input := range []*Input{
		{WorkflowName: "deforum-limn", Status: "IN_QUEUE"},
		{WorkflowName: "deforum-limn", Reset: true},
	} {
		_, err := handler.Execute(context.Background(), input)

		require.Error(t, err)
		stdErr := errors.Normalize(err)
		assert.Equal(t, errors.ErrCodeRunStateUnavailable, stdErr.Code)
		assert.True(t, stdErr.Retryable)
	}
}
