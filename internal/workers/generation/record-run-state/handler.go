// internal/workers/generation/record-run-state/handler.go
package recordrunstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"limn-workers/internal/common/errors"
	"limn-workers/internal/common/logger"
	"limn-workers/internal/common/metrics"
	"limn-workers/internal/runstate"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "record-run-state"

type Handler struct {
	config       *Config
	manager      *runstate.Manager
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, manager *runstate.Manager, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		manager:      manager,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewInvalidWorkflowInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute merges the update into the workflow's stored run state, or clears
// it when Reset is set.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.WorkflowName == "" {
		return nil, errors.NewInvalidWorkflowInputError("workflowName is required")
	}

	if input.Reset {
		if err := h.manager.Reset(ctx, input.WorkflowName); err != nil {
			return nil, errors.NewRunStateUnavailableError(input.WorkflowName, err)
		}
		h.logger.Info("run state reset", map[string]interface{}{"workflowName": input.WorkflowName})
		state := runstate.New(input.WorkflowName)
		state.Service = input.Service
		return &Output{RunState: state}, nil
	}

	state, err := h.manager.Update(ctx, input.WorkflowName, func(s *runstate.RunState) {
		h.merge(s, input)
	})
	if err != nil {
		return nil, errors.NewRunStateUnavailableError(input.WorkflowName, err)
	}

	h.logger.Debug("run state recorded", map[string]interface{}{
		"workflowName": input.WorkflowName,
		"status":       state.Status,
		"logs":         len(state.Logs),
		"images":       len(state.Images),
	})
	return &Output{RunState: state}, nil
}

func (h *Handler) merge(s *runstate.RunState, in *Input) {
	if in.Service != "" {
		s.Service = in.Service
	}
	if in.Status != "" {
		s.Status = in.Status
	}
	if in.StatusFields != nil {
		s.StatusFields = in.StatusFields
	}
	if in.RunpodStatus != nil {
		s.RunpodStatus = in.RunpodStatus
	}
	if in.ConnectedBatches != nil {
		s.ConnectedBatches = in.ConnectedBatches
	}
	for k, v := range in.Values {
		s.Values[k] = v
	}

	s.Logs = append(s.Logs, in.Logs...)
	if limit := h.config.MaxLogLines; limit > 0 && len(s.Logs) > limit {
		s.Logs = append([]string(nil), s.Logs[len(s.Logs)-limit:]...)
	}
	s.Images = append(s.Images, in.Images...)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
