// internal/workers/infrastructure/select-workflow/handler.go
package selectworkflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"limn-workers/internal/common/errors"
	"limn-workers/internal/common/logger"
	"limn-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "select-workflow"

const (
	matchExplicit = "explicit"
	matchFallback = "fallback"
	defaultMode   = "default"
)

type Handler struct {
	config       *Config
	known        map[string]bool
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	known := make(map[string]bool, len(config.SelectionRules)+1)
	for _, id := range config.SelectionRules {
		known[id] = true
	}
	if config.DefaultWorkflow != "" {
		known[config.DefaultWorkflow] = true
	}

	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		known:        known,
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

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

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

// Execute picks a workflow: a known explicit name, then the service:mode
// rule, then service:default, then the configured fallback.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if name := strings.TrimSpace(input.WorkflowName); name != "" {
		if h.known[name] {
			return &Output{WorkflowID: name, MatchedRule: matchExplicit}, nil
		}
		h.logger.Warn("ignoring unknown workflow name", map[string]interface{}{
			"workflowName": name,
		})
	}

	service := strings.ToLower(strings.TrimSpace(input.Service))
	mode := strings.ToLower(strings.TrimSpace(input.Mode))
	if mode == "" {
		mode = defaultMode
	}

	if service != "" {
		for _, key := range []string{service + ":" + mode, service + ":" + defaultMode} {
			if id, ok := h.config.SelectionRules[key]; ok && id != "" {
				return &Output{WorkflowID: id, MatchedRule: key}, nil
			}
		}
	}

	if h.config.DefaultWorkflow != "" {
		h.logger.Debug("no selection rule matched, using fallback", map[string]interface{}{
			"service": service,
			"mode":    mode,
		})
		return &Output{WorkflowID: h.config.DefaultWorkflow, MatchedRule: matchFallback}, nil
	}

	return nil, errors.NewWorkflowSelectionFailedError(
		fmt.Sprintf("no workflow configured for service %q mode %q", service, mode))
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
