// internal/workers/generation/prepare-workflow/handler.go
package prepareworkflow

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"limn-workers/internal/common/errors"
	"limn-workers/internal/common/logger"
	"limn-workers/internal/common/metrics"
	"limn-workers/internal/common/observability"
	"limn-workers/internal/common/validation"
	"limn-workers/internal/workflow"
	"limn-workers/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const TaskType = "prepare-workflow"

type registryCacheEntry struct {
	registry *registry.WorkflowRegistry
	loadedAt time.Time
}

type Handler struct {
	config       *Config
	filler       *workflow.Filler
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger

	mu    sync.RWMutex
	cache *registryCacheEntry
}

func NewHandler(config *Config, filler *workflow.Filler, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	if filler == nil {
		filler = workflow.NewFiller(log)
	}
	return &Handler{
		config:       config,
		filler:       filler,
		obs:          obs,
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

	input, err := parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"workflowId"},
	"properties": map[string]interface{}{
		"workflowId": map[string]interface{}{"type": "string", "minLength": 1},
		"requestId":  map[string]interface{}{"type": "string"},
		"values":     map[string]interface{}{"type": []interface{}{"object", "null"}},
	},
}

// parseInput keeps numbers as json.Number so large seeds survive intact.
func parseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := decodeNumbers(variables, &raw); err != nil {
		return nil, errors.NewInvalidWorkflowInputError(fmt.Sprintf("parse input: %v", err))
	}

	result, err := validation.ValidateInput(raw, inputSchema)
	if err != nil {
		return nil, errors.NewInvalidWorkflowInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidWorkflowInputError(result.Error())
	}

	var input Input
	if err := decodeNumbers(variables, &input); err != nil {
		return nil, errors.NewInvalidWorkflowInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

func decodeNumbers(data string, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	return dec.Decode(v)
}

// Execute looks the workflow up in the registry and fills its template with
// the job's values.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.WorkflowID == "" {
		return nil, errors.NewInvalidWorkflowInputError("workflowId is required")
	}

	_, span := h.obs.StartSpan(ctx, "workflow.fill",
		attribute.String("workflow.id", input.WorkflowID),
		attribute.String("request.id", input.RequestID),
	)
	defer span.End()

	reg, err := h.loadRegistry()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.NewWorkflowRegistryInvalidError(err)
	}

	wf, err := reg.Find(input.WorkflowID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.logger.Warn("workflow not in registry", map[string]interface{}{
			"workflowId": input.WorkflowID,
			"available":  reg.IDs(),
		})
		return nil, errors.NewWorkflowNotFoundError(input.WorkflowID)
	}

	filled, err := h.filler.Fill(wf.Template, wf.Fields, workflow.Values(input.Values))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.WorkflowFills.WithLabelValues(wf.ID, "failed").Inc()
		return nil, h.classifyFillError(wf.ID, err)
	}

	for _, d := range filled.Warnings {
		metrics.WorkflowFillDiagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
	status := "success"
	if len(filled.Warnings) > 0 {
		status = "partial"
	}
	metrics.WorkflowFills.WithLabelValues(wf.ID, status).Inc()
	span.SetAttributes(attribute.Int("workflow.warnings", len(filled.Warnings)))

	warnings := filled.Warnings
	if warnings == nil {
		warnings = []workflow.Diagnostic{}
	}

	return &Output{
		Workflow:     filled.JSON,
		Endpoint:     wf.Endpoint,
		Service:      wf.Service,
		WorkflowName: wf.ID,
		RequestID:    input.RequestID,
		Warnings:     warnings,
	}, nil
}

// classifyFillError separates bad job values from broken templates.
func (h *Handler) classifyFillError(workflowID string, err error) error {
	var missing *workflow.MissingValueError
	var malformed *workflow.MalformedValueError
	if stderrors.As(err, &missing) || stderrors.As(err, &malformed) {
		return errors.NewInvalidWorkflowInputError(err.Error())
	}
	return errors.NewTemplateSubstitutionError(workflowID, err)
}

func (h *Handler) loadRegistry() (*registry.WorkflowRegistry, error) {
	h.mu.RLock()
	if h.cache != nil && time.Since(h.cache.loadedAt) < h.config.CacheTTL {
		reg := h.cache.registry
		h.mu.RUnlock()
		return reg, nil
	}
	h.mu.RUnlock()

	reg, err := registry.LoadRegistry(h.config.RegistryPath)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.cache = &registryCacheEntry{registry: reg, loadedAt: time.Now()}
	h.mu.Unlock()

	h.logger.Debug("workflow registry loaded", map[string]interface{}{
		"path":      h.config.RegistryPath,
		"workflows": len(reg.Workflows),
	})
	return reg, nil
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
