// internal/workers/generation/submit-generation/handler.go
package submitgeneration

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"limn-workers/internal/common/errors"
	httpclient "limn-workers/internal/common/http"
	"limn-workers/internal/common/logger"
	"limn-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "submit-generation"

const defaultJobStatus = "IN_QUEUE"

type Handler struct {
	config       *Config
	client       *httpclient.Client
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	client := httpclient.NewClient(config.RequestTimeout,
		httpclient.WithRetries(config.MaxRetries),
		httpclient.WithBaseDelay(config.RetryDelay),
	)
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		client:       client,
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

// Execute posts the filled workflow, with the user id merged in, to the
// backend endpoint and returns the backend's job id.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	endpoint := strings.Trim(input.Endpoint, "/")
	if endpoint == "" {
		return nil, errors.NewInvalidWorkflowInputError("endpoint is required")
	}

	payload, err := buildPayload(input.Workflow, input.UserID)
	if err != nil {
		return nil, errors.NewInvalidWorkflowInputError(err.Error())
	}

	requestID := input.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	headers := map[string]string{"X-Request-ID": requestID}
	if h.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + h.config.APIKey
	}

	url := strings.TrimRight(h.config.BaseURL, "/") + "/" + endpoint
	start := time.Now()
	resp, err := h.client.PostJSON(ctx, url, headers, payload)
	metrics.BackendSubmitDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, h.classifySubmitError(endpoint, err)
	}

	var body backendResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.ID == "" {
		metrics.BackendSubmissions.WithLabelValues(endpoint, "rejected").Inc()
		return nil, errors.NewBackendRejectedError(endpoint, resp.StatusCode, string(resp.Body))
	}
	if body.Status == "" {
		body.Status = defaultJobStatus
	}
	metrics.BackendSubmissions.WithLabelValues(endpoint, "accepted").Inc()

	h.logger.Info("generation submitted", map[string]interface{}{
		"endpoint":     endpoint,
		"workflowName": input.WorkflowName,
		"backendJobId": body.ID,
		"status":       body.Status,
		"requestId":    requestID,
	})

	return &Output{JobID: body.ID, Status: body.Status, RequestID: requestID}, nil
}

// buildPayload merges userId into the workflow object.
func buildPayload(workflow json.RawMessage, userID string) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(workflow)) == 0 {
		return nil, fmt.Errorf("workflow is required")
	}

	dec := json.NewDecoder(bytes.NewReader(workflow))
	dec.UseNumber()

	var params map[string]interface{}
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("workflow must be a JSON object: %w", err)
	}
	if params == nil {
		return nil, fmt.Errorf("workflow must be a JSON object")
	}
	if userID != "" {
		params["userId"] = userID
	}
	return params, nil
}

func (h *Handler) classifySubmitError(endpoint string, err error) error {
	var statusErr *httpclient.StatusError
	switch {
	case stderrors.Is(err, httpclient.ErrRequestTimeout):
		metrics.BackendSubmissions.WithLabelValues(endpoint, "timeout").Inc()
		return errors.NewBackendTimeoutError(endpoint)
	case stderrors.As(err, &statusErr) && !statusErr.Retryable():
		metrics.BackendSubmissions.WithLabelValues(endpoint, "rejected").Inc()
		return errors.NewBackendRejectedError(endpoint, statusErr.StatusCode, statusErr.Body)
	case stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests:
		metrics.BackendSubmissions.WithLabelValues(endpoint, "throttled").Inc()
		return errors.NewBackendSubmitFailedError(endpoint, err)
	default:
		metrics.BackendSubmissions.WithLabelValues(endpoint, "failed").Inc()
		return errors.NewBackendSubmitFailedError(endpoint, err)
	}
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
