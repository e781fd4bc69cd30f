// internal/workers/generation/record-generation/handler.go
package recordgeneration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"limn-workers/internal/common/errors"
	"limn-workers/internal/common/logger"
	"limn-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "record-generation"

const defaultStatus = "IN_QUEUE"

const insertGeneration = `
		INSERT INTO generations (
			id, user_id, workflow_name, job_id, status, settings, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO NOTHING`

type Handler struct {
	config       *Config
	db           *sql.DB
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
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

// Execute stores one generation in the user's history. A job id that is
// already recorded is left as is and reported with Recorded false.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var missing []string
	if input.UserID == "" {
		missing = append(missing, "userId")
	}
	if input.WorkflowName == "" {
		missing = append(missing, "workflowName")
	}
	if input.JobID == "" {
		missing = append(missing, "jobId")
	}
	if len(missing) > 0 {
		return nil, errors.NewInvalidWorkflowInputError("missing " + strings.Join(missing, ", "))
	}

	settings := input.Settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, errors.NewInvalidWorkflowInputError(fmt.Sprintf("settings: %v", err))
	}

	status := input.Status
	if status == "" {
		status = defaultStatus
	}

	id := uuid.New().String()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	result, err := h.db.ExecContext(ctx, insertGeneration,
		id,
		input.UserID,
		input.WorkflowName,
		input.JobID,
		status,
		settingsJSON,
		createdAt,
	)
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}
	if rows == 0 {
		h.logger.Info("generation already recorded", map[string]interface{}{"jobId": input.JobID})
		return &Output{Recorded: false}, nil
	}

	h.logger.Info("generation recorded", map[string]interface{}{
		"generationId": id,
		"jobId":        input.JobID,
		"workflowName": input.WorkflowName,
	})
	return &Output{GenerationID: id, Recorded: true, CreatedAt: createdAt}, nil
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
