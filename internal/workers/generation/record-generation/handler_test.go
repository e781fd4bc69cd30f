// internal/workers/generation/record-generation/handler_test.go
package recordgeneration

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"limn-workers/internal/common/errors"
	"limn-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestInput() *Input {
	return &Input{
		UserID:       "user-42",
		WorkflowName: "deforum-limn",
		JobID:        "job-123",
		Status:       "IN_QUEUE",
		Settings:     map[string]interface{}{"prompts": map[string]interface{}{"0": "a cat"}},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO generations`).
		WithArgs(
			sqlmock.AnyArg(), // generation ID (UUID)
			"user-42",
			"deforum-limn",
			"job-123",
			"IN_QUEUE",
			[]byte(`{"prompts":{"0":"a cat"}}`),
			sqlmock.AnyArg(), // created_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.True(t, output.Recorded)
	assert.Len(t, output.GenerationID, 36)
	_, err = time.Parse(time.RFC3339, output.CreatedAt)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_Defaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`ON CONFLICT \(job_id\) DO NOTHING`).
		WithArgs(
			sqlmock.AnyArg(),
			"user-42",
			"deforum-limn",
			"job-123",
			defaultStatus,
			[]byte(`{}`),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	input := createTestInput()
	input.Status = ""
	input.Settings = nil

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_DuplicateJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO generations`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.False(t, output.Recorded)
	assert.Empty(t, output.GenerationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_InsertFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO generations`).
		WillReturnError(stderrors.New("connection reset by peer"))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), createTestInput())

	require.Error(t, err)
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeDatabaseInsertFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RowsAffectedError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO generations`).
		WillReturnResult(sqlmock.NewErrorResult(stderrors.New("driver does not report rows")))

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), createTestInput())

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDatabaseInsertFailed, errors.Normalize(err).Code)
}

func TestHandler_Execute_MissingFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := NewHandler(createTestConfig(), db, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{WorkflowName: "deforum-limn"})

	require.Error(t, err)
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeInvalidWorkflowInput, stdErr.Code)
	assert.Contains(t, stdErr.Details, "userId")
	assert.Contains(t, stdErr.Details, "jobId")
	assert.NotContains(t, stdErr.Details, "workflowName")
	assert.NoError(t, mock.ExpectationsWereMet())
}
