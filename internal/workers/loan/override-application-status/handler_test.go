// internal/workers/loan/override-application-status/handler_test.go
package overrideapplicationstatus

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/errors"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

func createTestConfig() *Config {
	return LoadConfig()
}

func createTestInput() *Input {
	return &Input{
		ApplicationID: "app-001",
		NewStatus:     "sanctioned",
		Reason:        "manual review cleared",
		ChangedBy:     "underwriter-7",
	}
}

type testDeps struct {
	mock  sqlmock.Sqlmock
	mr    *miniredis.Miniredis
	cache *store.StatusCache
}

func newTestHandler(t *testing.T) (*Handler, testDeps) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewTestLogger(t)
	cache := store.NewStatusCache(rdb, time.Minute, "loan")
	h := NewHandler(createTestConfig(), store.NewPostgresStore(db, log), cache, log)
	return h, testDeps{mock: mock, mr: mr, cache: cache}
}

func expectOverride(mock sqlmock.Sqlmock, oldStatus, newStatus, changedBy string) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(oldStatus))
	mock.ExpectExec(`UPDATE applications SET status`).
		WithArgs(newStatus, sqlmock.AnyArg(), "app-001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO status_history`).
		WithArgs("app-001", oldStatus, newStatus, sqlmock.AnyArg(), changedBy, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestHandler_Execute_Success(t *testing.T) {
	handler, deps := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, deps.cache.Set(ctx, &models.ApplicationStatus{ApplicationID: "app-001", Status: "MANUAL_REVIEW"}))
	require.True(t, deps.mr.Exists("loan:status:app-001"))

	expectOverride(deps.mock, "MANUAL_REVIEW", "SANCTIONED", "underwriter-7")

	output, err := handler.Execute(ctx, createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "app-001", output.ApplicationID)
	assert.Equal(t, "MANUAL_REVIEW", output.OldStatus)
	assert.Equal(t, "SANCTIONED", output.NewStatus)
	assert.Equal(t, "underwriter-7", output.ChangedBy)
	_, err = time.Parse(time.RFC3339, output.ChangedAt)
	assert.NoError(t, err)

	assert.False(t, deps.mr.Exists("loan:status:app-001"))
	assert.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestHandler_Execute_DefaultActor(t *testing.T) {
	handler, deps := newTestHandler(t)
	expectOverride(deps.mock, "FAIL", "MANUAL_REVIEW", "admin")

	input := createTestInput()
	input.NewStatus = "MANUAL_REVIEW"
	input.ChangedBy = ""
	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "admin", output.ChangedBy)
	assert.NoError(t, deps.mock.ExpectationsWereMet())
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(in *Input)
		setup         func(mock sqlmock.Sqlmock)
		wantCode      errors.ErrorCode
		wantRetryable bool
	}{
		{
			name:     "unknown status",
			mutate:   func(in *Input) { in.NewStatus = "APPROVED" },
			setup:    func(sqlmock.Sqlmock) {},
			wantCode: errors.ErrCodeInvalidStatus,
		},
		{
			name:     "missing application id",
			mutate:   func(in *Input) { in.ApplicationID = "" },
			setup:    func(sqlmock.Sqlmock) {},
			wantCode: errors.ErrCodeApplicationValidationFailed,
		},
		{
			name:   "unknown application",
			mutate: func(*Input) {},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT status FROM applications`).
					WithArgs("app-001").
					WillReturnRows(sqlmock.NewRows([]string{"status"}))
				mock.ExpectRollback()
			},
			wantCode: errors.ErrCodeApplicationNotFound,
		},
		{
			name:   "update fails",
			mutate: func(*Input) {},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT status FROM applications`).
					WithArgs("app-001").
					WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("FAIL"))
				mock.ExpectExec(`UPDATE applications SET status`).
					WillReturnError(stderrors.New("deadlock detected"))
				mock.ExpectRollback()
			},
			wantCode:      errors.ErrCodeDatabaseInsertFailed,
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, deps := newTestHandler(t)
			tt.setup(deps.mock)
			input := createTestInput()
			tt.mutate(input)

			output, err := handler.Execute(context.Background(), input)

			assert.Nil(t, output)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.wantRetryable, stdErr.Retryable)
			assert.NoError(t, deps.mock.ExpectationsWereMet())
		})
	}
}
