// internal/workers/loan/get-application-status/handler_test.go
package getapplicationstatus

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
	"loan-workers/internal/store"
)

var updatedAt = time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)

func createTestConfig() *Config {
	return LoadConfig()
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock, *miniredis.Miniredis) {
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
	pg := store.NewPostgresStore(db, log)
	reader := store.NewCachedStatusReader(pg, store.NewStatusCache(rdb, time.Minute, "loan"), log)
	return NewHandler(createTestConfig(), reader, pg, log), mock, mr
}

func statusRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "status", "final_decision", "document_url", "error_message", "updated_at"}).
		AddRow("app-001", "SANCTIONED", "APPROVE", "/documents/app-001.txt", nil, updatedAt)
}

func TestHandler_Execute_CacheAside(t *testing.T) {
	handler, mock, _ := newTestHandler(t)
	mock.ExpectQuery(`SELECT id, status, final_decision`).
		WithArgs("app-001").
		WillReturnRows(statusRows())

	first, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "SANCTIONED", first.Status)
	assert.Equal(t, "APPROVE", first.FinalDecision)
	assert.Equal(t, "/documents/app-001.txt", first.DocumentURL)
	assert.Equal(t, "2026-03-04T10:30:00Z", first.UpdatedAt)

	second, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Status, second.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_IncludeEvaluations(t *testing.T) {
	handler, mock, _ := newTestHandler(t)
	mock.ExpectQuery(`SELECT id, status, final_decision`).
		WithArgs("app-001").
		WillReturnRows(statusRows())
	mock.ExpectQuery(`SELECT agent_name`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{
			"agent_name", "agent_type", "score", "decision", "confidence",
			"explanation_summary", "detailed_analysis", "processing_time_ms", "created_at",
		}).
			AddRow("AgentAlpha", "sales_validation", 100, "APPROVE", 95, "ok", []byte(`{"tenure_months":36}`), 3, updatedAt).
			AddRow("AgentZeta", "sanction_decision", 88, "APPROVE", 88, "approved", nil, 1, updatedAt))

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001", IncludeEvaluations: true})

	require.NoError(t, err)
	require.Len(t, output.Evaluations, 2)
	assert.Equal(t, "AgentAlpha", output.Evaluations[0].AgentName)
	assert.Equal(t, float64(36), output.Evaluations[0].DetailedAnalysis["tenure_months"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		setup    func(mock sqlmock.Sqlmock)
		wantCode errors.ErrorCode
	}{
		{
			name:     "missing id",
			input:    &Input{ApplicationID: "  "},
			setup:    func(sqlmock.Sqlmock) {},
			wantCode: errors.ErrCodeApplicationValidationFailed,
		},
		{
			name:  "unknown application",
			input: &Input{ApplicationID: "app-404"},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, status`).
					WithArgs("app-404").
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantCode: errors.ErrCodeApplicationNotFound,
		},
		{
			name:  "query failure",
			input: &Input{ApplicationID: "app-001"},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, status`).
					WithArgs("app-001").
					WillReturnError(stderrors.New("connection refused"))
			},
			wantCode: errors.ErrCodeQueryExecutionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mock, _ := newTestHandler(t)
			tt.setup(mock)

			output, err := handler.Execute(context.Background(), tt.input)

			assert.Nil(t, output)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
