package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/pipeline"
)

var fixedNow = time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewPostgresStore(db, logger.NewTestLogger(t))
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func createTestApplication() pipeline.Application {
	return pipeline.Application{
		ID:           "app-001",
		CustomerName: "Asha Rao",
		Mobile:       "9876543210",
		PAN:          "abcde1234f",
		Aadhaar:      "1234 5678 9012",
		LoanAmount:   500000,
		Tenure:       36,
		Income:       75000,
	}
}

func createTestResult() pipeline.Result {
	return pipeline.Result{
		ApplicationID: "app-001",
		Status:        pipeline.StatusSanctioned,
		FinalDecision: pipeline.DecisionApprove,
		Verdicts: []pipeline.Verdict{
			{
				EvaluatorID: "AgentAlpha",
				Kind:        "sales_validation",
				Score:       100,
				Decision:    pipeline.DecisionApprove,
				Confidence:  95,
				Explanation: "Application validated successfully",
				Detail:      map[string]interface{}{"tenure_months": 36},
				Duration:    3 * time.Millisecond,
			},
			{
				EvaluatorID: "AgentZeta",
				Kind:        "sanction_decision",
				Score:       100,
				Decision:    pipeline.DecisionApprove,
				Confidence:  95,
				Explanation: "All checks passed",
			},
		},
		Document: &pipeline.DocumentRef{URL: "/documents/app-001.txt"},
	}
}

func TestCreateApplication_Success(t *testing.T) {
	s, mock := newTestStore(t)
	app := createTestApplication()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs("app-001", "Asha Rao", "9876543210", "ABCDE1234F", "XXXX-XXXX-9012",
			int64(500000), 36, int64(75000), "CREATED", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO status_history`).
		WithArgs("app-001", nil, "CREATED", "application created", SystemActor, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := s.CreateApplication(context.Background(), app)

	require.NoError(t, err)
	assert.Equal(t, "CREATED", rec.Status)
	assert.Equal(t, "ABCDE1234F", rec.PAN)
	assert.Equal(t, "XXXX-XXXX-9012", rec.AadhaarMasked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateApplication_Duplicate(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := s.CreateApplication(context.Background(), createTestApplication())

	assert.ErrorIs(t, err, ErrDuplicateApplication)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateApplication_InsertFailureRollsBack(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO applications`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := s.CreateApplication(context.Background(), createTestApplication())

	assert.ErrorIs(t, err, ErrDatabase)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_WritesApplicationVerdictsAndHistory(t *testing.T) {
	s, mock := newTestStore(t)
	result := createTestResult()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM applications`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("CREATED"))
	mock.ExpectExec(`INSERT INTO applications .* ON CONFLICT`).
		WithArgs("app-001", "SANCTIONED", "APPROVE", "/documents/app-001.txt", nil, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO agent_evaluations`).
		WithArgs("app-001", "AgentAlpha", "sales_validation", 100, "APPROVE", 95,
			"Application validated successfully", []byte(`{"tenure_months":36}`), int64(3), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO agent_evaluations`).
		WithArgs("app-001", "AgentZeta", "sanction_decision", 100, "APPROVE", 95,
			"All checks passed", []byte(`null`), int64(0), fixedNow).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO status_history`).
		WithArgs("app-001", "CREATED", "SANCTIONED", "pipeline decision: APPROVE", SystemActor, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Save(context.Background(), "app-001", result)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_UnknownApplicationIsInserted(t *testing.T) {
	s, mock := newTestStore(t)
	result := pipeline.Result{
		Status:       pipeline.StatusFail,
		ErrorMessage: "Sanction letter generation failed: disk full",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM applications`).
		WithArgs("app-404").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs("app-404", "FAIL", nil, nil, "Sanction letter generation failed: disk full", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO status_history`).
		WithArgs("app-404", nil, "FAIL", "Sanction letter generation failed: disk full", SystemActor, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Save(context.Background(), "app-404", result)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_EvaluationInsertFailureRollsBack(t *testing.T) {
	s, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM applications`).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PROCESSING"))
	mock.ExpectExec(`INSERT INTO applications`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO agent_evaluations`).WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	err := s.Save(context.Background(), "app-001", createTestResult())

	assert.ErrorIs(t, err, ErrDatabase)
	assert.Contains(t, err.Error(), "AgentAlpha")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatus(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectQuery(`SELECT id, status, final_decision`).
			WithArgs("app-001").
			WillReturnRows(sqlmock.NewRows([]string{"id", "status", "final_decision", "document_url", "error_message", "updated_at"}).
				AddRow("app-001", "SANCTIONED", "APPROVE", "/documents/app-001.txt", nil, fixedNow))

		st, err := s.GetStatus(context.Background(), "app-001")

		require.NoError(t, err)
		assert.Equal(t, "SANCTIONED", st.Status)
		assert.Equal(t, "APPROVE", st.FinalDecision)
		assert.Equal(t, "/documents/app-001.txt", st.DocumentURL)
		assert.Empty(t, st.ErrorMessage)
		assert.Equal(t, fixedNow, st.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectQuery(`SELECT id, status, final_decision`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id", "status", "final_decision", "document_url", "error_message", "updated_at"}))

		_, err := s.GetStatus(context.Background(), "missing")

		assert.ErrorIs(t, err, ErrApplicationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectQuery(`SELECT id, status, final_decision`).WillReturnError(errors.New("timeout"))

		_, err := s.GetStatus(context.Background(), "app-001")

		assert.ErrorIs(t, err, ErrDatabase)
	})
}

func TestEvaluations(t *testing.T) {
	s, mock := newTestStore(t)
	cols := []string{"agent_name", "agent_type", "score", "decision", "confidence",
		"explanation_summary", "detailed_analysis", "processing_time_ms", "created_at"}
	mock.ExpectQuery(`FROM agent_evaluations`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("AgentAlpha", "sales_validation", 100, "APPROVE", 95, "ok", []byte(`{"tenure_months":36}`), int64(3), fixedNow).
			AddRow("AgentZeta", "sanction_decision", 88, "APPROVE", 88, "fine", []byte(`not json`), int64(0), fixedNow))

	recs, err := s.Evaluations(context.Background(), "app-001")

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "AgentAlpha", recs[0].AgentName)
	assert.Equal(t, 36.0, recs[0].DetailedAnalysis["tenure_months"])
	assert.Equal(t, int64(3), recs[0].ProcessingTimeMs)
	assert.Nil(t, recs[1].DetailedAnalysis)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideStatus(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM applications`).
			WithArgs("app-001").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("MANUAL_REVIEW"))
		mock.ExpectExec(`UPDATE applications SET status`).
			WithArgs("SANCTIONED", fixedNow, "app-001").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO status_history`).
			WithArgs("app-001", "MANUAL_REVIEW", "SANCTIONED", "documents verified in branch", "officer-7", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		change, err := s.OverrideStatus(context.Background(), "app-001", pipeline.StatusSanctioned,
			"documents verified in branch", "officer-7")

		require.NoError(t, err)
		assert.Equal(t, "MANUAL_REVIEW", change.OldStatus)
		assert.Equal(t, "SANCTIONED", change.NewStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid status", func(t *testing.T) {
		s, mock := newTestStore(t)

		_, err := s.OverrideStatus(context.Background(), "app-001", pipeline.RunStatus("APPROVED"), "", "")

		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown application", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM applications`).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		mock.ExpectRollback()

		_, err := s.OverrideStatus(context.Background(), "missing", pipeline.StatusFail, "", "")

		assert.ErrorIs(t, err, ErrApplicationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("default actor", func(t *testing.T) {
		s, mock := newTestStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM applications`).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("FAIL"))
		mock.ExpectExec(`UPDATE applications SET status`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO status_history`).
			WithArgs("app-001", "FAIL", "CREATED", nil, "admin", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		change, err := s.OverrideStatus(context.Background(), "app-001", pipeline.StatusCreated, "", "")

		require.NoError(t, err)
		assert.Equal(t, "admin", change.ChangedBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
