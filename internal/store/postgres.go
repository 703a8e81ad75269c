// Package store persists applications, verdicts and status history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/models"
	"loan-workers/internal/pipeline"
)

var (
	ErrApplicationNotFound  = errors.New("APPLICATION_NOT_FOUND")
	ErrDuplicateApplication = errors.New("DUPLICATE_APPLICATION")
	ErrInvalidStatus        = errors.New("INVALID_STATUS")
	ErrDatabase             = errors.New("DATABASE_ERROR")
)

// SystemActor is recorded as changed_by for pipeline-driven transitions.
const SystemActor = "system"

// PostgresStore keeps the applications, agent_evaluations and status_history
// tables.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres-store"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateApplication inserts a new application in CREATED state.
func (s *PostgresStore) CreateApplication(ctx context.Context, app pipeline.Application) (*models.ApplicationRecord, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, app.ID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: duplicate check failed: %v", ErrDatabase, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateApplication, app.ID)
	}

	now := s.now()
	rec := &models.ApplicationRecord{
		ID:            app.ID,
		CustomerName:  app.CustomerName,
		Mobile:        app.Mobile,
		PAN:           strings.ToUpper(app.PAN),
		AadhaarMasked: maskAadhaar(app.Aadhaar),
		LoanAmount:    app.LoanAmount,
		Tenure:        app.Tenure,
		Income:        app.Income,
		Status:        string(pipeline.StatusCreated),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO applications (
				id, customer_name, mobile, pan, aadhaar_masked,
				loan_amount, tenure, income, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
			rec.ID, rec.CustomerName, rec.Mobile, rec.PAN, rec.AadhaarMasked,
			rec.LoanAmount, rec.Tenure, rec.Income, rec.Status, now,
		); err != nil {
			return fmt.Errorf("insert application: %w", err)
		}
		return insertHistory(ctx, tx, rec.ID, "", rec.Status, "application created", SystemActor, now)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	s.logger.Info("application created", map[string]interface{}{"applicationId": rec.ID})
	return rec, nil
}

// Save records a terminal pipeline result: the application row is upserted,
// each verdict becomes an agent_evaluations row and the transition is
// appended to status_history.
func (s *PostgresStore) Save(ctx context.Context, applicationID string, result pipeline.Result) error {
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := lockStatus(ctx, tx, applicationID)
		if err != nil && !errors.Is(err, ErrApplicationNotFound) {
			return err
		}

		var documentURL string
		if result.Document != nil {
			documentURL = result.Document.URL
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO applications (id, status, final_decision, document_url, error_message, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				final_decision = EXCLUDED.final_decision,
				document_url = EXCLUDED.document_url,
				error_message = EXCLUDED.error_message,
				updated_at = EXCLUDED.updated_at`,
			applicationID,
			string(result.Status),
			nullString(string(result.FinalDecision)),
			nullString(documentURL),
			nullString(result.ErrorMessage),
			now,
		); err != nil {
			return fmt.Errorf("upsert application: %w", err)
		}

		for _, v := range result.Verdicts {
			detail, err := json.Marshal(v.Detail)
			if err != nil {
				detail = []byte("{}")
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO agent_evaluations (
					application_id, agent_name, agent_type, score, decision, confidence,
					explanation_summary, detailed_analysis, processing_time_ms, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				applicationID, v.EvaluatorID, v.Kind, v.Score, string(v.Decision), v.Confidence,
				v.Explanation, detail, v.Duration.Milliseconds(), now,
			); err != nil {
				return fmt.Errorf("insert evaluation %s: %w", v.EvaluatorID, err)
			}
		}

		reason := result.ErrorMessage
		if reason == "" && result.FinalDecision != "" {
			reason = "pipeline decision: " + string(result.FinalDecision)
		}
		return insertHistory(ctx, tx, applicationID, old, string(result.Status), reason, SystemActor, now)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	s.logger.Debug("result persisted", map[string]interface{}{
		"applicationId": applicationID,
		"status":        result.Status,
		"verdicts":      len(result.Verdicts),
	})
	return nil
}

// GetStatus returns the current status of an application.
func (s *PostgresStore) GetStatus(ctx context.Context, applicationID string) (*models.ApplicationStatus, error) {
	var st models.ApplicationStatus
	var decision, docURL, errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, final_decision, document_url, error_message, updated_at
		FROM applications WHERE id = $1`, applicationID).
		Scan(&st.ApplicationID, &st.Status, &decision, &docURL, &errMsg, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	st.FinalDecision = decision.String
	st.DocumentURL = docURL.String
	st.ErrorMessage = errMsg.String
	return &st, nil
}

// Evaluations returns the stored verdicts of an application, oldest first.
func (s *PostgresStore) Evaluations(ctx context.Context, applicationID string) ([]models.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_name, agent_type, score, decision, confidence,
			explanation_summary, detailed_analysis, processing_time_ms, created_at
		FROM agent_evaluations
		WHERE application_id = $1
		ORDER BY created_at, id`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []models.EvaluationRecord
	for rows.Next() {
		rec := models.EvaluationRecord{ApplicationID: applicationID}
		var detail []byte
		if err := rows.Scan(&rec.AgentName, &rec.AgentType, &rec.Score, &rec.Decision, &rec.Confidence,
			&rec.ExplanationSummary, &detail, &rec.ProcessingTimeMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan evaluation: %v", ErrDatabase, err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &rec.DetailedAnalysis); err != nil {
				s.logger.Warn("unreadable detailed_analysis", map[string]interface{}{
					"applicationId": applicationID,
					"agent":         rec.AgentName,
					"error":         err.Error(),
				})
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return out, nil
}

// OverrideStatus sets a status by hand and records who did it and why. It
// returns the transition written to status_history.
func (s *PostgresStore) OverrideStatus(ctx context.Context, applicationID string, status pipeline.RunStatus, reason, changedBy string) (*models.StatusChange, error) {
	if _, ok := pipeline.ParseStatus(string(status)); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if changedBy == "" {
		changedBy = "admin"
	}

	now := s.now()
	change := &models.StatusChange{
		ApplicationID: applicationID,
		NewStatus:     string(status),
		Reason:        reason,
		ChangedBy:     changedBy,
		CreatedAt:     now,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := lockStatus(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		change.OldStatus = old
		if _, err := tx.ExecContext(ctx, `
			UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`,
			string(status), now, applicationID,
		); err != nil {
			return fmt.Errorf("%w: update status: %v", ErrDatabase, err)
		}
		if err := insertHistory(ctx, tx, applicationID, old, string(status), reason, changedBy, now); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrApplicationNotFound) || errors.Is(err, ErrDatabase) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	s.logger.Info("status overridden", map[string]interface{}{
		"applicationId": applicationID,
		"oldStatus":     change.OldStatus,
		"newStatus":     change.NewStatus,
		"changedBy":     changedBy,
	})
	return change, nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func lockStatus(ctx context.Context, tx *sql.Tx, applicationID string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, `
		SELECT status FROM applications WHERE id = $1 FOR UPDATE`, applicationID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrApplicationNotFound, applicationID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: lock application: %v", ErrDatabase, err)
	}
	return status, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, applicationID, oldStatus, newStatus, reason, changedBy string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO status_history (application_id, old_status, new_status, reason, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		applicationID, nullString(oldStatus), newStatus, nullString(reason), changedBy, at,
	); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func maskAadhaar(aadhaar string) string {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(aadhaar)
	if len(digits) < 4 {
		return ""
	}
	return "XXXX-XXXX-" + digits[len(digits)-4:]
}
