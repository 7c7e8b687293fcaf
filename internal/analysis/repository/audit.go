package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/pkg/database"
)

// AuditRepository persists analysis audit rows
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit row
func (r *AuditRepository) Create(ctx context.Context, audit *domain.AnalysisAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}

	query := `
		INSERT INTO analysis_audit (id, task_id, filename, pipeline, risk_score, trust_score,
		                            flag_count, duration_ms, document_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		audit.ID,
		audit.TaskID,
		audit.Filename,
		string(audit.Pipeline),
		audit.RiskScore,
		audit.TrustScore,
		audit.FlagCount,
		audit.DurationMs,
		audit.DocumentURL,
	).Scan(&audit.CreatedAt)
}

// List returns the most recent audit rows, newest first
func (r *AuditRepository) List(ctx context.Context, limit int) ([]*domain.AnalysisAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, task_id, filename, pipeline, risk_score, trust_score,
		       flag_count, duration_ms, document_url, created_at
		FROM analysis_audit
		ORDER BY created_at DESC
		LIMIT $1
	`

	var audits []*domain.AnalysisAudit
	if err := r.db.SelectContext(ctx, &audits, query, limit); err != nil {
		return nil, err
	}
	return audits, nil
}

// GetByTaskID returns the audit row for one task, if any
func (r *AuditRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.AnalysisAudit, error) {
	query := `
		SELECT id, task_id, filename, pipeline, risk_score, trust_score,
		       flag_count, duration_ms, document_url, created_at
		FROM analysis_audit
		WHERE task_id = $1
	`

	var audit domain.AnalysisAudit
	if err := r.db.GetContext(ctx, &audit, query, taskID); err != nil {
		return nil, err
	}
	return &audit, nil
}
