package domain

import "time"

// AnalysisAudit is the durable record of one completed analysis. Reports
// themselves are discarded with their task; only this summary row outlives
// the session.
type AnalysisAudit struct {
	ID          string       `db:"id" json:"id"`
	TaskID      string       `db:"task_id" json:"task_id"`
	Filename    string       `db:"filename" json:"filename"`
	Pipeline    PipelineType `db:"pipeline" json:"pipeline"`
	RiskScore   float64      `db:"risk_score" json:"risk_score"`
	TrustScore  int          `db:"trust_score" json:"trust_score"`
	FlagCount   int          `db:"flag_count" json:"flag_count"`
	DurationMs  int64        `db:"duration_ms" json:"duration_ms"`
	DocumentURL string       `db:"document_url" json:"document_url,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}
