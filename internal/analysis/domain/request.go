package domain

import "time"

// PipelineType identifies which forensic pipeline a document is routed to.
// It is chosen once per request and immutable afterward.
type PipelineType string

const (
	PipelineStructural    PipelineType = "structural"
	PipelineVisual        PipelineType = "visual"
	PipelineCryptographic PipelineType = "cryptographic"
)

// AnalysisRequest is the immutable description of one uploaded document.
// Created per upload, read-only thereafter.
type AnalysisRequest struct {
	TaskID     string    `json:"task_id"`
	FilePath   string    `json:"file_path"`
	Filename   string    `json:"filename"`
	MIMEType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TaskStatus represents the processing state of an analysis task
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// AnalysisTask tracks one analysis session from upload to final result
type AnalysisTask struct {
	Request   AnalysisRequest `json:"request"`
	Status    TaskStatus      `json:"status"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AnalysisResult is the complete outcome of one analysis session
type AnalysisResult struct {
	TaskID      string          `json:"task_id"`
	Filename    string          `json:"filename"`
	Pipeline    PipelineType    `json:"pipeline_used"`
	Report      *ForensicReport `json:"report"`
	Reasoning   *Reasoning      `json:"reasoning,omitempty"`
	Trust       *TrustScore     `json:"trust,omitempty"`
	DocumentURL string          `json:"document_url,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}
