package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/events"
	"github.com/veridoc/veridoc-backend/internal/analysis/pipeline"
	"github.com/veridoc/veridoc-backend/internal/analysis/reasoner"
	"github.com/veridoc/veridoc-backend/internal/analysis/storage"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// Progress step identifiers emitted to the session during an analysis
const (
	StepInit             = "INIT"
	StepPipelineSelected = "PIPELINE_SELECTED"
	StepAnalysisRunning  = "ANALYSIS_RUNNING"
	StepAnalysisComplete = "ANALYSIS_COMPLETE"
	StepUpload           = "UPLOAD"
	StepReasoning        = "REASONING"
	StepComplete         = "COMPLETE"
)

// ObjectStore persists the analyzed document durably, invoked only after
// local analysis completes
type ObjectStore interface {
	Put(ctx context.Context, localPath, key string) (string, error)
}

// AuditWriter records completed analyses
type AuditWriter interface {
	Create(ctx context.Context, audit *domain.AnalysisAudit) error
}

// Service orchestrates one analysis per document request: route the file,
// run the selected pipeline, persist the document, obtain the narrative
// reasoning and fuse the final trust score.
type Service struct {
	router     *pipeline.Router
	structural *pipeline.StructuralAnalyzer
	visual     *pipeline.VisualAnalyzer
	crypto     *pipeline.CryptographicAnalyzer
	fusion     *pipeline.FusionEngine
	reasoner   reasoner.Reasoner
	store      ObjectStore
	tasks      *storage.TaskStore
	audit      AuditWriter
	events     *events.AnalysisEventPublisher
	uploadDir  string
	log        *logger.Logger
}

// NewService creates the analysis orchestrator
func NewService(
	router *pipeline.Router,
	structural *pipeline.StructuralAnalyzer,
	visual *pipeline.VisualAnalyzer,
	crypto *pipeline.CryptographicAnalyzer,
	fusion *pipeline.FusionEngine,
	rsn reasoner.Reasoner,
	store ObjectStore,
	tasks *storage.TaskStore,
	audit AuditWriter,
	eventPublisher *events.AnalysisEventPublisher,
	uploadDir string,
	log *logger.Logger,
) *Service {
	return &Service{
		router:     router,
		structural: structural,
		visual:     visual,
		crypto:     crypto,
		fusion:     fusion,
		reasoner:   rsn,
		store:      store,
		tasks:      tasks,
		audit:      audit,
		events:     eventPublisher,
		uploadDir:  uploadDir,
		log:        log.WithComponent("analysis_service"),
	}
}

// CreateTask persists the uploaded document under a fresh task ID and
// registers the pending task. The stored filename is derived from the task
// ID, never from user input.
func (s *Service) CreateTask(ctx context.Context, filename, mimeType string, src io.Reader) (*domain.AnalysisTask, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, apperrors.IO(err, "create upload directory")
	}

	taskID := uuid.New().String()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = "bin"
	}
	filePath := filepath.Join(s.uploadDir, fmt.Sprintf("%s.%s", taskID, ext))

	dst, err := os.Create(filePath)
	if err != nil {
		return nil, apperrors.IO(err, "create upload file")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(filePath)
		return nil, apperrors.IO(err, "write upload file")
	}

	task := &domain.AnalysisTask{
		Request: domain.AnalysisRequest{
			TaskID:     taskID,
			FilePath:   filePath,
			Filename:   filename,
			MIMEType:   mimeType,
			UploadedAt: time.Now(),
		},
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	s.tasks.Store(task)

	s.log.Info().
		Str("task_id", taskID).
		Str("filename", filename).
		Msg("analysis task created")

	return task, nil
}

// GetTask retrieves a task by ID
func (s *Service) GetTask(taskID string) *domain.AnalysisTask {
	return s.tasks.Get(taskID)
}

// Analyze runs the full orchestration for a registered task. The work runs
// on a detached context: a session disconnect stops progress delivery but
// never cancels in-flight analysis. Only an unreadable input file is fatal;
// every deeper failure degrades into report entries.
func (s *Service) Analyze(ctx context.Context, taskID string, progress pipeline.Progress) (*domain.AnalysisResult, error) {
	task := s.tasks.Get(taskID)
	if task == nil {
		return nil, apperrors.NotFound("analysis task")
	}
	req := task.Request

	// Detached from the session: dispatched work runs to completion even
	// if the client goes away.
	bgCtx := context.Background()
	log := s.log.WithTaskID(taskID)
	start := time.Now()

	s.tasks.Update(taskID, func(t *domain.AnalysisTask) {
		t.Status = domain.StatusRunning
	})

	progress.Notify(StepInit, "Starting analysis...")
	progress.Notify(StepInit, "Determining appropriate forensic pipeline...")

	pipelineType := s.router.DeterminePipeline(bgCtx, req.FilePath, req.Filename)
	progress.Notify(StepPipelineSelected, fmt.Sprintf("Selected pipeline: %s", pipelineType))
	log = log.WithPipeline(string(pipelineType))

	progress.Notify(StepAnalysisRunning, fmt.Sprintf("Running %s analysis...", pipelineType))
	report, err := s.runPipeline(bgCtx, pipelineType, req.FilePath, progress)
	if err != nil {
		s.failTask(bgCtx, task, err)
		return nil, err
	}
	progress.Notify(StepAnalysisComplete, "Pipeline analysis complete.")

	result := &domain.AnalysisResult{
		TaskID:   taskID,
		Filename: req.Filename,
		Pipeline: pipelineType,
		Report:   report,
	}

	// Durable storage happens only after local analysis has finished with
	// the file.
	progress.Notify(StepUpload, "Uploading to secure storage...")
	documentURL, err := s.store.Put(bgCtx, req.FilePath, filepath.Base(req.FilePath))
	if err != nil {
		log.Warn().Err(err).Msg("object store upload failed, skipping reasoning")
		report.AddWarning(fmt.Sprintf("Durable storage failed: %v", err))
	} else {
		result.DocumentURL = documentURL

		progress.Notify(StepReasoning, "Engaging narrative reasoning agent...")
		reasoning, err := s.reasoner.Reason(bgCtx, documentURL, req.MIMEType, report)
		if err != nil {
			log.Warn().Err(err).Msg("reasoning failed")
			result.Reasoning = &domain.Reasoning{Error: fmt.Sprintf("Reasoning layer failed: %v", err)}
		} else {
			result.Reasoning = reasoning

			trust, err := s.fusion.FuseReport(reasoning.AuthenticityScore, report)
			if err != nil {
				log.Warn().Err(err).Msg("score fusion failed")
				report.AddWarning(fmt.Sprintf("Score fusion failed: %v", err))
			} else {
				result.Trust = &trust
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()

	s.tasks.Update(taskID, func(t *domain.AnalysisTask) {
		t.Status = domain.StatusCompleted
		t.Result = result
	})

	// Audit row and event are async and best-effort.
	go s.recordCompletion(bgCtx, result)

	log.Info().
		Float64("risk_score", report.Score).
		Int("flags", len(report.Flags)).
		Int64("duration_ms", result.DurationMs).
		Msg("analysis completed")

	return result, nil
}

func (s *Service) runPipeline(ctx context.Context, pipelineType domain.PipelineType, filePath string, progress pipeline.Progress) (*domain.ForensicReport, error) {
	switch pipelineType {
	case domain.PipelineVisual:
		return s.visual.Analyze(ctx, filePath, progress), nil
	case domain.PipelineCryptographic:
		return s.crypto.Analyze(ctx, filePath, progress)
	default:
		return s.structural.Analyze(ctx, filePath, progress)
	}
}

func (s *Service) failTask(ctx context.Context, task *domain.AnalysisTask, err error) {
	taskID := task.Request.TaskID
	s.tasks.Update(taskID, func(t *domain.AnalysisTask) {
		t.Status = domain.StatusFailed
		t.Error = err.Error()
	})
	s.events.PublishAnalysisFailed(ctx, taskID, task.Request.Filename, err.Error())
	s.log.Error().Err(err).Str("task_id", taskID).Msg("analysis failed")
}

func (s *Service) recordCompletion(ctx context.Context, result *domain.AnalysisResult) {
	audit := &domain.AnalysisAudit{
		TaskID:      result.TaskID,
		Filename:    result.Filename,
		Pipeline:    result.Pipeline,
		DurationMs:  result.DurationMs,
		DocumentURL: result.DocumentURL,
	}
	if result.Report != nil {
		audit.RiskScore = result.Report.Score
		audit.FlagCount = len(result.Report.Flags)
	}
	if result.Trust != nil {
		audit.TrustScore = result.Trust.Score
	}

	if err := s.audit.Create(ctx, audit); err != nil {
		s.log.Error().Err(err).Str("task_id", result.TaskID).Msg("failed to write analysis audit row")
	}

	s.events.PublishAnalysisCompleted(ctx, result)
}
