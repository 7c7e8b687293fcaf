package service_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc-backend/internal/analysis/document"
	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/events"
	"github.com/veridoc/veridoc-backend/internal/analysis/pipeline"
	"github.com/veridoc/veridoc-backend/internal/analysis/predictor"
	"github.com/veridoc/veridoc-backend/internal/analysis/service"
	"github.com/veridoc/veridoc-backend/internal/analysis/storage"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

type stubAccessor struct {
	doc *document.Document
	err error
}

func (s *stubAccessor) Open(ctx context.Context, path string) (*document.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.doc, nil
}

type stubValidator struct{}

func (s *stubValidator) Validate(ctx context.Context, path, field string, tc document.TrustContext) (domain.SignatureStatus, error) {
	return domain.SignatureStatus{Field: field, Valid: true, Intact: true, Trusted: true}, nil
}

type stubSegmentation struct{}

func (s *stubSegmentation) Predict(ctx context.Context, imagePath, heatmapPath string) (domain.SegmentationAnalysis, error) {
	return domain.SegmentationAnalysis{}, nil
}

type stubSensorTrust struct{}

func (s *stubSensorTrust) Predict(ctx context.Context, imagePath string) (predictor.SensorTrustPrediction, error) {
	return predictor.SensorTrustPrediction{TrustScore: 1.0, Verdict: "authentic"}, nil
}

type stubReasoner struct {
	reasoning *domain.Reasoning
	err       error
}

func (s *stubReasoner) Reason(ctx context.Context, documentURL, mimeType string, report *domain.ForensicReport) (*domain.Reasoning, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reasoning, nil
}

type stubObjectStore struct {
	url string
	err error
}

func (s *stubObjectStore) Put(ctx context.Context, localPath, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.url + key, nil
}

type stubAuditWriter struct {
	mu     sync.Mutex
	audits []*domain.AnalysisAudit
}

func (s *stubAuditWriter) Create(ctx context.Context, audit *domain.AnalysisAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, audit)
	return nil
}

func (s *stubAuditWriter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audits)
}

type capturingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (c *capturingPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, eventType)
	return nil
}

func (c *capturingPublisher) eventTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.types...)
}

type fixture struct {
	svc       *service.Service
	tasks     *storage.TaskStore
	audit     *stubAuditWriter
	publisher *capturingPublisher
}

func newFixture(t *testing.T, accessor document.Accessor, rsn *stubReasoner, store *stubObjectStore) *fixture {
	t.Helper()

	log := testLogger()
	cfg := pipeline.DefaultConfig()

	visual := pipeline.NewVisualAnalyzer(&stubSegmentation{}, &stubSensorTrust{}, cfg, log)
	structural := pipeline.NewStructuralAnalyzer(accessor, visual, cfg, log)
	crypto := pipeline.NewCryptographicAnalyzer(accessor, &stubValidator{}, document.TrustContext{}, log)
	router := pipeline.NewRouter(accessor, log)
	fusion := pipeline.NewFusionEngine(log)

	tasks := storage.NewTaskStore(time.Minute)
	audit := &stubAuditWriter{}
	publisher := &capturingPublisher{}
	eventPublisher := events.NewAnalysisEventPublisher(publisher, log)

	svc := service.NewService(router, structural, visual, crypto, fusion, rsn, store,
		tasks, audit, eventPublisher, t.TempDir(), log)

	return &fixture{svc: svc, tasks: tasks, audit: audit, publisher: publisher}
}

func TestService_CreateTask(t *testing.T) {
	f := newFixture(t, &stubAccessor{doc: &document.Document{}},
		&stubReasoner{}, &stubObjectStore{url: "https://store/"})

	task, err := f.svc.CreateTask(context.Background(), "statement.pdf", "application/pdf",
		strings.NewReader("%PDF-1.7\n%%EOF"))
	require.NoError(t, err)

	assert.NotEmpty(t, task.Request.TaskID)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.True(t, strings.HasSuffix(task.Request.FilePath, ".pdf"))

	data, err := os.ReadFile(task.Request.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7\n%%EOF", string(data))

	assert.NotNil(t, f.svc.GetTask(task.Request.TaskID))
}

func TestService_AnalyzeUnknownTask(t *testing.T) {
	f := newFixture(t, &stubAccessor{doc: &document.Document{}},
		&stubReasoner{}, &stubObjectStore{url: "https://store/"})

	_, err := f.svc.Analyze(context.Background(), "no-such-task", nil)
	assert.Error(t, err)
}

func TestService_AnalyzeStructuralEndToEnd(t *testing.T) {
	accessor := &stubAccessor{doc: &document.Document{
		Metadata: map[string]string{"/Producer": "Adobe Acrobat"},
	}}
	rsn := &stubReasoner{reasoning: &domain.Reasoning{AuthenticityScore: 60, Summary: "looks fine"}}
	f := newFixture(t, accessor, rsn, &stubObjectStore{url: "https://store/"})

	task, err := f.svc.CreateTask(context.Background(), "statement.pdf", "application/pdf",
		strings.NewReader("%PDF-1.7\n%%EOF"))
	require.NoError(t, err)

	var mu sync.Mutex
	var steps []string
	progress := func(step, message string) {
		mu.Lock()
		defer mu.Unlock()
		steps = append(steps, step)
	}

	result, err := f.svc.Analyze(context.Background(), task.Request.TaskID, progress)
	require.NoError(t, err)

	assert.Equal(t, domain.PipelineStructural, result.Pipeline)
	require.NotNil(t, result.Report)
	assert.Equal(t, 0.0, result.Report.Score)
	assert.NotEmpty(t, result.DocumentURL)
	require.NotNil(t, result.Reasoning)
	assert.Equal(t, 60.0, result.Reasoning.AuthenticityScore)

	// Non-visual fusion: round(60*0.6 + 100*0.4).
	require.NotNil(t, result.Trust)
	assert.Equal(t, 76, result.Trust.Score)

	stored := f.svc.GetTask(task.Request.TaskID)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	require.NotNil(t, stored.Result)

	mu.Lock()
	assert.Contains(t, steps, service.StepInit)
	assert.Contains(t, steps, service.StepPipelineSelected)
	assert.Contains(t, steps, service.StepAnalysisComplete)
	assert.Contains(t, steps, service.StepUpload)
	assert.Contains(t, steps, service.StepReasoning)
	mu.Unlock()

	// Audit row and completion event are written asynchronously.
	assert.Eventually(t, func() bool { return f.audit.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		types := f.publisher.eventTypes()
		return len(types) == 1 && types[0] == "analysis.completed"
	}, time.Second, 10*time.Millisecond)
}

// A reasoning failure degrades: the report survives, the trust score is
// simply absent.
func TestService_ReasonerFailureIsNonFatal(t *testing.T) {
	accessor := &stubAccessor{doc: &document.Document{
		Metadata: map[string]string{"/Producer": "Adobe Acrobat"},
	}}
	rsn := &stubReasoner{err: errors.New("model quota exceeded")}
	f := newFixture(t, accessor, rsn, &stubObjectStore{url: "https://store/"})

	task, err := f.svc.CreateTask(context.Background(), "doc.pdf", "application/pdf",
		strings.NewReader("%PDF-1.7\n%%EOF"))
	require.NoError(t, err)

	result, err := f.svc.Analyze(context.Background(), task.Request.TaskID, nil)
	require.NoError(t, err)

	require.NotNil(t, result.Reasoning)
	assert.Contains(t, result.Reasoning.Error, "quota")
	assert.Nil(t, result.Trust)
	assert.Equal(t, domain.StatusCompleted, f.svc.GetTask(task.Request.TaskID).Status)
}

func TestService_ObjectStoreFailureSkipsReasoning(t *testing.T) {
	accessor := &stubAccessor{doc: &document.Document{
		Metadata: map[string]string{"/Producer": "Adobe Acrobat"},
	}}
	f := newFixture(t, accessor, &stubReasoner{reasoning: &domain.Reasoning{AuthenticityScore: 90}},
		&stubObjectStore{err: errors.New("bucket unavailable")})

	task, err := f.svc.CreateTask(context.Background(), "doc.pdf", "application/pdf",
		strings.NewReader("%PDF-1.7\n%%EOF"))
	require.NoError(t, err)

	result, err := f.svc.Analyze(context.Background(), task.Request.TaskID, nil)
	require.NoError(t, err)

	assert.Empty(t, result.DocumentURL)
	assert.Nil(t, result.Reasoning)
	assert.Nil(t, result.Trust)
	require.NotEmpty(t, result.Report.Warnings)
	assert.Contains(t, result.Report.Warnings[0], "Durable storage failed")
}
