package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/pipeline"
	"github.com/veridoc/veridoc-backend/internal/analysis/predictor"
)

func newVisualAnalyzer(seg *stubSegmentation, st *stubSensorTrust) *pipeline.VisualAnalyzer {
	return pipeline.NewVisualAnalyzer(seg, st, pipeline.DefaultConfig(), testLogger())
}

func TestVisualAnalyzer_CleanImage(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, "clean.png")

	seg := &stubSegmentation{result: domain.SegmentationAnalysis{IsTampered: false, ConfidenceScore: 0.05}}
	st := &stubSensorTrust{pred: predictor.SensorTrustPrediction{TrustScore: 0.9, Verdict: "authentic"}}

	report := newVisualAnalyzer(seg, st).Analyze(context.Background(), imgPath, nil)

	require.NotNil(t, report)
	assert.Len(t, report.Checks, 5)
	assert.Equal(t, 0.0, report.Score)
	assert.Empty(t, report.Flags)

	resave := report.Checks[domain.CheckResave]
	require.Equal(t, domain.CheckSuccess, resave.Status)
	require.NotNil(t, resave.Resave)
	assert.FileExists(t, resave.Resave.ArtifactPath)

	noise := report.Checks[domain.CheckNoise]
	require.Equal(t, domain.CheckSuccess, noise.Status)
	require.NotNil(t, noise.Noise)
	assert.FileExists(t, noise.Noise.ArtifactPath)
}

func TestVisualAnalyzer_TamperedSegmentation(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, "tampered.png")

	seg := &stubSegmentation{result: domain.SegmentationAnalysis{IsTampered: true, ConfidenceScore: 0.92}}
	st := &stubSensorTrust{pred: predictor.SensorTrustPrediction{TrustScore: 0.8, Verdict: "authentic"}}

	report := newVisualAnalyzer(seg, st).Analyze(context.Background(), imgPath, nil)

	assert.InDelta(t, 0.6, report.Score, 1e-9)
	require.NotNil(t, report.Checks[domain.CheckSegmentation].Segmentation)
	assert.True(t, report.Checks[domain.CheckSegmentation].Segmentation.IsTampered)
}

func TestVisualAnalyzer_LowSensorTrustAndTamperClamps(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, "forged.png")

	seg := &stubSegmentation{result: domain.SegmentationAnalysis{IsTampered: true, ConfidenceScore: 0.99}}
	st := &stubSensorTrust{pred: predictor.SensorTrustPrediction{TrustScore: 0.1, Verdict: "anomalous"}}

	report := newVisualAnalyzer(seg, st).Analyze(context.Background(), imgPath, nil)

	// 0.6 + 0.8 clamps at the ceiling.
	assert.Equal(t, 1.0, report.Score)
}

func TestVisualAnalyzer_SensorTrustOverlayArtifact(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, "overlay.png")

	heatmap := [][]float64{
		{0.0, 0.5},
		{0.9, 0.05},
	}
	confidence := [][]float64{
		{1.0, 0.8},
		{0.6, 1.0},
	}
	seg := &stubSegmentation{result: domain.SegmentationAnalysis{}}
	st := &stubSensorTrust{pred: predictor.SensorTrustPrediction{
		TrustScore: 0.3,
		Verdict:    "anomalous",
		Heatmap:    heatmap,
		Confidence: confidence,
	}}

	report := newVisualAnalyzer(seg, st).Analyze(context.Background(), imgPath, nil)

	check := report.Checks[domain.CheckSensorTrust]
	require.Equal(t, domain.CheckSuccess, check.Status)
	require.NotNil(t, check.SensorTrust)
	assert.FileExists(t, check.SensorTrust.OverlayPath)
	assert.InDelta(t, 0.8, report.Score, 1e-9)
}

// Every check failing must still yield a well-formed report: score zero,
// five error-tagged entries, and no panic escaping the analyzer.
func TestVisualAnalyzer_AllChecksFail(t *testing.T) {
	seg := &stubSegmentation{err: errors.New("model unavailable")}
	st := &stubSensorTrust{err: errors.New("model unavailable")}

	report := newVisualAnalyzer(seg, st).Analyze(context.Background(), "/nonexistent/missing.png", nil)

	require.NotNil(t, report)
	assert.Equal(t, 0.0, report.Score)
	assert.Len(t, report.Checks, 5)
	assert.Len(t, report.Flags, 5)

	for name, check := range report.Checks {
		assert.Equal(t, domain.CheckError, check.Status, "check %s should be error-tagged", name)
		assert.NotEmpty(t, check.Error, "check %s should carry its error message", name)
	}
}

// A single failing check contributes an error entry for itself only; the
// remaining checks still complete and score.
func TestVisualAnalyzer_FailureIsolation(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, "partial.png")

	seg := &stubSegmentation{err: errors.New("segmentation sidecar down")}
	st := &stubSensorTrust{pred: predictor.SensorTrustPrediction{TrustScore: 0.2, Verdict: "anomalous"}}

	report := newVisualAnalyzer(seg, st).Analyze(context.Background(), imgPath, nil)

	assert.Equal(t, domain.CheckError, report.Checks[domain.CheckSegmentation].Status)
	assert.Equal(t, domain.CheckSuccess, report.Checks[domain.CheckResave].Status)
	assert.Equal(t, domain.CheckSuccess, report.Checks[domain.CheckSensorTrust].Status)
	assert.InDelta(t, 0.8, report.Score, 1e-9)
}

func TestVisualAnalyzer_ProgressNotifications(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, "progress.png")

	seg := &stubSegmentation{result: domain.SegmentationAnalysis{}}
	st := &stubSensorTrust{pred: predictor.SensorTrustPrediction{TrustScore: 1.0}}

	var mu sync.Mutex
	var steps []string
	progress := func(step, message string) {
		mu.Lock()
		defer mu.Unlock()
		steps = append(steps, step)
	}

	newVisualAnalyzer(seg, st).Analyze(context.Background(), imgPath, progress)

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, steps)
	for _, step := range steps {
		assert.Equal(t, pipeline.StepAnalysisRunning, step)
	}
}
