package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc-backend/internal/analysis/document"
	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/pipeline"
	"github.com/veridoc/veridoc-backend/internal/analysis/predictor"
)

func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func newStructuralAnalyzer(accessor document.Accessor, seg *stubSegmentation, st *stubSensorTrust) *pipeline.StructuralAnalyzer {
	visual := pipeline.NewVisualAnalyzer(seg, st, pipeline.DefaultConfig(), testLogger())
	return pipeline.NewStructuralAnalyzer(accessor, visual, pipeline.DefaultConfig(), testLogger())
}

func cleanPredictors() (*stubSegmentation, *stubSensorTrust) {
	seg := &stubSegmentation{result: domain.SegmentationAnalysis{}}
	st := &stubSensorTrust{pred: predictor.SensorTrustPrediction{TrustScore: 1.0, Verdict: "authentic"}}
	return seg, st
}

func TestStructuralAnalyzer_MissingFileIsFatal(t *testing.T) {
	seg, st := cleanPredictors()
	analyzer := newStructuralAnalyzer(&stubAccessor{doc: &document.Document{}}, seg, st)

	report, err := analyzer.Analyze(context.Background(), "/nonexistent/file.pdf", nil)
	require.Error(t, err)
	assert.Nil(t, report)
}

// A file without any end-of-file marker is malformed; the score is forced
// to the ceiling no matter what the other checks contribute.
func TestStructuralAnalyzer_ZeroEOFMarkersForcesMaxScore(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "broken.pdf", []byte("%PDF-1.7 no trailer here"))

	seg, st := cleanPredictors()
	analyzer := newStructuralAnalyzer(&stubAccessor{doc: &document.Document{}}, seg, st)

	report, err := analyzer.Analyze(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.Score)
	assert.Contains(t, report.Flags[0], "Malformed PDF")
}

// Page text is carried for the reasoning layer without touching the score.
func TestStructuralAnalyzer_ExtractsText(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "invoice.pdf", []byte("%PDF-1.7\n%%EOF"))

	doc := &document.Document{
		Pages: []document.Page{
			{Number: 1, Text: "Invoice #1042"},
			{Number: 2, Text: "Total: 980 EUR"},
		},
		Metadata: map[string]string{"/Producer": "LibreOffice 7.4"},
	}
	seg, st := cleanPredictors()
	analyzer := newStructuralAnalyzer(&stubAccessor{doc: doc}, seg, st)

	report, err := analyzer.Analyze(context.Background(), path, nil)
	require.NoError(t, err)

	assert.Equal(t, "Invoice #1042\nTotal: 980 EUR\n", report.ExtractedText)
	assert.Equal(t, 0.0, report.Score)
}

func TestStructuralAnalyzer_IncrementalUpdates(t *testing.T) {
	dir := t.TempDir()
	content := []byte("%PDF-1.7\nxref\n%%EOF\nxref\n%%EOF\nxref\n%%EOF")
	path := writeTestFile(t, dir, "updated.pdf", content)

	doc := &document.Document{
		Metadata: map[string]string{"/Producer": "LibreOffice 7.4"},
	}
	seg, st := cleanPredictors()
	analyzer := newStructuralAnalyzer(&stubAccessor{doc: doc}, seg, st)

	report, err := analyzer.Analyze(context.Background(), path, nil)
	require.NoError(t, err)

	// Three markers mean two incremental updates.
	assert.InDelta(t, 0.3, report.Score, 1e-9)
	require.NotNil(t, report.Checks[domain.CheckByteScan].ByteScan)
	assert.Equal(t, 3, report.Checks[domain.CheckByteScan].ByteScan.EOFMarkers)
}

func TestStructuralAnalyzer_MetadataScoring(t *testing.T) {
	tests := []struct {
		name      string
		metadata  map[string]string
		wantScore float64
	}{
		{"clean producer", map[string]string{"/Producer": "Adobe Acrobat 23.1"}, 0},
		{"missing producer", map[string]string{"/Author": "someone"}, 0.2},
		{"suspicious producer", map[string]string{"/Producer": "PDF Phantom Writer"}, 0.3},
		{"gpl output producer", map[string]string{"/Producer": "GPL Output Device"}, 0.3},
		{"no metadata", nil, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeTestFile(t, dir, "doc.pdf", []byte("%PDF-1.7\n%%EOF"))

			seg, st := cleanPredictors()
			analyzer := newStructuralAnalyzer(&stubAccessor{doc: &document.Document{Metadata: tt.metadata}}, seg, st)

			report, err := analyzer.Analyze(context.Background(), path, nil)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantScore, report.Score, 1e-9)
		})
	}
}

func TestStructuralAnalyzer_RootObjectRisks(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "payload.pdf", []byte("%PDF-1.7\n%%EOF"))

	doc := &document.Document{
		Metadata: map[string]string{"/Producer": "Adobe Acrobat"},
		RootKeys: []string{"/Pages", "/EmbeddedFiles", "/JavaScript"},
	}
	seg, st := cleanPredictors()
	analyzer := newStructuralAnalyzer(&stubAccessor{doc: doc}, seg, st)

	report, err := analyzer.Analyze(context.Background(), path, nil)
	require.NoError(t, err)

	// 0.3 for embedded files plus 0.5 for script content.
	assert.InDelta(t, 0.8, report.Score, 1e-9)
	root := report.Checks[domain.CheckRootObject].RootObject
	require.NotNil(t, root)
	assert.True(t, root.HasEmbeddedFiles)
	assert.True(t, root.HasJavaScript)
}

// Parser rejection degrades to a warning; the byte scan verdict survives.
func TestStructuralAnalyzer_ParseFailureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "corrupt.pdf", []byte("%PDF-1.7\n%%EOF"))

	seg, st := cleanPredictors()
	analyzer := newStructuralAnalyzer(&stubAccessor{err: errors.New("bad xref")}, seg, st)

	report, err := analyzer.Analyze(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "parsing failed")
	assert.NotNil(t, report.Checks[domain.CheckByteScan].ByteScan)
}

func TestStructuralAnalyzer_EmbeddedImageRecursion(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "scan.pdf", []byte("%PDF-1.7\n%%EOF"))

	imgData := testImageBytes(t)
	doc := &document.Document{
		Metadata: map[string]string{"/Producer": "Adobe Acrobat"},
		Images: []document.EmbeddedImage{
			{Name: "img0.png", Format: "png", Data: imgData},
		},
	}

	// The embedded image trips the segmentation model, pushing its visual
	// sub-report over the risk cutoff.
	seg := &stubSegmentation{result: domain.SegmentationAnalysis{IsTampered: true, ConfidenceScore: 0.88}}
	st := &stubSensorTrust{pred: predictor.SensorTrustPrediction{TrustScore: 1.0, Verdict: "authentic"}}
	analyzer := newStructuralAnalyzer(&stubAccessor{doc: doc}, seg, st)

	report, err := analyzer.Analyze(context.Background(), path, nil)
	require.NoError(t, err)

	require.Len(t, report.EmbeddedImages, 1)
	sub := report.EmbeddedImages[0].Report
	require.NotNil(t, sub)
	assert.InDelta(t, 0.6, sub.Score, 1e-9)

	// 0.4 for the risky sub-report plus 0.3 for the independent
	// segmentation hit.
	assert.InDelta(t, 0.7, report.Score, 1e-9)
}

func TestStructuralAnalyzer_EmbeddedImageLimitIsThree(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "gallery.pdf", []byte("%PDF-1.7\n%%EOF"))

	imgData := testImageBytes(t)
	images := make([]document.EmbeddedImage, 5)
	for i := range images {
		images[i] = document.EmbeddedImage{Name: "img.png", Format: "png", Data: imgData}
	}
	doc := &document.Document{
		Metadata: map[string]string{"/Producer": "Adobe Acrobat"},
		Images:   images,
	}

	seg, st := cleanPredictors()
	analyzer := newStructuralAnalyzer(&stubAccessor{doc: doc}, seg, st)

	report, err := analyzer.Analyze(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Len(t, report.EmbeddedImages, 3)
}
