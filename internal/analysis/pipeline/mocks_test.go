package pipeline_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/veridoc/veridoc-backend/internal/analysis/document"
	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/predictor"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

// stubAccessor returns a canned document or error
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

// stubValidator returns canned per-field statuses
type stubValidator struct {
	statuses map[string]domain.SignatureStatus
	errs     map[string]error
}

func (s *stubValidator) Validate(ctx context.Context, path, field string, tc document.TrustContext) (domain.SignatureStatus, error) {
	if err, ok := s.errs[field]; ok {
		return domain.SignatureStatus{}, err
	}
	return s.statuses[field], nil
}

// stubSegmentation returns a canned segmentation verdict
type stubSegmentation struct {
	result domain.SegmentationAnalysis
	err    error
}

func (s *stubSegmentation) Predict(ctx context.Context, imagePath, heatmapPath string) (domain.SegmentationAnalysis, error) {
	if s.err != nil {
		return domain.SegmentationAnalysis{}, s.err
	}
	return s.result, nil
}

// stubSensorTrust returns a canned sensor trust prediction
type stubSensorTrust struct {
	pred predictor.SensorTrustPrediction
	err  error
}

func (s *stubSensorTrust) Predict(ctx context.Context, imagePath string) (predictor.SensorTrustPrediction, error) {
	if s.err != nil {
		return predictor.SensorTrustPrediction{}, s.err
	}
	return s.pred, nil
}

// writeTestImage writes a 64x64 grayscale PNG holding a smooth gradient
// that populates every intensity bin: the histogram has no interior gaps
// and JPEG re-encoding reproduces it almost exactly, so none of the local
// checks fire on it.
func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*4 + y/16)})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return path
}

// testImageBytes returns the encoded bytes of the standard test image for
// use as embedded document content
func testImageBytes(t *testing.T) []byte {
	t.Helper()

	dir := t.TempDir()
	path := writeTestImage(t, dir, "embedded.png")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read test image: %v", err)
	}
	return data
}
