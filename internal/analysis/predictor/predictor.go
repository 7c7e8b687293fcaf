package predictor

import (
	"context"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
)

// Segmentation locates tampered regions in a raster image. The confidence
// score is the 99th percentile of the per-pixel tamper probabilities, which
// keeps a handful of hot pixels from deciding the verdict. The model may
// write a heatmap artifact to the requested path.
type Segmentation interface {
	Predict(ctx context.Context, imagePath, heatmapPath string) (domain.SegmentationAnalysis, error)
}

// SensorTrustPrediction is the raw sensor-noise model output. The heatmap
// and confidence arrays are row-major with values in [0, 1]; callers render
// them into an overlay artifact and discard them.
type SensorTrustPrediction struct {
	TrustScore float64     `json:"trust_score"`
	Verdict    string      `json:"verdict"`
	Heatmap    [][]float64 `json:"anomaly_heatmap,omitempty"`
	Confidence [][]float64 `json:"confidence_map,omitempty"`
}

// SensorTrust estimates whether an image's sensor noise pattern matches a
// genuine camera capture. 1 means authentic.
type SensorTrust interface {
	Predict(ctx context.Context, imagePath string) (SensorTrustPrediction, error)
}
