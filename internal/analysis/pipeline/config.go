package pipeline

import "github.com/veridoc/veridoc-backend/pkg/config"

// Config carries the calibration thresholds for the forensic analyzers.
// The values are empirically chosen and carried as overridable settings
// rather than hard-coded constants; there is no documented derivation
// behind them.
type Config struct {
	// MaxEmbeddedImages bounds the recursive visual analysis of images
	// extracted during a structural run.
	MaxEmbeddedImages int

	// ResaveQuality is the JPEG quality used for the resave-difference
	// re-encode.
	ResaveQuality int

	// ResaveMeanThreshold is the mean pixel difference above which the
	// resave check flags potential manipulation.
	ResaveMeanThreshold float64

	// HistogramGapCount is the number of zero-count interior histogram
	// bins above which the quantization check flags the image.
	HistogramGapCount int

	// SensorTrustThreshold is the sensor trust score below which the
	// image is flagged as anomalous.
	SensorTrustThreshold float64

	// EmbeddedRiskCutoff is the sub-report risk score above which an
	// embedded image counts against the structural score.
	EmbeddedRiskCutoff float64
}

// DefaultConfig returns the calibrated production thresholds
func DefaultConfig() Config {
	return Config{
		MaxEmbeddedImages:    3,
		ResaveQuality:        90,
		ResaveMeanThreshold:  15.0,
		HistogramGapCount:    10,
		SensorTrustThreshold: 0.5,
		EmbeddedRiskCutoff:   0.4,
	}
}

// ConfigFromAnalysis maps the service configuration onto the analyzer
// thresholds
func ConfigFromAnalysis(cfg config.AnalysisConfig) Config {
	return Config{
		MaxEmbeddedImages:    cfg.MaxEmbeddedImages,
		ResaveQuality:        cfg.ResaveQuality,
		ResaveMeanThreshold:  cfg.ResaveMeanThreshold,
		HistogramGapCount:    cfg.HistogramGapCount,
		SensorTrustThreshold: cfg.SensorTrustThreshold,
		EmbeddedRiskCutoff:   cfg.EmbeddedRiskCutoff,
	}
}
