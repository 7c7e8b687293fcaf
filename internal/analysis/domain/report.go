package domain

// CheckName identifies one forensic check inside a pipeline
type CheckName string

const (
	// Visual pipeline checks
	CheckResave       CheckName = "resave_difference"
	CheckHistogram    CheckName = "quantization_histogram"
	CheckSegmentation CheckName = "tamper_segmentation"
	CheckNoise        CheckName = "noise_variance"
	CheckSensorTrust  CheckName = "sensor_trust"

	// Structural pipeline checks
	CheckByteScan   CheckName = "byte_scan"
	CheckMetadata   CheckName = "metadata"
	CheckRootObject CheckName = "root_object"

	// Cryptographic pipeline checks
	CheckSignatures CheckName = "signatures"
)

// CheckStatus tags a CheckResult as either a full success or a full error
type CheckStatus string

const (
	CheckSuccess CheckStatus = "success"
	CheckError   CheckStatus = "error"
)

// CheckResult is a tagged variant per check kind. Exactly one payload
// pointer is set on success; on error only the message is set. It is never
// partially constructed: use the constructors below.
type CheckResult struct {
	Check  CheckName   `json:"check"`
	Status CheckStatus `json:"status"`
	Error  string      `json:"error,omitempty"`

	Resave       *ResaveAnalysis       `json:"resave,omitempty"`
	Histogram    *HistogramAnalysis    `json:"histogram,omitempty"`
	Segmentation *SegmentationAnalysis `json:"segmentation,omitempty"`
	Noise        *NoiseAnalysis        `json:"noise,omitempty"`
	SensorTrust  *SensorTrustAnalysis  `json:"sensor_trust,omitempty"`
	ByteScan     *ByteScanAnalysis     `json:"byte_scan,omitempty"`
	Metadata     *MetadataAnalysis     `json:"metadata,omitempty"`
	RootObject   *RootObjectAnalysis   `json:"root_object,omitempty"`
	Signatures   *SignatureAnalysis    `json:"signatures,omitempty"`
}

// ResaveAnalysis summarizes the per-pixel difference between an image and a
// lossily re-encoded copy of itself
type ResaveAnalysis struct {
	MaxDifference  float64 `json:"max_difference"`
	MeanDifference float64 `json:"mean_difference"`
	StdDeviation   float64 `json:"std_deviation"`
	ArtifactPath   string  `json:"artifact_path,omitempty"`
}

// HistogramAnalysis counts zero-count interior bins in a pixel-intensity
// histogram, a cheap proxy for double-compression artifacts
type HistogramAnalysis struct {
	GapCount   int  `json:"gap_count"`
	Suspicious bool `json:"suspicious"`
}

// SegmentationAnalysis holds the neural tamper classifier verdict
type SegmentationAnalysis struct {
	IsTampered      bool    `json:"is_tampered"`
	ConfidenceScore float64 `json:"confidence_score"`
	HeatmapPath     string  `json:"heatmap_path,omitempty"`
}

// NoiseAnalysis references the false-colored noise map artifact.
// Informational only; it never contributes to the score.
type NoiseAnalysis struct {
	ArtifactPath string `json:"artifact_path"`
}

// SensorTrustAnalysis holds the sensor-noise trust model verdict. The raw
// heatmap arrays are rendered to the overlay artifact and discarded to keep
// the report payload light.
type SensorTrustAnalysis struct {
	TrustScore  float64 `json:"trust_score"`
	Verdict     string  `json:"verdict"`
	OverlayPath string  `json:"overlay_path,omitempty"`
}

// ByteScanAnalysis holds raw byte-level container statistics
type ByteScanAnalysis struct {
	EOFMarkers   int `json:"eof_markers_found"`
	XrefKeywords int `json:"xref_keywords_found"`
}

// MetadataAnalysis holds the parsed document information dictionary
type MetadataAnalysis struct {
	Fields   map[string]string `json:"fields,omitempty"`
	Producer string            `json:"producer,omitempty"`
}

// RootObjectAnalysis flags high-risk entries found in the document catalog
type RootObjectAnalysis struct {
	HasEmbeddedFiles bool `json:"has_embedded_files"`
	HasJavaScript    bool `json:"has_javascript"`
}

// SignatureAnalysis aggregates per-signature validation outcomes
type SignatureAnalysis struct {
	Count      int               `json:"signature_count"`
	Signatures []SignatureStatus `json:"signatures,omitempty"`
}

// SignatureStatus is the validation outcome for a single signature field
type SignatureStatus struct {
	Field       string `json:"field"`
	Signer      string `json:"signer_name"`
	Issuer      string `json:"issuer"`
	Valid       bool   `json:"valid"`
	Intact      bool   `json:"intact"`
	Trusted     bool   `json:"trusted"`
	Revoked     bool   `json:"revoked"`
	SigningTime string `json:"signing_time,omitempty"`
	Coverage    string `json:"coverage,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewCheckError builds a fully error-tagged result for a check
func NewCheckError(check CheckName, err error) CheckResult {
	return CheckResult{
		Check:  check,
		Status: CheckError,
		Error:  err.Error(),
	}
}

// EmbeddedImageReport is the nested visual sub-report for one raster image
// extracted from a structured document
type EmbeddedImageReport struct {
	Index    int             `json:"index"`
	Filename string          `json:"filename"`
	Report   *ForensicReport `json:"visual_report"`
}

// ForensicReport is the fixed-shape output of one pipeline run. Flags are
// append-only during analysis; insertion order is chronological. The risk
// score is always within [0, 1].
type ForensicReport struct {
	Pipeline string                    `json:"pipeline"`
	Score    float64                   `json:"score"`
	Flags    []string                  `json:"flags"`
	Checks   map[CheckName]CheckResult `json:"checks"`

	// EmbeddedImages holds the retained visual sub-reports for a structural
	// run; empty for the other pipelines.
	EmbeddedImages []EmbeddedImageReport `json:"analyzed_images,omitempty"`

	// ExtractedText carries the document's text content for the reasoning
	// layer. It never influences the risk score.
	ExtractedText string `json:"extracted_text,omitempty"`

	// Warnings records non-fatal inspection failures that degraded but did
	// not abort the run.
	Warnings []string `json:"warnings,omitempty"`

	// Err is set only when the whole pipeline failed fatally.
	Err string `json:"error,omitempty"`
}

// NewForensicReport creates an empty report for the named pipeline
func NewForensicReport(pipeline string) *ForensicReport {
	return &ForensicReport{
		Pipeline: pipeline,
		Flags:    []string{},
		Checks:   make(map[CheckName]CheckResult),
	}
}

// AddFlag appends a human-readable finding in chronological order
func (r *ForensicReport) AddFlag(flag string) {
	r.Flags = append(r.Flags, flag)
}

// AddWarning records a non-fatal degradation
func (r *ForensicReport) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// ClampScore caps the risk score into [0, 1]
func (r *ForensicReport) ClampScore() {
	if r.Score > 1.0 {
		r.Score = 1.0
	}
	if r.Score < 0 {
		r.Score = 0
	}
}
