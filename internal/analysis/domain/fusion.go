package domain

// FusionInput collects the normalized sub-scores the fusion engine combines.
// All authenticity values are on a 0-100 scale where 100 means authentic.
type FusionInput struct {
	AIScore                  float64 `json:"ai_score"`
	SegmentationAuthenticity float64 `json:"segmentation_authenticity"`
	StatisticalAuthenticity  float64 `json:"statistical_authenticity"`
	MetadataAuthenticity     float64 `json:"metadata_authenticity"`
	HasVisual                bool    `json:"has_visual"`
}

// TrustScore is the final fused verdict. Computed once, never recomputed in
// place. Breakdown maps a human-readable weight label to the rounded value
// that term contributed to the final score.
type TrustScore struct {
	Score     int                `json:"score"`
	AIScore   float64            `json:"ai_score"`
	Breakdown map[string]float64 `json:"breakdown"`
}
