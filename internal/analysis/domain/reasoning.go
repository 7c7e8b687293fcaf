package domain

// BoundingBox marks a visual anomaly located by the narrative reasoner.
// Coordinates are [ymin, xmin, ymax, xmax] normalized to 0-1000.
type BoundingBox struct {
	Box   [4]int `json:"box_2d"`
	Label string `json:"label"`
}

// Reasoning is the external AI auditor's judgment over the document plus
// the local forensic findings
type Reasoning struct {
	AuthenticityScore float64       `json:"authenticity_score" validate:"min=0,max=100"`
	FlaggedIssues     []string      `json:"flagged_issues"`
	Summary           string        `json:"summary" validate:"required"`
	Reasoning         string        `json:"reasoning" validate:"required"`
	BoundingBoxes     []BoundingBox `json:"bounding_boxes,omitempty"`
	Model             string        `json:"model_name,omitempty"`
	Error             string        `json:"error,omitempty"`
}
