package pipeline

import (
	"math"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// Fusion weights. The AI judgment dominates when no independent visual
// signal exists, but is capped at 40% once forensic visual evidence is
// available.
const (
	visualAIWeight   = 0.4
	visualSegWeight  = 0.4
	visualStatWeight = 0.2

	nonVisualAIWeight   = 0.6
	nonVisualMetaWeight = 0.4
)

// Breakdown labels exposed alongside the fused score
const (
	BreakdownAI           = "AI Judgment"
	BreakdownSegmentation = "Segmentation Authenticity"
	BreakdownStatistical  = "Statistical Authenticity"
	BreakdownMetadata     = "Metadata Authenticity"
)

// FusionEngine combines the external AI authenticity judgment with the
// local forensic sub-scores. Across multiple analyzed images it takes the
// worst case of each sub-score: a single compromised component invalidates
// the whole document.
type FusionEngine struct {
	log *logger.Logger
}

// NewFusionEngine creates a fusion engine
func NewFusionEngine(log *logger.Logger) *FusionEngine {
	return &FusionEngine{
		log: log.WithComponent("fusion"),
	}
}

// BuildInput derives the normalized fusion sub-scores from a completed
// report tree. All derived values live on a 0-100 authenticity scale.
func (e *FusionEngine) BuildInput(aiScore float64, report *domain.ForensicReport) (domain.FusionInput, error) {
	if report == nil {
		return domain.FusionInput{}, apperrors.Aggregation("fusion requires a completed forensic report")
	}
	if aiScore < 0 || aiScore > 100 {
		return domain.FusionInput{}, apperrors.Aggregation("ai score out of range")
	}

	input := domain.FusionInput{AIScore: aiScore}

	visualReports := collectVisualReports(report)
	input.HasVisual = len(visualReports) > 0

	if input.HasVisual {
		segAuth := math.Inf(1)
		statAuth := math.Inf(1)
		for _, vr := range visualReports {
			segAuth = math.Min(segAuth, segmentationAuthenticity(vr))
			statAuth = math.Min(statAuth, statisticalAuthenticity(vr))
		}
		input.SegmentationAuthenticity = segAuth
		input.StatisticalAuthenticity = statAuth
	} else {
		input.MetadataAuthenticity = math.Max(0, 100-report.Score*100)
	}

	return input, nil
}

// Fuse computes the final trust score from the derived input
func (e *FusionEngine) Fuse(input domain.FusionInput) domain.TrustScore {
	breakdown := make(map[string]float64)
	var final float64

	if input.HasVisual {
		aiTerm := input.AIScore * visualAIWeight
		segTerm := input.SegmentationAuthenticity * visualSegWeight
		statTerm := input.StatisticalAuthenticity * visualStatWeight
		breakdown[BreakdownAI] = math.Round(aiTerm)
		breakdown[BreakdownSegmentation] = math.Round(segTerm)
		breakdown[BreakdownStatistical] = math.Round(statTerm)
		final = aiTerm + segTerm + statTerm
	} else {
		aiTerm := input.AIScore * nonVisualAIWeight
		metaTerm := input.MetadataAuthenticity * nonVisualMetaWeight
		breakdown[BreakdownAI] = math.Round(aiTerm)
		breakdown[BreakdownMetadata] = math.Round(metaTerm)
		final = aiTerm + metaTerm
	}

	score := domain.TrustScore{
		Score:     int(math.Round(final)),
		AIScore:   input.AIScore,
		Breakdown: breakdown,
	}

	e.log.Debug().
		Int("score", score.Score).
		Bool("has_visual", input.HasVisual).
		Msg("scores fused")

	return score
}

// FuseReport is the single-call convenience combining BuildInput and Fuse
func (e *FusionEngine) FuseReport(aiScore float64, report *domain.ForensicReport) (domain.TrustScore, error) {
	input, err := e.BuildInput(aiScore, report)
	if err != nil {
		return domain.TrustScore{}, err
	}
	return e.Fuse(input), nil
}

// collectVisualReports gathers every analyzed image's report: the root
// report itself for a visual run, or the retained sub-reports of embedded
// images for a structural run.
func collectVisualReports(report *domain.ForensicReport) []*domain.ForensicReport {
	if report.Pipeline == LabelVisual {
		return []*domain.ForensicReport{report}
	}
	var out []*domain.ForensicReport
	for _, img := range report.EmbeddedImages {
		if img.Report != nil {
			out = append(out, img.Report)
		}
	}
	return out
}

// segmentationAuthenticity inverts the tamper confidence onto the 0-100
// authenticity scale. A missing or failed segmentation check contributes
// no evidence against the image.
func segmentationAuthenticity(report *domain.ForensicReport) float64 {
	check, ok := report.Checks[domain.CheckSegmentation]
	if !ok || check.Segmentation == nil {
		return 100
	}
	return 100 - check.Segmentation.ConfidenceScore*100
}

// statisticalAuthenticity derives authenticity from the maximum resave
// difference, floored at zero
func statisticalAuthenticity(report *domain.ForensicReport) float64 {
	check, ok := report.Checks[domain.CheckResave]
	if !ok || check.Resave == nil {
		return 100
	}
	return math.Max(0, 100-check.Resave.MaxDifference*1.5)
}
