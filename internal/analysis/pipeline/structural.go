package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/veridoc/veridoc-backend/internal/analysis/document"
	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	apperrors "github.com/veridoc/veridoc-backend/pkg/errors"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// LabelStructural is the report label for the structural pipeline
const LabelStructural = "Structural Forensics"

// maxExtractedText caps the text carried to the reasoning layer
const maxExtractedText = 4000

// suspiciousProducers are substrings of producer strings associated with
// tooling commonly seen on doctored documents
var suspiciousProducers = []string{"phantom", "gpl output"}

// StructuralAnalyzer runs byte and metadata forensics on the container
// format. It holds a visual analyzer capability and delegates embedded
// raster images to it, bounded by MaxEmbeddedImages.
type StructuralAnalyzer struct {
	accessor document.Accessor
	visual   *VisualAnalyzer
	cfg      Config
	log      *logger.Logger
}

// NewStructuralAnalyzer creates a structural analyzer
func NewStructuralAnalyzer(accessor document.Accessor, visual *VisualAnalyzer, cfg Config, log *logger.Logger) *StructuralAnalyzer {
	return &StructuralAnalyzer{
		accessor: accessor,
		visual:   visual,
		cfg:      cfg,
		log:      log.WithComponent("structural_analyzer"),
	}
}

// Analyze inspects the file at filePath. Only a failure to read the file
// itself is fatal; every deeper inspection failure degrades into a warning
// and the remaining checks still run.
func (a *StructuralAnalyzer) Analyze(ctx context.Context, filePath string, progress Progress) (*domain.ForensicReport, error) {
	progress.Notify(StepAnalysisRunning, "Scanning container structure...")

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, apperrors.IO(err, "read document")
	}

	report := domain.NewForensicReport(LabelStructural)

	// Incremental update detection on raw bytes, no parser involved.
	eofCount := bytes.Count(content, []byte("%%EOF"))
	xrefCount := bytes.Count(content, []byte("xref"))
	report.Checks[domain.CheckByteScan] = domain.CheckResult{
		Check:  domain.CheckByteScan,
		Status: domain.CheckSuccess,
		ByteScan: &domain.ByteScanAnalysis{
			EOFMarkers:   eofCount,
			XrefKeywords: xrefCount,
		},
	}
	if eofCount > 1 {
		report.AddFlag(fmt.Sprintf("Detected %d incremental updates (file modified after creation)", eofCount))
		report.Score += 0.15 * float64(eofCount-1)
	} else if eofCount == 0 {
		report.AddFlag("Malformed PDF: no %%EOF marker found")
		report.Score = 1.0
	}

	doc, err := a.accessor.Open(ctx, filePath)
	if err != nil {
		// A document the parser rejects is evidence, not a reason to stop.
		report.AddWarning(fmt.Sprintf("Document parsing failed: %v", err))
		report.ClampScore()
		return report, nil
	}

	if text := doc.Text(); len(text) > maxExtractedText {
		report.ExtractedText = text[:maxExtractedText]
	} else {
		report.ExtractedText = text
	}

	a.inspectMetadata(doc, report)
	a.inspectEmbeddedImages(ctx, filePath, doc, report, progress)
	a.inspectRootObject(doc, report)

	report.ClampScore()

	a.log.Debug().
		Str("file", filePath).
		Float64("score", report.Score).
		Int("embedded_images", len(report.EmbeddedImages)).
		Msg("structural analysis completed")

	return report, nil
}

func (a *StructuralAnalyzer) inspectMetadata(doc *document.Document, report *domain.ForensicReport) {
	if len(doc.Metadata) == 0 {
		report.Checks[domain.CheckMetadata] = domain.CheckResult{
			Check:    domain.CheckMetadata,
			Status:   domain.CheckSuccess,
			Metadata: &domain.MetadataAnalysis{},
		}
		report.AddFlag("No metadata found")
		report.Score += 0.1
		return
	}

	producer := doc.Metadata["/Producer"]
	report.Checks[domain.CheckMetadata] = domain.CheckResult{
		Check:  domain.CheckMetadata,
		Status: domain.CheckSuccess,
		Metadata: &domain.MetadataAnalysis{
			Fields:   doc.Metadata,
			Producer: producer,
		},
	}

	if producer == "" {
		report.AddFlag("Missing producer metadata")
		report.Score += 0.2
		return
	}
	lower := strings.ToLower(producer)
	for _, suspect := range suspiciousProducers {
		if strings.Contains(lower, suspect) {
			report.AddFlag(fmt.Sprintf("Suspicious producer detected: %s", producer))
			report.Score += 0.3
			return
		}
	}
}

// inspectEmbeddedImages extracts up to MaxEmbeddedImages raster images,
// persists each next to the source file and runs the full visual pipeline
// on it. Sub-reports are retained for downstream fusion; artifact files are
// kept for the review UI and reaped later by the sweeper.
func (a *StructuralAnalyzer) inspectEmbeddedImages(ctx context.Context, filePath string, doc *document.Document, report *domain.ForensicReport, progress Progress) {
	if len(doc.Images) == 0 {
		return
	}

	limit := a.cfg.MaxEmbeddedImages
	if limit > len(doc.Images) {
		limit = len(doc.Images)
	}

	dir := filepath.Dir(filePath)
	base := filepath.Base(filePath)

	for idx := 0; idx < limit; idx++ {
		img := doc.Images[idx]

		progress.Notify(StepAnalysisRunning,
			fmt.Sprintf("Found embedded image %d/%d. Running visual forensics...", idx+1, limit))

		imgName := fmt.Sprintf("%s_img_%d.%s", base, idx, imageExt(img))
		imgPath := filepath.Join(dir, imgName)
		if err := os.WriteFile(imgPath, img.Data, 0o644); err != nil {
			report.AddWarning(fmt.Sprintf("Embedded image %d extraction failed: %v", idx+1, err))
			continue
		}

		sub := a.visual.Analyze(ctx, imgPath, progress)
		report.EmbeddedImages = append(report.EmbeddedImages, domain.EmbeddedImageReport{
			Index:    idx,
			Filename: imgName,
			Report:   sub,
		})

		if sub.Score > a.cfg.EmbeddedRiskCutoff {
			report.AddFlag(fmt.Sprintf("Embedded image %d: potential tampering detected", idx+1))
			report.Score += 0.4

			if seg := sub.Checks[domain.CheckSegmentation]; seg.Segmentation != nil && seg.Segmentation.IsTampered {
				report.AddFlag(fmt.Sprintf("Segmentation found tampering in embedded image %d (conf: %.2f)",
					idx+1, seg.Segmentation.ConfidenceScore))
				report.Score += 0.3
			}
		}
	}
}

func (a *StructuralAnalyzer) inspectRootObject(doc *document.Document, report *domain.ForensicReport) {
	hasEmbedded := doc.HasRootKey("/EmbeddedFiles")
	hasJS := doc.HasRootKey("/JS") || doc.HasRootKey("/JavaScript")

	report.Checks[domain.CheckRootObject] = domain.CheckResult{
		Check:  domain.CheckRootObject,
		Status: domain.CheckSuccess,
		RootObject: &domain.RootObjectAnalysis{
			HasEmbeddedFiles: hasEmbedded,
			HasJavaScript:    hasJS,
		},
	}

	if hasEmbedded {
		report.AddFlag("Contains embedded files (potential payload)")
		report.Score += 0.3
	}
	if hasJS {
		report.AddFlag("Contains embedded JavaScript (high risk)")
		report.Score += 0.5
	}
}

func imageExt(img document.EmbeddedImage) string {
	if img.Format != "" {
		return img.Format
	}
	if ext := strings.TrimPrefix(filepath.Ext(img.Name), "."); ext != "" {
		return ext
	}
	return "png"
}
