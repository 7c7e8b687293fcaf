package pipeline

import (
	"context"
	"fmt"

	"github.com/veridoc/veridoc-backend/internal/analysis/document"
	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/pkg/logger"
)

// LabelCryptographic is the report label for the cryptographic pipeline
const LabelCryptographic = "Cryptographic Analysis (Digital Signatures)"

// CryptographicAnalyzer validates embedded digital signatures. Each
// signature is validated at its own boundary so one undecodable signature
// never blocks the verdict on the rest.
type CryptographicAnalyzer struct {
	accessor  document.Accessor
	validator document.SignatureValidator
	trust     document.TrustContext
	log       *logger.Logger
}

// NewCryptographicAnalyzer creates a cryptographic analyzer with the given
// trust context
func NewCryptographicAnalyzer(accessor document.Accessor, validator document.SignatureValidator, trust document.TrustContext, log *logger.Logger) *CryptographicAnalyzer {
	return &CryptographicAnalyzer{
		accessor:  accessor,
		validator: validator,
		trust:     trust,
		log:       log.WithComponent("cryptographic_analyzer"),
	}
}

// Analyze validates every embedded signature in the file at filePath.
// A document without signatures yields a neutral report: absence of a
// signature is not evidence of forgery.
func (a *CryptographicAnalyzer) Analyze(ctx context.Context, filePath string, progress Progress) (*domain.ForensicReport, error) {
	progress.Notify(StepAnalysisRunning, "Initializing cryptographic engine...")

	report := domain.NewForensicReport(LabelCryptographic)

	doc, err := a.accessor.Open(ctx, filePath)
	if err != nil {
		report.Err = fmt.Sprintf("Cryptographic analysis failed: %v", err)
		return report, nil
	}

	if len(doc.SignatureFields) == 0 {
		report.AddFlag("No embedded signatures found")
		report.Checks[domain.CheckSignatures] = domain.CheckResult{
			Check:      domain.CheckSignatures,
			Status:     domain.CheckSuccess,
			Signatures: &domain.SignatureAnalysis{Count: 0},
		}
		return report, nil
	}

	statuses := make([]domain.SignatureStatus, 0, len(doc.SignatureFields))
	for _, field := range doc.SignatureFields {
		progress.Notify(StepAnalysisRunning, fmt.Sprintf("Verifying signature: %s...", field))

		status, err := a.validator.Validate(ctx, filePath, field, a.trust)
		if err != nil {
			statuses = append(statuses, domain.SignatureStatus{
				Field:   field,
				Valid:   false,
				Trusted: false,
				Error:   err.Error(),
			})
			report.AddFlag(fmt.Sprintf("ERROR: could not validate signature %s: %v", field, err))
			continue
		}
		statuses = append(statuses, status)

		switch {
		case !status.Intact:
			report.AddFlag(fmt.Sprintf("CRITICAL: signature %s is broken (document altered after signing)", field))
			report.Score += 1.0
		case status.Revoked:
			report.AddFlag(fmt.Sprintf("CRITICAL: certificate for %s has been revoked", field))
			report.Score += 1.0
		case !status.Trusted:
			report.AddFlag(fmt.Sprintf("WARNING: signature %s is untrusted (self-signed or unknown root)", field))
			report.Score += 0.3
		}
	}

	report.Checks[domain.CheckSignatures] = domain.CheckResult{
		Check:  domain.CheckSignatures,
		Status: domain.CheckSuccess,
		Signatures: &domain.SignatureAnalysis{
			Count:      len(statuses),
			Signatures: statuses,
		},
	}

	report.ClampScore()

	a.log.Debug().
		Str("file", filePath).
		Int("signatures", len(statuses)).
		Float64("score", report.Score).
		Msg("cryptographic analysis completed")

	return report, nil
}
