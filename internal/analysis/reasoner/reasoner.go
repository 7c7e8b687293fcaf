package reasoner

import (
	"context"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
)

// Reasoner produces a narrative authenticity judgment over a document and
// the local forensic findings. Implementations must never block the caller
// on model warm-up beyond the request context.
type Reasoner interface {
	Reason(ctx context.Context, documentURL, mimeType string, report *domain.ForensicReport) (*domain.Reasoning, error)
}
