package events

import (
	"context"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/pkg/logger"
	"github.com/veridoc/veridoc-backend/pkg/messaging"
)

// EventPublisher abstracts the messaging publisher so services can be
// tested without a broker
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// AnalysisEventPublisher publishes analysis lifecycle events
type AnalysisEventPublisher struct {
	publisher EventPublisher
	log       *logger.Logger
}

// NewAnalysisEventPublisher creates a new analysis event publisher
func NewAnalysisEventPublisher(publisher EventPublisher, log *logger.Logger) *AnalysisEventPublisher {
	return &AnalysisEventPublisher{
		publisher: publisher,
		log:       log,
	}
}

// PublishAnalysisCompleted emits the summary of a finished analysis.
// Publishing is best-effort: a broker failure is logged, never surfaced to
// the session.
func (p *AnalysisEventPublisher) PublishAnalysisCompleted(ctx context.Context, result *domain.AnalysisResult) {
	event := messaging.AnalysisCompletedEvent{
		TaskID:      result.TaskID,
		Filename:    result.Filename,
		Pipeline:    string(result.Pipeline),
		DurationMs:  result.DurationMs,
		DocumentURL: result.DocumentURL,
	}
	if result.Report != nil {
		event.RiskScore = result.Report.Score
		event.FlagCount = len(result.Report.Flags)
	}
	if result.Trust != nil {
		event.TrustScore = result.Trust.Score
	}

	if err := p.publisher.Publish(ctx, messaging.EventAnalysisCompleted, event); err != nil {
		p.log.Error().Err(err).
			Str("task_id", result.TaskID).
			Msg("failed to publish analysis completed event")
	}
}

// PublishAnalysisFailed emits a failure event for an analysis that aborted
// before producing a report
func (p *AnalysisEventPublisher) PublishAnalysisFailed(ctx context.Context, taskID, filename, reason string) {
	event := messaging.AnalysisFailedEvent{
		TaskID:   taskID,
		Filename: filename,
		Reason:   reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAnalysisFailed, event); err != nil {
		p.log.Error().Err(err).
			Str("task_id", taskID).
			Msg("failed to publish analysis failed event")
	}
}
