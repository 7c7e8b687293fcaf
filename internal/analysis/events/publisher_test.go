package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/events"
	"github.com/veridoc/veridoc-backend/pkg/logger"
	"github.com/veridoc/veridoc-backend/pkg/messaging"
)

// MockPublisher captures published events for testing
type MockPublisher struct {
	events []PublishedEvent
	err    error
}

type PublishedEvent struct {
	EventType string
	Data      []byte
}

func (m *MockPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	if m.err != nil {
		return m.err
	}
	jsonData, _ := json.Marshal(data)
	m.events = append(m.events, PublishedEvent{
		EventType: eventType,
		Data:      jsonData,
	})
	return nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zerolog.Nop()}
}

func TestPublishAnalysisCompleted(t *testing.T) {
	mock := &MockPublisher{}
	publisher := events.NewAnalysisEventPublisher(mock, testLogger())

	report := domain.NewForensicReport("Structural Forensics")
	report.Score = 0.45
	report.AddFlag("Missing producer metadata")
	report.AddFlag("Contains embedded files (potential payload)")

	result := &domain.AnalysisResult{
		TaskID:      "task-9",
		Filename:    "statement.pdf",
		Pipeline:    domain.PipelineStructural,
		Report:      report,
		Trust:       &domain.TrustScore{Score: 61},
		DocumentURL: "https://store/veridoc-uploads/task-9.pdf",
		DurationMs:  1800,
	}

	publisher.PublishAnalysisCompleted(context.Background(), result)

	require.Len(t, mock.events, 1)
	assert.Equal(t, messaging.EventAnalysisCompleted, mock.events[0].EventType)

	var event messaging.AnalysisCompletedEvent
	require.NoError(t, json.Unmarshal(mock.events[0].Data, &event))
	assert.Equal(t, "task-9", event.TaskID)
	assert.Equal(t, "structural", event.Pipeline)
	assert.Equal(t, 0.45, event.RiskScore)
	assert.Equal(t, 61, event.TrustScore)
	assert.Equal(t, 2, event.FlagCount)
}

func TestPublishAnalysisFailed(t *testing.T) {
	mock := &MockPublisher{}
	publisher := events.NewAnalysisEventPublisher(mock, testLogger())

	publisher.PublishAnalysisFailed(context.Background(), "task-3", "broken.pdf", "file unreadable")

	require.Len(t, mock.events, 1)
	assert.Equal(t, messaging.EventAnalysisFailed, mock.events[0].EventType)

	var event messaging.AnalysisFailedEvent
	require.NoError(t, json.Unmarshal(mock.events[0].Data, &event))
	assert.Equal(t, "file unreadable", event.Reason)
}

// A broker failure must never propagate into the analysis session.
func TestPublishFailureIsSwallowed(t *testing.T) {
	mock := &MockPublisher{err: errors.New("broker down")}
	publisher := events.NewAnalysisEventPublisher(mock, testLogger())

	assert.NotPanics(t, func() {
		publisher.PublishAnalysisFailed(context.Background(), "task-4", "doc.pdf", "whatever")
	})
}
