package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
)

// Exchange names
const (
	ExchangeAnalysisEvents = "analysis.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// AnalysisCompletedEvent is published when a document analysis finishes
type AnalysisCompletedEvent struct {
	TaskID      string  `json:"task_id"`
	Filename    string  `json:"filename"`
	Pipeline    string  `json:"pipeline"`
	RiskScore   float64 `json:"risk_score"`
	TrustScore  int     `json:"trust_score"`
	FlagCount   int     `json:"flag_count"`
	DurationMs  int64   `json:"duration_ms"`
	DocumentURL string  `json:"document_url,omitempty"`
}

// AnalysisFailedEvent is published when a document analysis aborts before a
// report could be produced
type AnalysisFailedEvent struct {
	TaskID   string `json:"task_id"`
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}
