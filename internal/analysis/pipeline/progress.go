package pipeline

// Progress receives incremental human-readable status updates during an
// analysis. A nil Progress is valid and drops every notification, which is
// also how updates are discarded once a session disconnects.
type Progress func(step, message string)

// Notify sends one update if a sink is attached
func (p Progress) Notify(step, message string) {
	if p != nil {
		p(step, message)
	}
}

// Progress step identifiers emitted during pipeline execution
const (
	StepAnalysisRunning = "ANALYSIS_RUNNING"
)
