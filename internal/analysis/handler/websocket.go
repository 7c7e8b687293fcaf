package handler

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
	"github.com/veridoc/veridoc-backend/internal/analysis/service"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect from the frontend origin which is already
	// filtered by the CORS middleware on the upload endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// frame is one progress message pushed to the client during an analysis
// session. The final frame carries the full result as data.
type frame struct {
	Step    string                 `json:"step"`
	Message string                 `json:"message"`
	Data    *domain.AnalysisResult `json:"data,omitempty"`
}

// session wraps a websocket connection with a single-writer guard. Once a
// write fails the session is marked dead and further frames are dropped
// silently so a disconnect never interrupts the running analysis.
type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
	dead bool
}

func (s *session) send(f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return
	}
	if err := s.conn.WriteJSON(f); err != nil {
		s.dead = true
	}
}

// AnalyzeSession handles GET /ws/analyze/{taskID}.
// Upgrades the connection, streams progress frames while the analysis runs
// and finishes with a COMPLETE frame carrying the result, or an ERROR frame
// if the pipeline aborted. The analysis itself runs on a detached context,
// so closing the socket mid-run only stops the updates.
func (h *Handler) AnalyzeSession(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("task_id", taskID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sess := &session{conn: conn}

	if task := h.service.GetTask(taskID); task == nil {
		sess.send(frame{Step: "ERROR", Message: "Unknown task ID"})
		return
	}

	progress := func(step, message string) {
		sess.send(frame{Step: step, Message: message})
	}

	result, err := h.service.Analyze(r.Context(), taskID, progress)
	if err != nil {
		h.log.Error().Err(err).Str("task_id", taskID).Msg("analysis session failed")
		sess.send(frame{Step: "ERROR", Message: err.Error()})
		return
	}

	sess.send(frame{
		Step:    service.StepComplete,
		Message: "Analysis complete.",
		Data:    result,
	})
}
